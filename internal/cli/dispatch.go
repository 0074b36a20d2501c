package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kintai-hq/kintai-client/internal/app"
)

func (a *App) dispatchCommand() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Mail the day's QR code to every user on a schedule",
		Long: `dispatch mails the day's QR code to every user on DISPATCH_SCHEDULE
(six-field cron, seconds first) and reports each run to the publishers in
PUBLISHERS_FILE.

It takes over the backend's own morning job, so run one or the other. Any
number of dispatch processes sharing SESSION_PATH send at most once per day;
a failed send is retried on the next tick.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.log.InfoObj("dispatcher starting", "config", a.cfg)

			runtime, err := app.NewRuntime(cmd.Context(), a.cfg, a.log)
			if err != nil {
				a.log.ErrorObj("failed to initialize dispatcher", "error", err.Error())
				return err
			}
			defer runtime.Close()

			if !once {
				if err := runtime.Run(cmd.Context()); err != nil {
					return fmt.Errorf("dispatcher run: %w", err)
				}
				return nil
			}

			ran, err := runtime.RunOnce(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("dispatch: %w", err)
			}
			if ran {
				_, err = fmt.Fprintln(a.out, "dispatched")
			} else {
				_, err = fmt.Fprintln(a.out, "already dispatched today")
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "dispatch for today and exit")
	return cmd
}
