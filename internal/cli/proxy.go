package cli

import (
	"github.com/spf13/cobra"

	"github.com/kintai-hq/kintai-client/pkg/devproxy"
	"github.com/kintai-hq/kintai-client/pkg/sheets"
)

func (a *App) proxyCommand() *cobra.Command {
	var listen, backend, static string
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Serve the front-end and forward /api to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := devproxy.Options{
				Listen:    a.cfg.ProxyListen,
				Backend:   a.cfg.ProxyBackend,
				StaticDir: a.cfg.ProxyStaticDir,
				Logger:    a.log,
			}
			if listen != "" {
				opts.Listen = listen
			}
			if backend != "" {
				opts.Backend = backend
			}
			if static != "" {
				opts.StaticDir = static
			}
			if a.cfg.SheetsLibraryURL != "" && a.cfg.SheetsLibraryPath != "" {
				opts.Loader = sheets.NewRemoteLoader(
					a.cfg.SheetsLibraryURL,
					a.cfg.SheetsLibraryPath,
					nil,
					a.log,
				)
			}

			srv, err := devproxy.New(opts)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides PROXY_LISTEN)")
	cmd.Flags().StringVar(&backend, "backend", "", "backend origin (overrides PROXY_BACKEND)")
	cmd.Flags().StringVar(&static, "static", "", "static asset directory (overrides PROXY_STATIC_DIR)")
	return cmd
}
