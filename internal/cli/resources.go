package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kintai-hq/kintai-client/internal/domain"
	"github.com/kintai-hq/kintai-client/pkg/api"
	"github.com/kintai-hq/kintai-client/pkg/sheets"
)

// dataCommand builds a command whose single body comes from --data.
func (a *App) dataCommand(use, short string, fn func(ctx context.Context, c *api.Client, body any) (api.Response, error)) *cobra.Command {
	return a.bodyCommand(use, short, nil, fn)
}

// bodyCommand builds a command whose body comes from --data or, when fields is
// set, from the typed flags it registers.
func (a *App) bodyCommand(use, short string, fields func(*cobra.Command) bodyBuilder, fn func(ctx context.Context, c *api.Client, body any) (api.Response, error)) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
	}
	build := func() (any, error) { return a.readData(raw) }
	usage := "JSON body, @file or - for stdin"
	if fields != nil {
		build = fields(cmd)
		usage += " (instead of the field flags)"
	}
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		body, err := a.bodyFrom(raw, build)
		if err != nil {
			return err
		}
		return a.call(func(c *api.Client) (api.Response, error) {
			return fn(cmd.Context(), c, body)
		})
	}
	cmd.Flags().StringVarP(&raw, "data", "d", "", usage)
	return cmd
}

// idCommand builds a command taking a single numeric id argument.
func (a *App) idCommand(use, short string, fn func(ctx context.Context, c *api.Client, id int64) (api.Response, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.call(func(c *api.Client) (api.Response, error) {
				return fn(cmd.Context(), c, id)
			})
		},
	}
}

// plainCommand builds a command with no arguments and no body.
func (a *App) plainCommand(use, short string, fn func(ctx context.Context, c *api.Client) (api.Response, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(func(c *api.Client) (api.Response, error) {
				return fn(cmd.Context(), c)
			})
		},
	}
}

func group(use, short string, children ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(children...)
	return cmd
}

func (a *App) usersCommand() *cobra.Command {
	return group("users", "Manage registered users",
		a.plainCommand("list", "List users", func(ctx context.Context, c *api.Client) (api.Response, error) {
			return c.Users.List(ctx)
		}),
		a.idCommand("get", "Show one user", func(ctx context.Context, c *api.Client, id int64) (api.Response, error) {
			return c.Users.Get(ctx, id)
		}),
		a.dataCommand("create", "Register a user", func(ctx context.Context, c *api.Client, body any) (api.Response, error) {
			return c.Users.Create(ctx, body)
		}),
		a.idCommand("delete", "Delete a user", func(ctx context.Context, c *api.Client, id int64) (api.Response, error) {
			return c.Users.Delete(ctx, id)
		}),
		a.dataCommand("import", "Bulk-register users", func(ctx context.Context, c *api.Client, body any) (api.Response, error) {
			return c.Users.Import(ctx, body)
		}),
	)
}

func (a *App) qrCommand() *cobra.Command {
	var raw, save string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a QR code",
		Args:  cobra.NoArgs,
	}
	build := qrRequestFlags(generate)
	generate.RunE = func(cmd *cobra.Command, _ []string) error {
		body, err := a.bodyFrom(raw, build)
		if err != nil {
			return err
		}
		if save == "" {
			return a.call(func(c *api.Client) (api.Response, error) {
				return c.QR.Generate(cmd.Context(), body)
			})
		}

		c, err := a.client()
		if err != nil {
			return err
		}
		resp, err := c.QR.Generate(cmd.Context(), body)
		if err != nil {
			return err
		}
		var code domain.QRCode
		if err := api.Decode(resp, &code); err != nil {
			return err
		}
		img, err := code.PNG()
		if err != nil {
			return err
		}
		if err := os.WriteFile(save, img, 0o644); err != nil {
			return fmt.Errorf("write qr code: %w", err)
		}
		_, err = fmt.Fprintf(a.out, "saved QR code for %s to %s\n", code.Data, save)
		return err
	}
	generate.Flags().StringVarP(&raw, "data", "d", "", "JSON body, @file or - for stdin (instead of the field flags)")
	generate.Flags().StringVar(&save, "save", "", "write the PNG image to this file instead of printing the response")

	return group("qr", "Generate and mail attendance QR codes",
		generate,
		a.bodyCommand("send", "Mail a QR code to one user", qrRequestFlags, func(ctx context.Context, c *api.Client, body any) (api.Response, error) {
			return c.QR.SendEmail(ctx, body)
		}),
		a.plainCommand("send-all", "Mail today's QR code to every user", func(ctx context.Context, c *api.Client) (api.Response, error) {
			return c.QR.SendEmailAll(ctx)
		}),
	)
}

func (a *App) attendanceCommand() *cobra.Command {
	var userID, startDate, endDate string
	list := &cobra.Command{
		Use:   "list",
		Short: "List attendance records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := map[string]string{}
			for key, v := range map[string]string{"user_id": userID, "start_date": startDate, "end_date": endDate} {
				if v != "" {
					query[key] = v
				}
			}
			return a.call(func(c *api.Client) (api.Response, error) {
				return c.Attendance.List(cmd.Context(), query)
			})
		},
	}
	list.Flags().StringVar(&userID, "user-id", "", "only records of this user")
	list.Flags().StringVar(&startDate, "start-date", "", "first date (YYYY-MM-DD)")
	list.Flags().StringVar(&endDate, "end-date", "", "last date (YYYY-MM-DD)")

	status := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set the status of a make-up request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.call(func(c *api.Client) (api.Response, error) {
				return c.Attendance.UpdateMakeUpStatus(cmd.Context(), id, args[1])
			})
		},
	}

	return group("attendance", "Record and list attendance",
		a.bodyCommand("check", "Record a check-in or check-out from a QR payload", attendanceCheckFlags, func(ctx context.Context, c *api.Client, body any) (api.Response, error) {
			return c.Attendance.Check(ctx, body)
		}),
		list,
		group("makeup", "Submit make-up requests",
			a.bodyCommand("submit", "Submit a make-up request", makeUpFlags, func(ctx context.Context, c *api.Client, body any) (api.Response, error) {
				return c.Attendance.SubmitMakeUp(ctx, body)
			}),
			status,
		),
	)
}

func (a *App) makeUpsCommand() *cobra.Command {
	var raw string
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Patch a make-up request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			body, err := a.readData(raw)
			if err != nil {
				return err
			}
			return a.call(func(c *api.Client) (api.Response, error) {
				return c.MakeUps.Update(cmd.Context(), id, body)
			})
		},
	}
	update.Flags().StringVarP(&raw, "data", "d", "", "JSON patch, @file or - for stdin")

	return group("makeups", "Manage make-up requests",
		a.plainCommand("list", "List make-up requests", func(ctx context.Context, c *api.Client) (api.Response, error) {
			return c.MakeUps.List(ctx)
		}),
		a.bodyCommand("create", "Create a make-up request", makeUpFlags, func(ctx context.Context, c *api.Client, body any) (api.Response, error) {
			return c.MakeUps.Create(ctx, body)
		}),
		update,
	)
}

func (a *App) authCommand() *cobra.Command {
	var password string
	var staff bool
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("KINTAI_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("--password or KINTAI_PASSWORD is required")
			}
			return a.call(func(c *api.Client) (api.Response, error) {
				if staff {
					return c.Auth.StaffLogin(cmd.Context(), password)
				}
				return c.Auth.Login(cmd.Context(), password)
			})
		},
	}
	login.Flags().StringVarP(&password, "password", "p", "", "login password")
	login.Flags().BoolVar(&staff, "staff", false, "sign in with the staff role")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the login state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			resp, err := c.Auth.Status(cmd.Context())
			if err != nil {
				return err
			}
			var state domain.AuthStatus
			if err := api.Decode(resp, &state); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, describeAuth(state))
			return err
		},
	}

	return group("auth", "Manage the login session",
		login,
		a.plainCommand("logout", "End the session", func(ctx context.Context, c *api.Client) (api.Response, error) {
			return c.Auth.Logout(ctx)
		}),
		status,
	)
}

func (a *App) importsCommand() *cobra.Command {
	save := &cobra.Command{
		Use:   "save FILE.xlsx",
		Short: "Parse an attendance workbook and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()

			data, err := sheets.ParseWorkbook(f, filepath.Base(args[0]))
			if err != nil {
				return err
			}
			return a.call(func(c *api.Client) (api.Response, error) {
				return c.Imports.Save(cmd.Context(), data)
			})
		},
	}

	return group("imports", "Manage imported attendance workbooks",
		save,
		a.plainCommand("list", "List imported workbooks", func(ctx context.Context, c *api.Client) (api.Response, error) {
			return c.Imports.List(ctx)
		}),
		a.idCommand("get", "Show one imported workbook", func(ctx context.Context, c *api.Client, id int64) (api.Response, error) {
			return c.Imports.Get(ctx, id)
		}),
		a.idCommand("delete", "Delete an imported workbook", func(ctx context.Context, c *api.Client, id int64) (api.Response, error) {
			return c.Imports.Delete(ctx, id)
		}),
	)
}

func (a *App) salariesCommand() *cobra.Command {
	export := &cobra.Command{
		Use:   "export FILE.xlsx",
		Short: "Write every teacher's salary settings to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			resp, err := c.Salaries.List(cmd.Context())
			if err != nil {
				return err
			}
			var salaries []domain.TeacherSalary
			if err := api.Decode(resp, &salaries); err != nil {
				return err
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create workbook: %w", err)
			}
			if err := sheets.ExportSalaries(f, salaries); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close workbook: %w", err)
			}
			fmt.Fprintf(a.out, "exported %d salaries to %s\n", len(salaries), args[0])
			return nil
		},
	}

	return group("salaries", "Manage teacher salary settings",
		a.plainCommand("list", "List salary settings", func(ctx context.Context, c *api.Client) (api.Response, error) {
			return c.Salaries.List(ctx)
		}),
		a.dataCommand("save", "Create or update a salary setting", func(ctx context.Context, c *api.Client, body any) (api.Response, error) {
			return c.Salaries.Save(ctx, body)
		}),
		a.idCommand("delete", "Delete a salary setting", func(ctx context.Context, c *api.Client, id int64) (api.Response, error) {
			return c.Salaries.Delete(ctx, id)
		}),
		export,
	)
}

func (a *App) leaveCommand() *cobra.Command {
	return group("leave", "Record paid leave",
		a.dataCommand("create", "Record a paid leave day", func(ctx context.Context, c *api.Client, body any) (api.Response, error) {
			return c.PaidLeave.Create(ctx, body)
		}),
		a.plainCommand("list", "List paid leave", func(ctx context.Context, c *api.Client) (api.Response, error) {
			return c.PaidLeave.List(ctx)
		}),
	)
}

func (a *App) endpointsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "Print the API route catalog",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, ep := range api.Endpoints() {
				if _, err := fmt.Fprintf(a.out, "%-20s %s\n", ep.Name, ep); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *App) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			resp, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			var health struct {
				Status string `json:"status"`
			}
			if err := api.Decode(resp, &health); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s: %s\n", a.session.Transport.BaseURL(), health.Status)
			return err
		},
	}
}
