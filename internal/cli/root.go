// Package cli exposes every facade operation as a kintai subcommand.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kintai-hq/kintai-client/internal/app"
	"github.com/kintai-hq/kintai-client/internal/config"
	"github.com/kintai-hq/kintai-client/internal/logger"
	"github.com/kintai-hq/kintai-client/pkg/api"
)

// App carries the state shared by all commands of one invocation.
type App struct {
	cfg     *config.Config
	log     logger.Logger
	in      io.Reader
	out     io.Writer
	baseURL string
	session *app.Session
}

// Execute runs the kintai command line with os.Args.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &App{in: os.Stdin, out: os.Stdout}
	defer a.close()

	err := a.run(ctx, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kintai: %v\n", err)
	}
	return err
}

func (a *App) run(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.out)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "kintai",
		Short: "Attendance management API client",
		Long: `kintai talks to the attendance backend: users, QR codes, attendance,
make-up requests, imported spreadsheets, teacher salaries and paid leave.
It also runs the daily QR mail dispatcher and a development proxy.

Responses are printed as returned by the backend, indented when they are JSON.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "API base path (overrides API_BASE_URL)")

	root.AddCommand(
		a.usersCommand(),
		a.qrCommand(),
		a.attendanceCommand(),
		a.makeUpsCommand(),
		a.authCommand(),
		a.importsCommand(),
		a.salariesCommand(),
		a.leaveCommand(),
		a.healthCommand(),
		a.endpointsCommand(),
		a.proxyCommand(),
		a.dispatchCommand(),
	)
	return root
}

// setup loads config and the logger once, before any command runs.
func (a *App) setup(*cobra.Command, []string) error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}
	if a.baseURL != "" {
		a.cfg.APIBaseURL = strings.TrimRight(a.baseURL, "/")
	}
	if a.log == nil {
		log, err := logger.Init(a.cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		a.log = log
	}
	return nil
}

// client opens the session on first use.
func (a *App) client() (*api.Client, error) {
	if a.session != nil {
		return a.session.Client, nil
	}
	session, err := app.OpenSession(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.session = session
	a.log.DebugObj("session opened", "session_meta", map[string]any{
		"base_url":    session.Transport.BaseURL(),
		"store_type":  a.cfg.SessionStoreType,
		"credentials": a.cfg.WithCredentials,
	})
	return session.Client, nil
}

func (a *App) close() {
	if a.session != nil {
		if err := a.session.Close(); err != nil && a.log != nil {
			a.log.WarnObj("session close failed", "error", err.Error())
		}
		a.session = nil
	}
	_ = logger.Close()
}

// call runs fn against the facade and prints whatever the backend returned,
// including the body of error responses.
func (a *App) call(fn func(c *api.Client) (api.Response, error)) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	resp, err := fn(c)
	if resp != nil {
		if perr := a.print(resp.Body()); perr != nil {
			return errors.Join(err, perr)
		}
	}
	return err
}

func (a *App) print(body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if json.Valid(body) && json.Indent(&buf, body, "", "  ") == nil {
		buf.WriteByte('\n')
		_, err := a.out.Write(buf.Bytes())
		return err
	}
	_, err := fmt.Fprintln(a.out, strings.TrimRight(string(body), "\n"))
	return err
}

// readData decodes the --data flag: inline JSON, @path for a file, or - for stdin.
func (a *App) readData(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("--data is required")
	}

	var data []byte
	switch {
	case raw == "-":
		b, err := io.ReadAll(a.in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		data = b
	case strings.HasPrefix(raw, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		data = b
	default:
		data = []byte(raw)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse --data as JSON: %w", err)
	}
	return v, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
