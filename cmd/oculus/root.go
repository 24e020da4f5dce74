package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oculus-oct/oculus-go/config"
	"github.com/oculus-oct/oculus-go/internal/bootstrap"
	apperrors "github.com/oculus-oct/oculus-go/internal/errors"
)

// errNotLoggedIn is returned by commands that need a session when none is held.
var errNotLoggedIn = errors.New("not logged in, run `oculus login` first")

// cli holds the state shared by every command of one invocation.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	jsonOut bool
	query   string

	// loadConfig and appOptions are replaced in tests.
	loadConfig func() (config.AppConfig, error)
	appOptions bootstrap.AppOptions

	app *bootstrap.App
	// sessionLost is set when a stored session was rejected during startup.
	sessionLost bool
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{in: in, out: out, errOut: errOut, loadConfig: bootstrap.LoadConfig}
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, c *cli, args []string) int {
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	err := root.ExecuteContext(ctx)
	if closeErr := c.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err == nil {
		return 0
	}
	fmt.Fprintln(c.errOut, "error:", describe(err))
	return 1
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "oculus",
		Short: "Oculus OCT review client",
		Long: `oculus signs in to the Oculus backend, uploads OCT scans, shows their AI
analysis and manages reviews. The session is kept between runs in the configured
session store (SESSION_BACKEND).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return c.open(cmd.Context())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print results as JSON")
	root.PersistentFlags().StringVar(&c.query, "query", "", "JMESPath expression applied to the JSON result")

	root.AddCommand(
		newLoginCmd(c),
		newSignupCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newStatusCmd(c),
		newProfileCmd(c),
		newImagesCmd(c),
		newAnalysisCmd(c),
		newReviewsCmd(c),
	)
	return root
}

// open loads configuration, wires the app and runs the session startup.
func (c *cli) open(ctx context.Context) error {
	if c.app != nil {
		return nil
	}
	if c.query != "" {
		if err := validateQuery(c.query); err != nil {
			return err
		}
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger := bootstrap.InitLogger(cfg.Log, c.errOut)

	opts := c.appOptions
	opts.Config = &cfg
	opts.Logger = logger
	app, err := bootstrap.NewApp(ctx, opts)
	if err != nil {
		return err
	}
	c.app = app

	stored, err := app.Store.Get(ctx)
	hadSession := err == nil && stored.HasTokens()
	<-app.Sessions.Start(ctx)
	c.sessionLost = hadSession && !app.Sessions.IsAuthenticated()
	return nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *cli) requireSession() error {
	if c.app.Sessions.IsAuthenticated() {
		return nil
	}
	if c.sessionLost {
		return apperrors.SessionExpired(nil)
	}
	return errNotLoggedIn
}

func (c *cli) printer() *printer {
	return &printer{out: c.out, json: c.jsonOut, query: c.query}
}

// describe renders an error for the terminal, including backend field errors.
func describe(err error) string {
	if apperrors.IsSessionExpired(err) {
		return "session expired, run `oculus login` again"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		return appErr.Detail()
	}
	return err.Error()
}
