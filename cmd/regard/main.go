package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/regardlab/regard/internal/app"
	"github.com/regardlab/regard/internal/prefs"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "regard: %v\n", err)
		return 1
	}
	return 0
}

// cli carries the global flags and the streams the commands talk to.
type cli struct {
	opts app.Options
	in   io.Reader
	out  io.Writer
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}

	root := &cobra.Command{
		Use:   "regard",
		Short: "Terminal client for the clinical eye-tracking service",
		Long: `regard runs eye-tracking assessments against the clinical backend.

Without a subcommand it starts the interactive terminal UI. Gaze samples are
read as JSON lines from the configured gaze_source (a file, a FIFO or "-"
for stdin).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), c.opts)
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.ConfigPath, "config", "", "config file (default ~/.config/regard/config.toml)")
	flags.StringVar(&c.opts.PrefsPath, "prefs", prefs.DefaultPath(), "preferences file")
	flags.StringVar(&c.opts.APIURL, "api", "", "backend URL, overrides the config")
	flags.BoolVarP(&c.opts.Verbose, "verbose", "v", false, "debug logging")
	root.Flags().StringVar(&c.opts.GazeSource, "gaze", "", "gaze feed: file, FIFO or - for stdin")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.testsCmd(),
		c.testCmd(),
		c.statsCmd(),
		c.patientsCmd(),
		c.exportCmd(),
		c.predictCmd(),
		c.logsCmd(),
	)
	return root
}

// withRuntime bootstraps the application without the UI and runs fn.
func (c *cli) withRuntime(fn func(rt *app.Runtime) error) error {
	rt, err := app.Bootstrap(c.opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// withSession is withRuntime for commands that need a signed-in patient.
func (c *cli) withSession(fn func(rt *app.Runtime) error) error {
	return c.withRuntime(func(rt *app.Runtime) error {
		if !rt.Client.IsAuthenticated() {
			return errNotSignedIn
		}
		return fn(rt)
	})
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
