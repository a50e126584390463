package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/devtools"
	"github.com/chromedp/chainrun/internal/errext"
	"github.com/chromedp/chainrun/internal/errext/exitcodes"
	"github.com/chromedp/chainrun/loader"
	"github.com/chromedp/chainrun/static"
)

type cmdRun struct {
	gs   *globalState
	root *rootCommand

	configPath string
	staticDir  string
	execPath   string
}

func getRunCmd(gs *globalState, root *rootCommand) *cobra.Command {
	c := &cmdRun{gs: gs, root: root}
	runCmd := &cobra.Command{
		Use:   "run [flags] files...",
		Short: "Run suites",
		Long: `Run the suites declared in YAML files or directories of YAML files.

Settings are read from the built-in defaults, then the config file, then the
CHAINRUN_* environment variables, then the flags; later layers win.`,
		Example: `
  # Run against a local headless Chrome.
  chainrun run suites/

  # Run against a browser that is already running.
  chainrun run --remote ws://127.0.0.1:9222/devtools/browser/... suites/

  # Run against static HTML pages, four cases at a time.
  chainrun run --static site/ --parallel 4 suites/`[1:],
		Args: cobra.MinimumNArgs(1),
		RunE: c.run,
	}
	runCmd.Flags().SortFlags = false
	runCmd.Flags().AddFlagSet(c.flagSet())
	return runCmd
}

func (c *cmdRun) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	flags.Duration("timeout", 0, "default command timeout")
	flags.Duration("poll-interval", 0, "interval between retries")
	flags.String("base-url", "", "URL relative visits are joined to")
	flags.String("reporter", "", "reporter: spec or json")
	flags.Int64("parallel", 0, "number of cases run at the same time")
	flags.Int64("viewport-width", 0, "viewport width")
	flags.Int64("viewport-height", 0, "viewport height")
	flags.String("snapshot-dir", "", "directory screenshots are compared against")
	flags.String("remote", "", "DevTools websocket URL of a running browser")
	flags.Bool("headless", true, "run the local browser headless")
	flags.StringVar(&c.execPath, "exec-path", "", "browser executable")
	flags.StringVar(&c.staticDir, "static", "", "serve the HTML files of a directory with the static provider")
	return flags
}

// getConfig returns the config set by flags. Only changed flags are valid.
func getConfig(flags *pflag.FlagSet) chainrun.Config {
	return chainrun.Config{
		Timeout:        getNullDuration(flags, "timeout"),
		PollInterval:   getNullDuration(flags, "poll-interval"),
		BaseURL:        getNullString(flags, "base-url"),
		Reporter:       getNullString(flags, "reporter"),
		Parallel:       getNullInt64(flags, "parallel"),
		ViewportWidth:  getNullInt64(flags, "viewport-width"),
		ViewportHeight: getNullInt64(flags, "viewport-height"),
		SnapshotDir:    getNullString(flags, "snapshot-dir"),
		RemoteURL:      getNullString(flags, "remote"),
		Headless:       getNullBool(flags, "headless"),
	}
}

// consolidateConfig merges the config layers and validates the result.
func (c *cmdRun) consolidateConfig(flags *pflag.FlagSet) (chainrun.Config, error) {
	conf := chainrun.DefaultConfig()
	if c.configPath != "" {
		fileConf, err := chainrun.ReadConfigFile(c.gs.fs, c.configPath)
		if err != nil {
			return conf, err
		}
		conf = conf.Apply(fileConf)
	}
	envConf, err := chainrun.ReadEnvConfig(c.gs.envLookup)
	if err != nil {
		return conf, fmt.Errorf("couldn't read environment: %w", err)
	}
	conf = conf.Apply(envConf).Apply(getConfig(flags))
	return conf, conf.Validate()
}

func (c *cmdRun) run(cmd *cobra.Command, args []string) error {
	logger := c.gs.logger
	conf, err := c.consolidateConfig(cmd.Flags())
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	suites, err := loader.Load(c.gs.fs, args...)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.LoadError)
	}

	ctx, stop := signal.NotifyContext(c.gs.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, shutdown, err := c.provider(ctx, conf, logger)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.ProviderFailure)
	}
	defer shutdown()

	reporter, err := chainrun.NewReporter(conf.Reporter.String, c.gs.stdOut, c.root.noColor || !c.gs.stdOut.isTTY)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	runner := chainrun.NewRunner(
		chainrun.WithProviderFactory(factory),
		chainrun.WithParallel(int(conf.Parallel.Int64)),
		chainrun.WithConfig(conf),
		chainrun.WithLogger(logger),
		chainrun.WithReporter(reporter),
		chainrun.WithFs(c.gs.fs),
		chainrun.WithReset(func(cy *chainrun.Cy) {
			cy.Visit(static.BlankPage)
		}),
	)
	report, err := runner.Run(ctx, suites...)
	if err != nil {
		return err
	}
	switch code := report.ExitCode(); code {
	case exitcodes.OK:
		return nil
	case exitcodes.RunAborted:
		return errext.WithExitCodeIfNone(errors.New("run aborted"), code)
	default:
		s := report.Summary()
		return errext.WithExitCodeIfNone(fmt.Errorf("%d failed and %d errored of %d cases", s.Failed, s.Errored, len(report.Cases)), code)
	}
}

// provider returns the factory of the configured browser and the func
// releasing it.
func (c *cmdRun) provider(ctx context.Context, conf chainrun.Config, logger logrus.FieldLogger) (chainrun.ProviderFactory, func(), error) {
	width, height := conf.ViewportWidth.Int64, conf.ViewportHeight.Int64
	if c.staticDir != "" {
		pages, err := static.LoadDir(c.gs.fs, c.staticDir)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't read static pages: %w", err)
		}
		logger.WithField("pages", len(pages)).Debug("serving static pages")
		return static.Factory(
			static.WithPages(pages),
			static.WithViewport(width, height),
			static.WithLogger(logger),
		), func() {}, nil
	}

	opts := []devtools.PoolOption{
		devtools.Headless(conf.Headless.Bool),
		devtools.WindowSize(int(width), int(height)),
		devtools.PoolLogger(logger),
	}
	if u := conf.RemoteURL.String; u != "" {
		opts = append(opts, devtools.RemoteURL(u))
	}
	if c.execPath != "" {
		opts = append(opts, devtools.ExecPath(c.execPath))
	}
	pool, err := devtools.NewPool(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return pool.Factory(), func() {
		if err := pool.Shutdown(); err != nil {
			logger.WithError(err).Warn("couldn't shut down the browser")
		}
	}, nil
}
