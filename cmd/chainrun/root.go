package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chromedp/chainrun/internal/errext"
	"github.com/chromedp/chainrun/internal/errext/exitcodes"
)

type rootCommand struct {
	gs  *globalState
	cmd *cobra.Command

	logLevel  string
	logFormat string
	noColor   bool
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{gs: gs}
	c.cmd = &cobra.Command{
		Use:               "chainrun",
		Short:             "run declarative browser suites",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	c.cmd.PersistentFlags().AddFlagSet(c.persistentFlagSet())
	c.cmd.AddCommand(getRunCmd(gs, c), getVersionCmd(gs))
	return c
}

func (c *rootCommand) persistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
	flags.BoolVar(&c.noColor, "no-color", false, "disable colored output")
	return flags
}

func (c *rootCommand) persistentPreRunE(*cobra.Command, []string) error {
	if !c.noColor {
		if _, ok := c.gs.envLookup("NO_COLOR"); ok {
			c.noColor = true
		}
	}
	if c.noColor {
		c.gs.stdOut.noColor()
		c.gs.stdErr.noColor()
	}

	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	c.gs.logger.SetLevel(level)
	switch c.logFormat {
	case "json":
		c.gs.logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		c.gs.logger.SetFormatter(&logrus.TextFormatter{ForceColors: c.gs.stdErr.isTTY, DisableColors: c.noColor})
	default:
		return errext.WithExitCodeIfNone(fmt.Errorf("unsupported log format %q", c.logFormat), exitcodes.InvalidConfig)
	}
	return nil
}

// execute runs the command line and exits with the error's exit code.
func (c *rootCommand) execute() {
	c.cmd.SetArgs(c.gs.args[1:])
	c.cmd.SetOut(c.gs.stdOut)
	c.cmd.SetErr(c.gs.stdErr)
	err := c.cmd.Execute()
	if err == nil {
		return
	}
	msg, fields := errext.Format(err)
	c.gs.logger.WithFields(fields).Error(msg)
	c.gs.osExit(int(errext.ExitCodeOf(err, exitcodes.GenericEngine)))
}
