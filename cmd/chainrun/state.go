package main

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// globalState holds everything the commands touch outside of their flags,
// so tests can run them against in-memory files and buffers.
type globalState struct {
	ctx context.Context

	fs        afero.Fs
	args      []string
	envLookup func(string) (string, bool)

	stdOut, stdErr *consoleWriter
	logger         *logrus.Logger

	osExit func(int)
}

func newGlobalState(ctx context.Context) *globalState {
	mu := &sync.Mutex{}
	stdoutTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	stderrTTY := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	stdOut := &consoleWriter{colorable.NewColorableStdout(), stdoutTTY, mu}
	stdErr := &consoleWriter{colorable.NewColorableStderr(), stderrTTY, mu}

	return &globalState{
		ctx:       ctx,
		fs:        afero.NewOsFs(),
		args:      append([]string(nil), os.Args...),
		envLookup: os.LookupEnv,
		stdOut:    stdOut,
		stdErr:    stdErr,
		logger: &logrus.Logger{
			Out:       stdErr,
			Formatter: &logrus.TextFormatter{ForceColors: stderrTTY},
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
		osExit: os.Exit,
	}
}

// consoleWriter serializes writes to a terminal shared by the reporter and
// the logger.
type consoleWriter struct {
	io.Writer
	isTTY bool
	mu    *sync.Mutex
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Writer.Write(p)
}

// noColor strips escape sequences from everything written later.
func (w *consoleWriter) noColor() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Writer = colorable.NewNonColorable(w.Writer)
	w.isTTY = false
}
