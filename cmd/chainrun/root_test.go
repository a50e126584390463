package main

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedp/chainrun/internal/errext/exitcodes"
)

// safeBuffer is a buffer safe for concurrent writes.
type safeBuffer struct {
	b bytes.Buffer
	m sync.RWMutex
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.b.Write(p)
}

func (b *safeBuffer) String() string {
	b.m.RLock()
	defer b.m.RUnlock()
	return b.b.String()
}

type globalTestState struct {
	*globalState
	stdOut, stdErr *safeBuffer
	env            map[string]string

	exitCode int
}

func newGlobalTestState(t *testing.T) *globalTestState {
	t.Helper()
	ts := &globalTestState{
		stdOut:   &safeBuffer{},
		stdErr:   &safeBuffer{},
		env:      map[string]string{},
		exitCode: -1,
	}
	mu := &sync.Mutex{}
	logger := &logrus.Logger{
		Out:       ts.stdErr,
		Formatter: &logrus.TextFormatter{DisableColors: true},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ts.globalState = &globalState{
		ctx:  ctx,
		fs:   afero.NewMemMapFs(),
		args: []string{"chainrun"},
		envLookup: func(k string) (string, bool) {
			v, ok := ts.env[k]
			return v, ok
		},
		stdOut: &consoleWriter{ts.stdOut, false, mu},
		stdErr: &consoleWriter{ts.stdErr, false, mu},
		logger: logger,
		osExit: func(code int) {
			ts.exitCode = code
		},
	}
	return ts
}

func (ts *globalTestState) run(args ...string) {
	ts.args = append([]string{"chainrun"}, args...)
	newRootCommand(ts.globalState).execute()
}

func TestVersion(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	ts.run("version")
	assert.Equal(t, -1, ts.exitCode)
	assert.Contains(t, ts.stdOut.String(), "chainrun "+version)
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	ts.run("--log-level", "loud", "version")
	assert.Equal(t, int(exitcodes.InvalidConfig), ts.exitCode)
	assert.Contains(t, ts.stdErr.String(), "not a valid logrus Level")
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	ts.run("frobnicate")
	require.Equal(t, int(exitcodes.GenericEngine), ts.exitCode)
	assert.Contains(t, ts.stdErr.String(), "unknown command")
}
