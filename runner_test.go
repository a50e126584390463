package chainrun_test

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/static"
)

const homePage = `<html><head><title>Home</title></head><body>
<h1 id="title">Home</h1>
</body></html>`

func factory() chainrun.ProviderFactory {
	return static.Factory(static.WithPage("/", static.Page{HTML: homePage}))
}

func visitHome(cy *chainrun.Cy) {
	cy.Visit("/")
}

func TestRunnerStates(t *testing.T) {
	defer goleak.VerifyNone(t)

	var hookBodyRan bool
	suite := chainrun.Describe("runner", func(s *chainrun.Suite) {
		s.BeforeEach(visitHome)
		s.It("passes", func(cy *chainrun.Cy) {
			cy.Get("#title").Should("have.text", "Home")
		})
		s.It("fails", func(cy *chainrun.Cy) {
			cy.Get("#title").Should("have.text", "Away")
		})
		s.Skip("is skipped", func(cy *chainrun.Cy) {
			t.Error("skipped case ran")
		})
		s.Context("with a broken hook", func(s *chainrun.Suite) {
			s.BeforeEach(func(cy *chainrun.Cy) {
				cy.Get("#missing")
			})
			s.It("never runs", func(cy *chainrun.Cy) {
				hookBodyRan = true
			})
		})
	})

	var out bytes.Buffer
	r := chainrun.NewRunner(
		chainrun.WithProviderFactory(factory()),
		chainrun.WithConfig(testConfig()),
		chainrun.WithReporter(chainrun.NewJSONReporter(&out)),
	)
	rep, err := r.Run(context.Background(), suite)
	require.NoError(t, err)

	require.Len(t, rep.Cases, 4)
	states := make([]chainrun.CaseState, len(rep.Cases))
	for i, c := range rep.Cases {
		states[i] = c.State
	}
	assert.Equal(t, []chainrun.CaseState{
		chainrun.StatePassed, chainrun.StateFailed, chainrun.StateSkipped, chainrun.StateErrored,
	}, states)
	assert.Equal(t, chainrun.Summary{Passed: 1, Failed: 1, Errored: 1, Skipped: 1}, rep.Summary())

	failed := rep.Cases[1]
	assert.Equal(t, "AssertionTimeout", failed.ErrorKind)
	assert.Equal(t, `"Away"`, failed.Expected)
	assert.Equal(t, `"Home"`, failed.Actual)

	errored := rep.Cases[3]
	assert.Equal(t, []string{"runner", "with a broken hook"}, errored.Path)
	assert.Equal(t, "HookError", errored.ErrorKind)
	var he *chainrun.HookError
	require.ErrorAs(t, errored.Err, &he)
	assert.Equal(t, "beforeEach", he.Hook)
	assert.Equal(t, "runner with a broken hook", he.Suite)
	assert.False(t, hookBodyRan)

	assert.Zero(t, rep.Cases[2].Duration)
	assert.NotEmpty(t, rep.RunID)
	assert.False(t, rep.OK())
	assert.Contains(t, out.String(), `"state":"errored"`)
}

func TestRunnerParallelKeepsOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var running, peak int32
	suite := chainrun.Describe("parallel", func(s *chainrun.Suite) {
		s.BeforeEach(visitHome)
		for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
			s.It(name, func(cy *chainrun.Cy) {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				cy.Get("#title").Should("exist")
			})
		}
	})

	var done []string
	rec := &recorder{caseDone: func(res chainrun.CaseResult) { done = append(done, res.Name) }}
	r := chainrun.NewRunner(
		chainrun.WithProviderFactory(factory()),
		chainrun.WithParallel(3),
		chainrun.WithConfig(testConfig()),
		chainrun.WithReporter(rec),
	)
	rep, err := r.Run(context.Background(), suite)
	require.NoError(t, err)

	assert.Equal(t, chainrun.Summary{Passed: 6}, rep.Summary())
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, done)
	assert.LessOrEqual(t, peak, int32(3))
	assert.Greater(t, peak, int32(1))
	assert.True(t, rec.runDone)
}

func TestRunnerSharedProviderIsSequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := static.New(static.WithPage("/", static.Page{HTML: homePage}))
	defer b.Close()

	var running, peak int32
	suite := chainrun.Describe("shared", func(s *chainrun.Suite) {
		for _, name := range []string{"a", "b", "c"} {
			s.It(name, func(cy *chainrun.Cy) {
				if n := atomic.AddInt32(&running, 1); n > atomic.LoadInt32(&peak) {
					atomic.StoreInt32(&peak, n)
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
			})
		}
	})
	r := chainrun.NewRunner(chainrun.WithProvider(b), chainrun.WithParallel(4))
	rep, err := r.Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, chainrun.Summary{Passed: 3}, rep.Summary())
	assert.Equal(t, int32(1), peak)
}

func TestRunnerCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	suite := chainrun.Describe("cancel", func(s *chainrun.Suite) {
		s.BeforeEach(visitHome)
		s.It("is interrupted", func(cy *chainrun.Cy) {
			cancel()
			cy.Get("#title").Should("have.text", "Away")
		})
		s.It("never starts", func(cy *chainrun.Cy) {
			t.Error("case ran after cancellation")
		})
	})
	r := chainrun.NewRunner(chainrun.WithProviderFactory(factory()), chainrun.WithConfig(testConfig()))
	rep, err := r.Run(ctx, suite)
	require.NoError(t, err)

	assert.True(t, rep.Aborted)
	assert.Equal(t, chainrun.StateErrored, rep.Cases[0].State)
	assert.ErrorIs(t, rep.Cases[0].Err, context.Canceled)
	assert.Equal(t, chainrun.StateSkipped, rep.Cases[1].State)
	assert.NotZero(t, rep.ExitCode())
}

func TestRunnerPanicsAndProviderErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite := chainrun.Describe("broken", func(s *chainrun.Suite) {
		s.It("panics", func(cy *chainrun.Cy) {
			panic("boom")
		})
	})

	r := chainrun.NewRunner(chainrun.WithProviderFactory(factory()), chainrun.WithConfig(testConfig()))
	rep, err := r.Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, chainrun.StateFailed, rep.Cases[0].State)
	assert.Equal(t, "Error", rep.Cases[0].ErrorKind)
	assert.Contains(t, rep.Cases[0].Message, "panic: boom")

	broken := func(context.Context) (chainrun.Provider, func(), error) {
		return nil, nil, errors.New("no browser")
	}
	r = chainrun.NewRunner(chainrun.WithProviderFactory(broken))
	rep, err = r.Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, chainrun.StateErrored, rep.Cases[0].State)
	assert.Contains(t, rep.Cases[0].Message, "no browser")

	_, err = chainrun.NewRunner().Run(context.Background(), suite)
	assert.Error(t, err)
}

func TestRunnerResetHook(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite := chainrun.Describe("reset", func(s *chainrun.Suite) {
		s.It("starts blank", func(cy *chainrun.Cy) {
			cy.Window().Should("have.property", "location", static.BlankPage)
		})
	})
	reset := func(cy *chainrun.Cy) {
		cy.Visit("/")
		cy.Visit(static.BlankPage)
	}
	r := chainrun.NewRunner(
		chainrun.WithProviderFactory(factory()),
		chainrun.WithConfig(testConfig()),
		chainrun.WithReset(reset),
	)
	rep, err := r.Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, chainrun.StatePassed, rep.Cases[0].State)

	r = chainrun.NewRunner(
		chainrun.WithProviderFactory(factory()),
		chainrun.WithConfig(testConfig()),
		chainrun.WithReset(func(cy *chainrun.Cy) { cy.Visit("/nowhere") }),
	)
	rep, err = r.Run(context.Background(), suite)
	require.NoError(t, err)
	var he *chainrun.HookError
	require.ErrorAs(t, rep.Cases[0].Err, &he)
	assert.Equal(t, "reset", he.Hook)
}

func TestRunnerLogsCases(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	suite := chainrun.Describe("logging", func(s *chainrun.Suite) {
		s.It("passes", visitHome)
	})
	r := chainrun.NewRunner(
		chainrun.WithProviderFactory(factory()),
		chainrun.WithConfig(testConfig()),
		chainrun.WithLogger(logger),
	)
	rep, err := r.Run(context.Background(), suite)
	require.NoError(t, err)

	var caseDone, command *logrus.Entry
	for _, e := range hook.AllEntries() {
		switch e.Message {
		case "case done":
			caseDone = e
		case "running command":
			command = e
		}
		assert.Equal(t, rep.RunID, e.Data["run"])
	}
	require.NotNil(t, caseDone)
	assert.Equal(t, "passes", caseDone.Data["case"])
	assert.Equal(t, "logging", caseDone.Data["suite"])
	assert.Equal(t, chainrun.StatePassed, caseDone.Data["state"])
	require.NotNil(t, command)
	assert.Equal(t, "visit", command.Data["command"])
	assert.Equal(t, "info", hook.LastEntry().Level.String())
}

type recorder struct {
	caseDone func(chainrun.CaseResult)
	runDone  bool
}

func (r *recorder) CaseDone(res chainrun.CaseResult) {
	r.caseDone(res)
}

func (r *recorder) RunDone(*chainrun.Report) error {
	r.runDone = true
	return nil
}
