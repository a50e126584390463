package chainrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Runner runs suites against providers and reports the results.
type Runner struct {
	factory   ProviderFactory
	shared    bool
	parallel  int
	cfg       Config
	log       logrus.FieldLogger
	reset     func(*Cy)
	reporters []Reporter
	fs        afero.Fs
}

// RunnerOption is a Runner option.
type RunnerOption = func(*Runner)

// WithProvider runs every case against p. A shared provider forces
// sequential execution.
func WithProvider(p Provider) RunnerOption {
	return func(r *Runner) {
		r.factory = func(context.Context) (Provider, func(), error) {
			return p, func() {}, nil
		}
		r.shared = true
	}
}

// WithProviderFactory creates an isolated provider for each case.
func WithProviderFactory(f ProviderFactory) RunnerOption {
	return func(r *Runner) {
		r.factory = f
		r.shared = false
	}
}

// WithParallel sets how many cases run at once. It only has an effect
// with WithProviderFactory.
func WithParallel(n int) RunnerOption {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.parallel = n
	}
}

// WithConfig sets the config of every case.
func WithConfig(c Config) RunnerOption {
	return func(r *Runner) {
		r.cfg = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// WithReset sets a hook run at the start of every case's setup, before
// any beforeEach hook. It typically navigates to a blank page.
func WithReset(fn func(cy *Cy)) RunnerOption {
	return func(r *Runner) {
		r.reset = fn
	}
}

// WithReporter adds a reporter.
func WithReporter(rep Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporters = append(r.reporters, rep)
	}
}

// WithFs sets the file system snapshots are read from and written to.
func WithFs(fs afero.Fs) RunnerOption {
	return func(r *Runner) {
		r.fs = fs
	}
}

// NewRunner creates a runner.
func NewRunner(opts ...RunnerOption) *Runner {
	l := logrus.New()
	l.SetOutput(io.Discard)
	r := &Runner{
		cfg: DefaultConfig(),
		log: l,
		fs:  afero.NewOsFs(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run runs the cases of suites in declaration order and returns the
// report. The error is only non-nil when no provider is configured or a
// reporter failed; case failures are in the report.
func (r *Runner) Run(ctx context.Context, suites ...*Suite) (*Report, error) {
	if r.factory == nil {
		return nil, errors.New("no provider configured")
	}
	rep := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	log := r.log.WithField("run", rep.RunID)
	cases := plan(suites)
	log.WithField("cases", len(cases)).Info("run started")

	results := make([]CaseResult, len(cases))
	if r.shared || r.parallel <= 1 {
		for i, pc := range cases {
			results[i] = r.runCase(ctx, log, pc)
			r.caseDone(results[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.parallel)
		for i, pc := range cases {
			i, pc := i, pc
			g.Go(func() error {
				results[i] = r.runCase(ctx, log, pc)
				return nil
			})
		}
		_ = g.Wait()
		for _, res := range results {
			r.caseDone(res)
		}
	}

	rep.Cases = results
	rep.Duration = time.Since(rep.Started)
	rep.Aborted = ctx.Err() != nil
	s := rep.Summary()
	log.WithFields(logrus.Fields{
		"passed":  s.Passed,
		"failed":  s.Failed,
		"errored": s.Errored,
		"skipped": s.Skipped,
		"aborted": rep.Aborted,
	}).Info("run done")

	var err error
	for _, rp := range r.reporters {
		if rerr := rp.RunDone(rep); rerr != nil && err == nil {
			err = rerr
		}
	}
	return rep, err
}

func (r *Runner) caseDone(res CaseResult) {
	for _, rp := range r.reporters {
		rp.CaseDone(res)
	}
}

// runCase takes one case through Setup and Running to a final state.
func (r *Runner) runCase(ctx context.Context, log logrus.FieldLogger, pc planned) CaseResult {
	c := pc.c
	log = log.WithFields(logrus.Fields{
		"suite": strings.Join(c.suite.Path(), " "),
		"case":  c.Name,
	})
	start := time.Now()
	done := func(state CaseState, err error) CaseResult {
		d := time.Since(start)
		if state == StateSkipped {
			d = 0
		}
		l := log.WithField("state", state)
		if err != nil {
			l = l.WithError(err)
		}
		l.Debug("case done")
		return newCaseResult(c, state, d, err)
	}
	if c.Skip || ctx.Err() != nil {
		return done(StateSkipped, nil)
	}

	log.WithField("state", StateSetup).Debug("case state")
	p, release, err := r.factory(ctx)
	if err != nil {
		return done(StateErrored, &CommandError{Command: "provider", Err: err})
	}
	defer release()

	cy := NewCy(ctx, p, WithCyLogger(log), WithCyConfig(r.cfg), WithCyFs(r.fs))
	if r.reset != nil {
		if err := protect(cy, r.reset); err != nil {
			return done(StateErrored, &HookError{Suite: strings.Join(c.suite.Path(), " "), Hook: "reset", Err: err})
		}
	}
	for _, h := range pc.hooks {
		if err := protect(cy, h.fn); err != nil {
			return done(StateErrored, &HookError{Suite: strings.Join(h.suite.Path(), " "), Hook: "beforeEach", Err: err})
		}
	}

	log.WithField("state", StateRunning).Debug("case state")
	if err := protect(cy, c.Body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return done(StateErrored, err)
		}
		return done(StateFailed, err)
	}
	return done(StatePassed, nil)
}

// protect runs fn, turning a panic into the case error, and flushes the
// chains fn left unconsumed.
func protect(cy *Cy, fn func(*Cy)) (err error) {
	defer func() {
		if v := recover(); v != nil {
			cy.fail(fmt.Errorf("panic: %v", v))
			err = cy.Err()
		}
	}()
	if fn != nil {
		fn(cy)
	}
	return cy.Flush()
}
