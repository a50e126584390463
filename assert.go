package chainrun

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// errAssertion marks an attempt whose predicate did not hold.
var errAssertion = errors.New("assertion failed")

// Should asserts chainer against the subject, retrying the whole chain
// until the assertion passes or the timeout elapses. A "not." prefix
// negates the chainer. For element states the positive form passes when
// any element has the state and the negated form when none has it.
//
// have.attr and have.property with a single argument yield the attribute
// or property value to the commands that follow.
func (c Chain) Should(chainer string, args ...interface{}) Chain {
	if c.dead() {
		return c
	}
	c.consume()
	cy := c.cy
	name := strings.TrimPrefix(chainer, "not.")
	negated := name != chainer
	ch, ok := chainers[name]
	if !ok {
		return cy.fail(&CommandError{Command: "should", Locator: c.l.desc, Err: fmt.Errorf("%w %q", ErrUnknownChainer, chainer)})
	}
	if len(args) < ch.minArgs || len(args) > ch.maxArgs {
		return cy.fail(&CommandError{Command: "should", Locator: c.l.desc, Err: fmt.Errorf("%s takes %d to %d arguments, got %d", chainer, ch.minArgs, ch.maxArgs, len(args))})
	}
	cy.logCommand("should "+chainer, c.l.desc)

	var (
		last  outcome
		count int
	)
	p := cy.s.provider
	elapsed, err := cy.s.poller.WithTimeout(c.l.timeout).Poll(cy.ctx, func(ctx context.Context) error {
		sub, err := c.l.resolve(ctx)
		if err != nil {
			return err
		}
		count = len(sub.Nodes)
		if !sub.IsValue && count == 0 && !ch.allowEmpty {
			return ErrNoResults
		}
		o, err := ch.eval(ctx, p, sub, args)
		if err != nil {
			return err
		}
		last = o
		if o.pass != negated {
			return nil
		}
		return errAssertion
	})
	switch {
	case err == nil:
	case errors.Is(err, errAssertion):
		return cy.fail(&AssertionTimeout{
			Chainer:  name,
			Negated:  negated,
			Expected: last.expected,
			Actual:   last.actual,
			Locator:  c.l.desc,
			Elapsed:  elapsed,
			Diff:     diff(last.expected, last.actual),
		})
	case errors.Is(err, ErrNoResults):
		return cy.fail(&ResolutionError{Locator: c.l.desc, Count: count, Elapsed: elapsed, Err: err})
	default:
		return cy.fail(&CommandError{Command: "should " + chainer, Locator: c.l.desc, Err: err})
	}

	l := &link{desc: c.l.desc, timeout: c.l.timeout, resolve: c.l.resolve, consumed: true}
	if ch.yields != nil && len(args) == ch.minArgs {
		up := c.l.resolve
		l.desc = fmt.Sprintf("%s.its(%s)", c.l.desc, formatValue(args[0]))
		l.resolve = func(ctx context.Context) (Subject, error) {
			sub, err := up(ctx)
			if err != nil {
				return Subject{}, err
			}
			return ch.yields(ctx, p, sub, args)
		}
	}
	return Chain{cy: cy, l: l}
}

// And is Should, for readability of chained assertions.
func (c Chain) And(chainer string, args ...interface{}) Chain {
	return c.Should(chainer, args...)
}

// diff returns a unified diff of multi-line string mismatches.
func diff(expected, actual interface{}) string {
	e, ok1 := expected.(string)
	a, ok2 := actual.(string)
	if !ok1 || !ok2 || e == a || (!strings.Contains(e, "\n") && !strings.Contains(a, "\n")) {
		return ""
	}
	d, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(e),
		B:        difflib.SplitLines(a),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return d
}
