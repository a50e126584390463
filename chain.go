package chainrun

import (
	"context"
	"fmt"
	"time"
)

// link is one step of a query chain: how to resolve its subject from
// scratch. Links never change once built, apart from the consumed mark.
type link struct {
	desc     string
	timeout  time.Duration
	resolve  func(context.Context) (Subject, error)
	consumed bool
}

// Chain is an immutable handle on a lazily resolved subject. Every method
// returns a new Chain; the receiver is left as is.
//
// A Chain returned after a failure is dead: its methods do nothing.
type Chain struct {
	cy *Cy
	l  *link
}

// Err returns the error recorded for the case the chain belongs to.
func (c Chain) Err() error {
	if c.cy == nil {
		return nil
	}
	return c.cy.Err()
}

// Locator describes how the chain's subject is found.
func (c Chain) Locator() string {
	if c.l == nil {
		return ""
	}
	return c.l.desc
}

// Resolve resolves the chain once, without retrying or consuming it.
func (c Chain) Resolve(ctx context.Context) (Subject, error) {
	if c.l == nil {
		return Subject{}, c.Err()
	}
	return c.l.resolve(ctx)
}

func (c Chain) dead() bool {
	return c.cy == nil || c.l == nil || c.cy.failed()
}

func (c Chain) consume() {
	c.l.consumed = true
}

// derive builds a lazy child query from c.
func (c Chain) derive(desc string, fn func(context.Context, Subject) (Subject, error)) Chain {
	if c.dead() {
		return c
	}
	c.consume()
	up := c.l.resolve
	c.cy.logCommand(desc, c.l.desc)
	return c.cy.chain(c.l.desc+"."+desc, c.l.timeout, func(ctx context.Context) (Subject, error) {
		sub, err := up(ctx)
		if err != nil {
			return Subject{}, err
		}
		return fn(ctx, sub)
	})
}

// deriveNodes is derive for queries mapping an element set to another.
func (c Chain) deriveNodes(desc string, fn func(context.Context, []NodeID) ([]NodeID, error)) Chain {
	return c.derive(desc, func(ctx context.Context, sub Subject) (Subject, error) {
		if sub.IsValue {
			return Subject{}, Permanent(fmt.Errorf("%s: %w: got %s", desc, ErrInvalidSubject, sub))
		}
		nodes, err := fn(ctx, sub.Nodes)
		if err != nil {
			return Subject{}, err
		}
		return NodeSubject(dedupe(nodes)...), nil
	})
}

// resolveExisting retries resolving l until it yields at least one element
// and check, when given, accepts the subject.
func (cy *Cy) resolveExisting(l *link, want string, check func(Subject) error) (Subject, error) {
	var (
		sub   Subject
		count int
	)
	elapsed, err := cy.s.poller.WithTimeout(l.timeout).Poll(cy.ctx, func(ctx context.Context) error {
		var err error
		sub, err = l.resolve(ctx)
		if err != nil {
			return err
		}
		count = len(sub.Nodes)
		if !sub.IsValue && count == 0 {
			return ErrNoResults
		}
		if check != nil {
			return check(sub)
		}
		return nil
	})
	if err != nil {
		return Subject{}, &ResolutionError{
			Locator: l.desc,
			Count:   count,
			Want:    want,
			Elapsed: elapsed,
			Err:     err,
		}
	}
	return sub, nil
}

func exactlyOne(sub Subject) error {
	switch {
	case sub.IsValue:
		return Permanent(fmt.Errorf("%w: got %s", ErrInvalidSubject, sub))
	case len(sub.Nodes) > 1:
		return ErrTooManyResults
	}
	return nil
}

func elementsOnly(sub Subject) error {
	if sub.IsValue {
		return Permanent(fmt.Errorf("%w: got %s", ErrInvalidSubject, sub))
	}
	return nil
}

// Get consumes c and queries sel from the current scope, like Cy.Get.
func (c Chain) Get(sel string) Chain {
	if c.dead() {
		return c
	}
	c.consume()
	return c.cy.Get(sel)
}

// WithTimeout returns a chain whose later commands retry for d.
func (c Chain) WithTimeout(d time.Duration) Chain {
	if c.dead() {
		return c
	}
	c.consume()
	l := &link{desc: c.l.desc, timeout: d, resolve: c.l.resolve}
	c.cy.st.pending = append(c.cy.st.pending, l)
	return Chain{cy: c.cy, l: l}
}

// Within runs fn with an entry point scoped to the subject, which must be
// exactly one element. Queries inside fn start from that element; the
// outer scope is unaffected however fn returns.
func (c Chain) Within(fn func(cy *Cy)) Chain {
	if c.dead() {
		return c
	}
	c.consume()
	c.cy.logCommand("within", c.l.desc)
	sub, err := c.cy.resolveExisting(c.l, "exactly one element", exactlyOne)
	if err != nil {
		return c.cy.fail(err)
	}
	inner := &Cy{
		ctx: c.cy.ctx,
		s:   c.cy.s,
		st:  c.cy.st,
		scope: &scope{
			node:   sub.Nodes[0],
			desc:   c.l.desc,
			parent: c.cy.scope,
		},
	}
	fn(inner)
	if inner.flush() != nil {
		return Chain{cy: c.cy}
	}
	return c.cy.settled(c.l.desc, sub)
}
