package chainrun

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// TypeOptions are the options of Type and Clear.
type TypeOptions struct {
	// Delay between keystrokes. Zero uses the configured keystroke delay,
	// a negative value types without delay.
	Delay time.Duration
	// Force skips the actionability checks.
	Force bool
	// Timeout overrides the command timeout.
	Timeout time.Duration
}

// ClickOptions are the options of Click and Dblclick.
type ClickOptions struct {
	// Position is the named point to click. It defaults to Center.
	Position Position
	// X and Y are the point to click relative to the element's top-left
	// corner, used when UseCoords is set.
	X, Y      float64
	UseCoords bool
	// Force skips the actionability checks.
	Force bool
	// Multiple clicks every element of the subject instead of requiring a
	// single one.
	Multiple bool
	// Timeout overrides the command timeout.
	Timeout time.Duration
}

// CheckOptions are the options of Check and Uncheck.
type CheckOptions struct {
	Force   bool
	Timeout time.Duration
}

// SelectOptions are the options of Select.
type SelectOptions struct {
	Force   bool
	Timeout time.Duration
}

// TriggerOptions are the options of Trigger.
type TriggerOptions struct {
	Force bool
	// Position is the named point the event is dispatched at.
	Position Position
	Timeout  time.Duration
}

// act is the shared shape of actions: resolve the subject with retries,
// narrow it to the targets, wait for the targets to be actionable unless
// forced, then run do once. The returned chain yields the same subject
// without resolving it again.
func (c Chain) act(command string, want string, check func(Subject) error, targets func(context.Context, []NodeID) ([]NodeID, error), a actionability, force bool, timeout time.Duration, do func(context.Context, []NodeID) error) Chain {
	if c.dead() {
		return c
	}
	c.consume()
	cy := c.cy
	cy.logCommand(command, c.l.desc)
	l := c.l
	if timeout > 0 {
		l = &link{desc: l.desc, timeout: timeout, resolve: l.resolve}
	}
	sub, err := cy.resolveExisting(l, want, func(sub Subject) error {
		if err := elementsOnly(sub); err != nil {
			return err
		}
		if check != nil {
			return check(sub)
		}
		return nil
	})
	if err != nil {
		return cy.fail(err)
	}
	nodes := sub.Nodes
	if targets != nil {
		if nodes, err = targets(cy.ctx, nodes); err != nil {
			return cy.fail(&CommandError{Command: command, Locator: c.l.desc, Err: err})
		}
	}
	if !force {
		if err := cy.actionable(command, c.l.desc, nodes, a, l.timeout); err != nil {
			return cy.fail(err)
		}
	}
	if err := do(cy.ctx, nodes); err != nil {
		return cy.fail(&CommandError{Command: command, Locator: c.l.desc, Err: err})
	}
	return cy.settled(c.l.desc, sub)
}

func single(sub Subject) error {
	if len(sub.Nodes) > 1 {
		return ErrTooManyResults
	}
	return nil
}

func (cy *Cy) dispatch(ctx context.Context, id NodeID, evs ...Event) error {
	for _, ev := range evs {
		if err := cy.s.provider.DispatchEvent(ctx, id, ev); err != nil {
			return fmt.Errorf("dispatching %s: %w", ev.Type, err)
		}
	}
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Type types text into the subject, which must be a single element.
//
// Special keys are written in braces: {enter} {tab} {esc} {backspace}
// {del} {selectall} {leftarrow} {rightarrow} {uparrow} {downarrow} {home}
// {end} {pageup} {pagedown} {insert} {movetostart} {movetoend}, and {{} for
// a literal brace. The modifiers {alt} {option} {ctrl} {control} {meta}
// {command} {cmd} {shift} stay pressed until the end of the command.
func (c Chain) Type(text string) Chain {
	return c.TypeWith(text, TypeOptions{})
}

// TypeWith is Type with options.
func (c Chain) TypeWith(text string, opts TypeOptions) Chain {
	if c.dead() {
		return c
	}
	toks, err := parseKeys(text)
	if err == nil && len(toks) == 0 {
		err = errors.New("cannot type an empty string")
	}
	if err != nil {
		c.consume()
		return c.cy.fail(&CommandError{Command: "type", Locator: c.l.desc, Err: err})
	}
	delay := opts.Delay
	if delay == 0 {
		delay = c.cy.s.cfg.KeystrokeDelay.Duration
	}
	a := pointerChecks
	return c.act("type", "a single element", single, nil, a, opts.Force, opts.Timeout, func(ctx context.Context, nodes []NodeID) error {
		id := nodes[0]
		if err := c.cy.clickIfUnfocused(ctx, id); err != nil {
			return err
		}
		var t typer
		for i, tok := range toks {
			if err := c.cy.dispatch(ctx, id, t.events(tok)...); err != nil {
				return err
			}
			if i < len(toks)-1 {
				if err := sleep(ctx, delay); err != nil {
					return err
				}
			}
		}
		return c.cy.dispatch(ctx, id, t.release()...)
	})
}

func (cy *Cy) clickIfUnfocused(ctx context.Context, id NodeID) error {
	focused, err := readBool(ctx, cy.s.provider, id, PropFocused)
	if err != nil || focused {
		return err
	}
	box, err := cy.s.provider.BoundingBox(ctx, id)
	if err != nil {
		return err
	}
	x, y, _ := Center.Point(box)
	return cy.dispatch(ctx, id, MouseClickXY(x, y, 1)...)
}

// Clear clears the value of an input or textarea by typing
// {selectall}{del}.
func (c Chain) Clear() Chain {
	return c.ClearWith(TypeOptions{})
}

// ClearWith is Clear with options.
func (c Chain) ClearWith(opts TypeOptions) Chain {
	if c.dead() {
		return c
	}
	c.consume()
	l := &link{desc: c.l.desc, timeout: c.l.timeout, resolve: func(ctx context.Context) (Subject, error) {
		sub, err := c.l.resolve(ctx)
		if err != nil || sub.IsValue {
			return sub, err
		}
		for _, id := range sub.Nodes {
			tag, err := readString(ctx, c.cy.s.provider, id, PropTagName)
			if err != nil {
				return Subject{}, err
			}
			if t := strings.ToUpper(tag); t != "INPUT" && t != "TEXTAREA" {
				return Subject{}, Permanent(fmt.Errorf("clear: %w: %s is not an input or textarea", ErrInvalidSubject, strings.ToLower(tag)))
			}
		}
		return sub, nil
	}}
	return Chain{cy: c.cy, l: l}.TypeWith("{selectall}{del}", opts)
}

// Click clicks the center of the subject element.
func (c Chain) Click() Chain {
	return c.ClickWith(ClickOptions{})
}

// ClickAt clicks the subject element at a named position.
func (c Chain) ClickAt(pos Position) Chain {
	return c.ClickWith(ClickOptions{Position: pos})
}

// ClickXY clicks the subject element at x, y relative to its top-left
// corner.
func (c Chain) ClickXY(x, y float64) Chain {
	return c.ClickWith(ClickOptions{X: x, Y: y, UseCoords: true})
}

// ClickWith is Click with options.
func (c Chain) ClickWith(opts ClickOptions) Chain {
	return c.click("click", 1, opts)
}

// Dblclick double clicks the center of the subject element.
func (c Chain) Dblclick() Chain {
	return c.DblclickWith(ClickOptions{})
}

// DblclickWith is Dblclick with options.
func (c Chain) DblclickWith(opts ClickOptions) Chain {
	return c.click("dblclick", 2, opts)
}

func (c Chain) click(command string, count int, opts ClickOptions) Chain {
	if c.dead() {
		return c
	}
	if !opts.UseCoords && opts.Position != "" && !opts.Position.Valid() {
		c.consume()
		return c.cy.fail(&CommandError{Command: command, Locator: c.l.desc, Err: fmt.Errorf("invalid position %q", opts.Position)})
	}
	a := pointerChecks
	a.position, a.x, a.y, a.useXY = opts.Position, opts.X, opts.Y, opts.UseCoords
	check, want := single, "a single element"
	if opts.Multiple {
		check, want = nil, ""
	}
	return c.act(command, want, check, nil, a, opts.Force, opts.Timeout, func(ctx context.Context, nodes []NodeID) error {
		for _, id := range nodes {
			box, err := c.cy.s.provider.BoundingBox(ctx, id)
			if err != nil {
				return err
			}
			x, y, err := a.point(box)
			if err != nil {
				return err
			}
			if err := c.cy.dispatch(ctx, id, MouseClickXY(x, y, count)...); err != nil {
				return err
			}
		}
		return nil
	})
}

// Check checks the subject checkboxes and radios. With values, only the
// elements whose value is listed are checked; the others are left alone.
func (c Chain) Check(values ...string) Chain {
	return c.CheckWith(CheckOptions{}, values...)
}

// CheckWith is Check with options.
func (c Chain) CheckWith(opts CheckOptions, values ...string) Chain {
	return c.setChecked("check", true, opts, values)
}

// Uncheck unchecks the subject checkboxes, optionally only those whose
// value is listed.
func (c Chain) Uncheck(values ...string) Chain {
	return c.UncheckWith(CheckOptions{}, values...)
}

// UncheckWith is Uncheck with options.
func (c Chain) UncheckWith(opts CheckOptions, values ...string) Chain {
	return c.setChecked("uncheck", false, opts, values)
}

func (c Chain) setChecked(command string, want bool, opts CheckOptions, values []string) Chain {
	targets := func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return c.cy.checkable(ctx, nodes, !want, values)
	}
	return c.act(command, "", nil, targets, pointerChecks, opts.Force, opts.Timeout, func(ctx context.Context, nodes []NodeID) error {
		p := c.cy.s.provider
		for _, id := range nodes {
			checked, err := readBool(ctx, p, id, PropChecked)
			if err != nil {
				return err
			}
			if checked == want {
				continue
			}
			if err := p.SetProperty(ctx, id, PropChecked, want); err != nil {
				return err
			}
			if err := c.cy.dispatch(ctx, id, Event{Type: InputEvent}, Event{Type: ChangeEvent}); err != nil {
				return err
			}
		}
		return nil
	})
}

// checkable narrows nodes to the checkboxes, and radios unless
// checkboxOnly, whose value is listed.
func (cy *Cy) checkable(ctx context.Context, nodes []NodeID, checkboxOnly bool, values []string) ([]NodeID, error) {
	p := cy.s.provider
	var out []NodeID
	for _, id := range nodes {
		tag, err := readString(ctx, p, id, PropTagName)
		if err != nil {
			return nil, err
		}
		typ, _, err := p.Attribute(ctx, id, "type")
		if err != nil {
			return nil, err
		}
		typ = strings.ToLower(typ)
		ok := strings.EqualFold(tag, "input") && (typ == "checkbox" || (typ == "radio" && !checkboxOnly))
		if !ok {
			if checkboxOnly {
				return nil, fmt.Errorf("%w: can only be called on checkboxes", ErrInvalidSubject)
			}
			return nil, fmt.Errorf("%w: can only be called on checkboxes and radios", ErrInvalidSubject)
		}
		if len(values) > 0 {
			v, _, err := p.Attribute(ctx, id, "value")
			if err != nil {
				return nil, err
			}
			if !slices.Contains(values, v) {
				continue
			}
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no element has a value in %q", ErrNoResults, values)
	}
	return out, nil
}

// Select selects the options of a select element matching values, by
// value first and then by text. More than one value needs a multiple
// select.
func (c Chain) Select(values ...string) Chain {
	return c.SelectWith(SelectOptions{}, values...)
}

// SelectWith is Select with options.
func (c Chain) SelectWith(opts SelectOptions, values ...string) Chain {
	if c.dead() {
		return c
	}
	if len(values) == 0 {
		c.consume()
		return c.cy.fail(&CommandError{Command: "select", Locator: c.l.desc, Err: errors.New("no value to select")})
	}
	return c.act("select", "a single element", single, nil, inputChecks, opts.Force, opts.Timeout, func(ctx context.Context, nodes []NodeID) error {
		id := nodes[0]
		p := c.cy.s.provider
		tag, err := readString(ctx, p, id, PropTagName)
		if err != nil {
			return err
		}
		if !strings.EqualFold(tag, "select") {
			return fmt.Errorf("%w: %s is not a select", ErrInvalidSubject, strings.ToLower(tag))
		}
		_, multiple, err := p.Attribute(ctx, id, "multiple")
		if err != nil {
			return err
		}
		if len(values) > 1 && !multiple {
			return fmt.Errorf("%w: cannot select %d values on a single select", ErrInvalidSubject, len(values))
		}
		options, err := c.cy.query(ctx, id, Descendants, "option")
		if err != nil {
			return err
		}
		chosen, err := c.cy.matchOptions(ctx, options, values)
		if err != nil {
			return err
		}
		for _, o := range options {
			if !multiple && !chosen[o] {
				continue
			}
			if err := p.SetProperty(ctx, o, PropSelected, chosen[o]); err != nil {
				return err
			}
		}
		return c.cy.dispatch(ctx, id, Event{Type: InputEvent}, Event{Type: ChangeEvent})
	})
}

func (cy *Cy) matchOptions(ctx context.Context, options []NodeID, values []string) (map[NodeID]bool, error) {
	p := cy.s.provider
	type option struct {
		id          NodeID
		value, text string
	}
	all := make([]option, 0, len(options))
	for _, id := range options {
		text, err := readString(ctx, p, id, PropTextContent)
		if err != nil {
			return nil, err
		}
		text = normalizeSpace(text)
		value, ok, err := p.Attribute(ctx, id, "value")
		if err != nil {
			return nil, err
		}
		if !ok {
			value = text
		}
		all = append(all, option{id, value, text})
	}
	chosen := make(map[NodeID]bool)
	for _, v := range values {
		found := NoNode
		for _, o := range all {
			if o.value == v {
				found = o.id
				break
			}
		}
		if found == NoNode {
			for _, o := range all {
				if o.text == normalizeSpace(v) {
					found = o.id
					break
				}
			}
		}
		if found == NoNode {
			return nil, fmt.Errorf("%w: no option with value or text %q", ErrNoResults, v)
		}
		chosen[found] = true
	}
	return chosen, nil
}

// Focus focuses the subject element.
func (c Chain) Focus() Chain {
	return c.act("focus", "a single element", single, nil, attachedOnly, false, 0, func(ctx context.Context, nodes []NodeID) error {
		return c.cy.dispatch(ctx, nodes[0], Event{Type: FocusEvent})
	})
}

// Blur removes focus from the subject element, which must have it.
func (c Chain) Blur() Chain {
	focused := func(sub Subject) error {
		if err := single(sub); err != nil {
			return err
		}
		ok, err := readBool(c.cy.ctx, c.cy.s.provider, sub.Nodes[0], PropFocused)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFocused
		}
		return nil
	}
	return c.act("blur", "a single focused element", focused, nil, attachedOnly, false, 0, func(ctx context.Context, nodes []NodeID) error {
		return c.cy.dispatch(ctx, nodes[0], Event{Type: BlurEvent})
	})
}

// Submit submits the subject, which must be a form.
func (c Chain) Submit() Chain {
	return c.act("submit", "a single element", single, nil, attachedOnly, false, 0, func(ctx context.Context, nodes []NodeID) error {
		tag, err := readString(ctx, c.cy.s.provider, nodes[0], PropTagName)
		if err != nil {
			return err
		}
		if !strings.EqualFold(tag, "form") {
			return fmt.Errorf("%w: %s is not a form", ErrInvalidSubject, strings.ToLower(tag))
		}
		return c.cy.dispatch(ctx, nodes[0], Event{Type: SubmitEvent})
	})
}

// Trigger dispatches the named event on the subject element.
func (c Chain) Trigger(name string) Chain {
	return c.TriggerWith(name, TriggerOptions{})
}

// TriggerWith is Trigger with options.
func (c Chain) TriggerWith(name string, opts TriggerOptions) Chain {
	a := pointerChecks
	a.position = opts.Position
	return c.act("trigger", "a single element", single, nil, a, opts.Force, opts.Timeout, func(ctx context.Context, nodes []NodeID) error {
		box, err := c.cy.s.provider.BoundingBox(ctx, nodes[0])
		if err != nil {
			return err
		}
		x, y, err := a.point(box)
		if err != nil {
			return err
		}
		return c.cy.dispatch(ctx, nodes[0], Event{Type: CustomEvent, Name: name, X: x, Y: y})
	})
}

// Invoke calls a jQuery style method on the subject.
//
//	val         yields the value of the first element
//	val, v      sets the value of every element
//	text        yields the text content of the elements
//	attr, name  yields an attribute of the first element
//	prop, name  yields a property of the first element
//	prop, n, v  sets a property of every element
//
// Getters are queries: assertions after them retry the read.
func (c Chain) Invoke(method string, args ...interface{}) Chain {
	if c.dead() {
		return c
	}
	desc := fmt.Sprintf("invoke(%q)", method)
	fail := func(err error) Chain {
		c.consume()
		return c.cy.fail(&CommandError{Command: "invoke", Locator: c.l.desc, Err: err})
	}
	p := c.cy.s.provider
	getter := func(read func(context.Context, []NodeID) (interface{}, error)) Chain {
		return c.derive(desc, func(ctx context.Context, sub Subject) (Subject, error) {
			if err := elementsOnly(sub); err != nil {
				return Subject{}, err
			}
			if len(sub.Nodes) == 0 {
				return Subject{}, nil
			}
			v, err := read(ctx, sub.Nodes)
			if err != nil {
				return Subject{}, err
			}
			return ValueSubject(v), nil
		})
	}
	setter := func(name string, v interface{}) Chain {
		return c.act("invoke", "", nil, nil, attachedOnly, true, 0, func(ctx context.Context, nodes []NodeID) error {
			for _, id := range nodes {
				if err := p.SetProperty(ctx, id, name, v); err != nil {
					return err
				}
			}
			return nil
		})
	}
	switch {
	case method == "val" && len(args) == 0:
		return getter(func(ctx context.Context, nodes []NodeID) (interface{}, error) {
			return readString(ctx, p, nodes[0], PropValue)
		})
	case method == "val" && len(args) == 1:
		return setter(PropValue, toString(normalize(args[0])))
	case method == "text" && len(args) == 0:
		return getter(func(ctx context.Context, nodes []NodeID) (interface{}, error) {
			var b strings.Builder
			for _, id := range nodes {
				s, err := readString(ctx, p, id, PropTextContent)
				if err != nil {
					return nil, err
				}
				b.WriteString(s)
			}
			return b.String(), nil
		})
	case method == "attr" && len(args) == 1:
		name := toString(args[0])
		return getter(func(ctx context.Context, nodes []NodeID) (interface{}, error) {
			v, ok, err := p.Attribute(ctx, nodes[0], name)
			if err != nil || !ok {
				return nil, err
			}
			return v, nil
		})
	case method == "prop" && len(args) == 1:
		name := toString(args[0])
		return getter(func(ctx context.Context, nodes []NodeID) (interface{}, error) {
			return p.ReadProperty(ctx, nodes[0], name)
		})
	case method == "prop" && len(args) == 2:
		return setter(toString(args[0]), args[1])
	}
	return fail(fmt.Errorf("unsupported method %s with %d arguments", method, len(args)))
}
