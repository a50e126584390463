package loader

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/chromedp/chainrun"
)

// op is a compiled command. root is set for commands that start a chain,
// chain for commands applied to the previous command's chain.
type op struct {
	root  func(cy *chainrun.Cy) chainrun.Chain
	chain func(c chainrun.Chain) chainrun.Chain
}

// builder compiles a command's arguments.
type builder func(a *args) (op, error)

type entry struct {
	min, max int
	build    builder
}

var commands = map[string]entry{
	// Queries.
	"get":          {1, 1, get},
	"find":         {1, 1, chainStr((chainrun.Chain).Find)},
	"contains":     {1, 2, contains},
	"root":         {0, 0, rootOnly((*chainrun.Cy).Root)},
	"wrap":         {1, 1, wrap},
	"children":     {0, 1, chainOptSel((chainrun.Chain).Children)},
	"parent":       {0, 1, chainOptSel((chainrun.Chain).Parent)},
	"parents":      {0, 1, chainOptSel((chainrun.Chain).Parents)},
	"next":         {0, 1, chainOptSel((chainrun.Chain).Next)},
	"nextAll":      {0, 1, chainOptSel((chainrun.Chain).NextAll)},
	"prev":         {0, 1, chainOptSel((chainrun.Chain).Prev)},
	"prevAll":      {0, 1, chainOptSel((chainrun.Chain).PrevAll)},
	"siblings":     {0, 1, chainOptSel((chainrun.Chain).Siblings)},
	"parentsUntil": {1, 2, chainUntil((chainrun.Chain).ParentsUntil)},
	"nextUntil":    {1, 2, chainUntil((chainrun.Chain).NextUntil)},
	"prevUntil":    {1, 2, chainUntil((chainrun.Chain).PrevUntil)},
	"closest":      {1, 1, chainStr((chainrun.Chain).Closest)},
	"filter":       {1, 1, chainStr((chainrun.Chain).Filter)},
	"not":          {1, 1, chainStr((chainrun.Chain).Not)},
	"eq":           {1, 1, eq},
	"first":        {0, 0, chainOnly((chainrun.Chain).First)},
	"last":         {0, 0, chainOnly((chainrun.Chain).Last)},
	"invoke":       {1, 3, invoke},

	// Actions.
	"type":           {1, 1, typeText},
	"clear":          {0, 0, clear},
	"click":          {0, 2, click((chainrun.Chain).ClickWith)},
	"dblclick":       {0, 2, click((chainrun.Chain).DblclickWith)},
	"check":          {0, -1, check((chainrun.Chain).CheckWith)},
	"uncheck":        {0, -1, check((chainrun.Chain).UncheckWith)},
	"select":         {1, -1, selectValues},
	"focus":          {0, 0, chainOnly((chainrun.Chain).Focus)},
	"blur":           {0, 0, chainOnly((chainrun.Chain).Blur)},
	"submit":         {0, 0, chainOnly((chainrun.Chain).Submit)},
	"trigger":        {1, 1, trigger},
	"scrollIntoView": {0, 0, scrollIntoView},
	"scrollTo":       {1, 2, scrollTo},

	// Assertions.
	"should": {1, -1, assertOp((chainrun.Chain).Should)},
	"and":    {1, -1, assertOp((chainrun.Chain).And)},

	// Window.
	"visit":      {1, 1, visit},
	"window":     {0, 0, rootOnly((*chainrun.Cy).Window)},
	"document":   {0, 0, rootOnly((*chainrun.Cy).Document)},
	"title":      {0, 0, rootOnly((*chainrun.Cy).Title)},
	"viewport":   {1, 2, viewport},
	"screenshot": {1, 1, screenshot},
}

func rootOnly(fn func(*chainrun.Cy) chainrun.Chain) builder {
	return func(*args) (op, error) {
		return op{root: fn}, nil
	}
}

func chainOnly(fn func(chainrun.Chain) chainrun.Chain) builder {
	return func(*args) (op, error) {
		return op{chain: fn}, nil
	}
}

func chainStr(fn func(chainrun.Chain, string) chainrun.Chain) builder {
	return func(a *args) (op, error) {
		s, err := a.str(0)
		if err != nil {
			return op{}, err
		}
		return op{chain: func(c chainrun.Chain) chainrun.Chain { return fn(c, s) }}, nil
	}
}

func chainOptSel(fn func(chainrun.Chain, ...string) chainrun.Chain) builder {
	return func(a *args) (op, error) {
		sel, err := a.strs(0)
		if err != nil {
			return op{}, err
		}
		return op{chain: func(c chainrun.Chain) chainrun.Chain { return fn(c, sel...) }}, nil
	}
}

func chainUntil(fn func(chainrun.Chain, string, ...string) chainrun.Chain) builder {
	return func(a *args) (op, error) {
		sel, err := a.strs(0)
		if err != nil {
			return op{}, err
		}
		return op{chain: func(c chainrun.Chain) chainrun.Chain { return fn(c, sel[0], sel[1:]...) }}, nil
	}
}

func get(a *args) (op, error) {
	sel, err := a.str(0)
	if err != nil {
		return op{}, err
	}
	timeout, err := a.duration("timeout")
	if err != nil {
		return op{}, err
	}
	return op{
		root: func(cy *chainrun.Cy) chainrun.Chain {
			return cy.GetWith(sel, chainrun.QueryOptions{Timeout: timeout})
		},
		chain: func(c chainrun.Chain) chainrun.Chain {
			if timeout > 0 {
				c = c.WithTimeout(timeout)
			}
			return c.Get(sel)
		},
	}, nil
}

func contains(a *args) (op, error) {
	var (
		sel  string
		text interface{}
		err  error
	)
	if len(a.vals) == 2 {
		if sel, err = a.str(0); err != nil {
			return op{}, err
		}
		text, err = a.text(1)
	} else {
		text, err = a.text(0)
	}
	if err != nil {
		return op{}, err
	}
	if sel != "" {
		return op{
			root:  func(cy *chainrun.Cy) chainrun.Chain { return cy.ContainsIn(sel, text) },
			chain: func(c chainrun.Chain) chainrun.Chain { return c.ContainsIn(sel, text) },
		}, nil
	}
	return op{
		root:  func(cy *chainrun.Cy) chainrun.Chain { return cy.Contains(text) },
		chain: func(c chainrun.Chain) chainrun.Chain { return c.Contains(text) },
	}, nil
}

func wrap(a *args) (op, error) {
	v := a.vals[0]
	return op{root: func(cy *chainrun.Cy) chainrun.Chain { return cy.Wrap(v) }}, nil
}

func eq(a *args) (op, error) {
	i, err := a.int(0)
	if err != nil {
		return op{}, err
	}
	return op{chain: func(c chainrun.Chain) chainrun.Chain { return c.Eq(i) }}, nil
}

func invoke(a *args) (op, error) {
	method, err := a.str(0)
	if err != nil {
		return op{}, err
	}
	rest := a.vals[1:]
	return op{chain: func(c chainrun.Chain) chainrun.Chain { return c.Invoke(method, rest...) }}, nil
}

func typeOptions(a *args) (chainrun.TypeOptions, error) {
	var (
		o   chainrun.TypeOptions
		err error
	)
	if o.Delay, err = a.duration("delay"); err != nil {
		return o, err
	}
	if o.Force, err = a.bool("force"); err != nil {
		return o, err
	}
	o.Timeout, err = a.duration("timeout")
	return o, err
}

func typeText(a *args) (op, error) {
	text, err := a.str(0)
	if err != nil {
		return op{}, err
	}
	o, err := typeOptions(a)
	if err != nil {
		return op{}, err
	}
	return op{chain: func(c chainrun.Chain) chainrun.Chain { return c.TypeWith(text, o) }}, nil
}

func clear(a *args) (op, error) {
	o, err := typeOptions(a)
	if err != nil {
		return op{}, err
	}
	return op{chain: func(c chainrun.Chain) chainrun.Chain { return c.ClearWith(o) }}, nil
}

// click accepts no argument, a position, or x and y coordinates.
func click(fn func(chainrun.Chain, chainrun.ClickOptions) chainrun.Chain) builder {
	return func(a *args) (op, error) {
		var (
			o   chainrun.ClickOptions
			err error
		)
		switch len(a.vals) {
		case 1:
			s, err := a.str(0)
			if err != nil {
				return op{}, err
			}
			o.Position = chainrun.Position(s)
			if !o.Position.Valid() {
				return op{}, fmt.Errorf("invalid position %q", s)
			}
		case 2:
			if o.X, err = a.float(0); err != nil {
				return op{}, err
			}
			if o.Y, err = a.float(1); err != nil {
				return op{}, err
			}
			o.UseCoords = true
		}
		if o.Position == "" {
			if o.Position, err = a.position("position"); err != nil {
				return op{}, err
			}
		}
		if x, ok := a.opt("x"); ok {
			if o.X, err = toFloat("option x", x); err != nil {
				return op{}, err
			}
			o.UseCoords = true
		}
		if y, ok := a.opt("y"); ok {
			if o.Y, err = toFloat("option y", y); err != nil {
				return op{}, err
			}
			o.UseCoords = true
		}
		if o.Force, err = a.bool("force"); err != nil {
			return op{}, err
		}
		if o.Multiple, err = a.bool("multiple"); err != nil {
			return op{}, err
		}
		if o.Timeout, err = a.duration("timeout"); err != nil {
			return op{}, err
		}
		return op{chain: func(c chainrun.Chain) chainrun.Chain { return fn(c, o) }}, nil
	}
}

func check(fn func(chainrun.Chain, chainrun.CheckOptions, ...string) chainrun.Chain) builder {
	return func(a *args) (op, error) {
		values, err := a.strs(0)
		if err != nil {
			return op{}, err
		}
		var o chainrun.CheckOptions
		if o.Force, err = a.bool("force"); err != nil {
			return op{}, err
		}
		if o.Timeout, err = a.duration("timeout"); err != nil {
			return op{}, err
		}
		return op{chain: func(c chainrun.Chain) chainrun.Chain { return fn(c, o, values...) }}, nil
	}
}

func selectValues(a *args) (op, error) {
	values, err := a.strs(0)
	if err != nil {
		return op{}, err
	}
	var o chainrun.SelectOptions
	if o.Force, err = a.bool("force"); err != nil {
		return op{}, err
	}
	if o.Timeout, err = a.duration("timeout"); err != nil {
		return op{}, err
	}
	return op{chain: func(c chainrun.Chain) chainrun.Chain { return c.SelectWith(o, values...) }}, nil
}

func trigger(a *args) (op, error) {
	name, err := a.str(0)
	if err != nil {
		return op{}, err
	}
	var o chainrun.TriggerOptions
	if o.Force, err = a.bool("force"); err != nil {
		return op{}, err
	}
	if o.Position, err = a.position("position"); err != nil {
		return op{}, err
	}
	if o.Timeout, err = a.duration("timeout"); err != nil {
		return op{}, err
	}
	return op{chain: func(c chainrun.Chain) chainrun.Chain { return c.TriggerWith(name, o) }}, nil
}

func scrollOptions(a *args) (chainrun.ScrollOptions, error) {
	var o chainrun.ScrollOptions
	e, err := a.string("easing")
	if err != nil {
		return o, err
	}
	switch o.Easing = chainrun.Easing(e); o.Easing {
	case "", chainrun.Swing, chainrun.Linear:
	default:
		return o, fmt.Errorf("invalid easing %q", e)
	}
	if o.Duration, err = a.duration("duration"); err != nil {
		return o, err
	}
	o.Timeout, err = a.duration("timeout")
	return o, err
}

func scrollIntoView(a *args) (op, error) {
	o, err := scrollOptions(a)
	if err != nil {
		return op{}, err
	}
	return op{chain: func(c chainrun.Chain) chainrun.Chain { return c.ScrollIntoViewWith(o) }}, nil
}

// scrollTo accepts a position, or x and y given as pixels or percentages.
func scrollTo(a *args) (op, error) {
	var (
		t   chainrun.ScrollTarget
		err error
	)
	switch len(a.vals) {
	case 1:
		s, err := a.str(0)
		if err != nil {
			return op{}, err
		}
		t.Position = chainrun.Position(s)
		if !t.Position.Valid() {
			return op{}, fmt.Errorf("invalid position %q", s)
		}
	case 2:
		if t.X, err = a.str(0); err != nil {
			return op{}, err
		}
		if t.Y, err = a.str(1); err != nil {
			return op{}, err
		}
	}
	o, err := scrollOptions(a)
	if err != nil {
		return op{}, err
	}
	return op{
		root:  func(cy *chainrun.Cy) chainrun.Chain { return cy.ScrollToWith(t, o) },
		chain: func(c chainrun.Chain) chainrun.Chain { return c.ScrollToWith(t, o) },
	}, nil
}

// patternChainers take /pattern/flags arguments as regular expressions.
var patternChainers = []string{"contain", "include", "match"}

func assertOp(fn func(chainrun.Chain, string, ...interface{}) chainrun.Chain) builder {
	return func(a *args) (op, error) {
		name, err := a.str(0)
		if err != nil {
			return op{}, err
		}
		if !knownChainer(name) {
			return op{}, fmt.Errorf("%w %q", chainrun.ErrUnknownChainer, name)
		}
		rest, err := a.values(1, slices.Contains(patternChainers, strings.TrimPrefix(name, "not.")))
		if err != nil {
			return op{}, err
		}
		return op{chain: func(c chainrun.Chain) chainrun.Chain { return fn(c, name, rest...) }}, nil
	}
}

func visit(a *args) (op, error) {
	u, err := a.str(0)
	if err != nil {
		return op{}, err
	}
	return op{root: func(cy *chainrun.Cy) chainrun.Chain { return cy.Visit(u) }}, nil
}

// viewport accepts a width and a height, or a device preset with an
// optional orientation.
func viewport(a *args) (op, error) {
	if w, ok := a.vals[0].(int); ok {
		if len(a.vals) != 2 {
			return op{}, fmt.Errorf("takes a width and a height")
		}
		h, err := a.int(1)
		if err != nil {
			return op{}, err
		}
		return op{root: func(cy *chainrun.Cy) chainrun.Chain { return cy.Viewport(int64(w), int64(h)) }}, nil
	}
	name, err := a.str(0)
	if err != nil {
		return op{}, err
	}
	var orientation string
	if len(a.vals) == 2 {
		if orientation, err = a.str(1); err != nil {
			return op{}, err
		}
	}
	return op{root: func(cy *chainrun.Cy) chainrun.Chain { return cy.ViewportPreset(name, orientation) }}, nil
}

func screenshot(a *args) (op, error) {
	name, err := a.str(0)
	if err != nil {
		return op{}, err
	}
	return op{
		root:  func(cy *chainrun.Cy) chainrun.Chain { return cy.Screenshot(name) },
		chain: func(c chainrun.Chain) chainrun.Chain { return c.Screenshot(name) },
	}, nil
}
