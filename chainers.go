package chainrun

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// outcome is the result of evaluating a chainer once.
type outcome struct {
	pass     bool
	expected interface{}
	actual   interface{}
}

// chainer is a named assertion predicate.
type chainer struct {
	minArgs, maxArgs int
	// allowEmpty chainers are evaluated against an empty element set
	// instead of waiting for elements to appear.
	allowEmpty bool
	eval       func(ctx context.Context, p Provider, sub Subject, args []interface{}) (outcome, error)
	// yields, when set, replaces the subject for later commands when the
	// chainer is given minArgs arguments.
	yields func(ctx context.Context, p Provider, sub Subject, args []interface{}) (Subject, error)
}

var chainers = map[string]*chainer{}

func register(c *chainer, names ...string) {
	for _, n := range names {
		chainers[n] = c
	}
}

// Chainers returns the registered chainer names, sorted.
func Chainers() []string {
	names := maps.Keys(chainers)
	slices.Sort(names)
	return names
}

func elementsRequired(sub Subject) error {
	if sub.IsValue {
		return Permanent(fmt.Errorf("%w: expected elements, got %s", ErrInvalidSubject, sub))
	}
	return nil
}

// anyNode reports whether pred holds for any element of sub.
func anyNode(ctx context.Context, sub Subject, pred func(NodeID) (bool, error)) (bool, error) {
	if err := elementsRequired(sub); err != nil {
		return false, err
	}
	for _, id := range sub.Nodes {
		ok, err := pred(id)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// state builds a chainer passing when any element has a boolean state.
func state(name string, read func(ctx context.Context, p Provider, id NodeID) (bool, error)) *chainer {
	return &chainer{eval: func(ctx context.Context, p Provider, sub Subject, _ []interface{}) (outcome, error) {
		ok, err := anyNode(ctx, sub, func(id NodeID) (bool, error) {
			return read(ctx, p, id)
		})
		actual := "not " + name
		if ok {
			actual = name
		}
		return outcome{pass: ok, actual: actual}, err
	}}
}

func boolProp(name string) func(ctx context.Context, p Provider, id NodeID) (bool, error) {
	return func(ctx context.Context, p Provider, id NodeID) (bool, error) {
		return readBool(ctx, p, id, name)
	}
}

func textOfNodes(ctx context.Context, p Provider, nodes []NodeID) (string, error) {
	var b strings.Builder
	for _, id := range nodes {
		s, err := readString(ctx, p, id, PropTextContent)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// equal compares values after normalizing numbers.
func equal(a, b interface{}) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func includes(haystack, needle interface{}) bool {
	switch h := normalize(haystack).(type) {
	case string:
		return strings.Contains(h, toString(normalize(needle)))
	case []interface{}:
		for _, v := range h {
			if equal(v, needle) {
				return true
			}
		}
	case map[string]interface{}:
		_, ok := h[toString(needle)]
		return ok
	}
	return false
}

// readAny reads a named property of the first element, or a key of a map
// value.
func readAny(ctx context.Context, p Provider, sub Subject, name string) (interface{}, bool, error) {
	if sub.IsValue {
		m, ok := normalize(sub.Value).(map[string]interface{})
		if !ok {
			return nil, false, Permanent(fmt.Errorf("%w: %s has no properties", ErrInvalidSubject, sub))
		}
		v, ok := m[name]
		return v, ok, nil
	}
	if len(sub.Nodes) == 0 {
		return nil, false, ErrNoResults
	}
	v, err := p.ReadProperty(ctx, sub.Nodes[0], name)
	switch {
	case errors.Is(err, ErrNoProperty):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return v, true, nil
}

func init() {
	register(&chainer{allowEmpty: true, eval: func(_ context.Context, _ Provider, sub Subject, _ []interface{}) (outcome, error) {
		if sub.IsValue {
			return outcome{pass: sub.Value != nil, actual: sub.Value}, nil
		}
		return outcome{pass: len(sub.Nodes) > 0, actual: fmt.Sprintf("%d elements", len(sub.Nodes))}, nil
	}}, "exist")

	register(&chainer{minArgs: 1, maxArgs: 1, allowEmpty: true, eval: func(_ context.Context, _ Provider, sub Subject, args []interface{}) (outcome, error) {
		n := sub.Len()
		return outcome{pass: equal(n, args[0]), expected: args[0], actual: n}, nil
	}}, "have.length")

	register(state("visible", func(ctx context.Context, p Provider, id NodeID) (bool, error) {
		return isVisible(ctx, p, id)
	}), "be.visible")
	register(state("hidden", func(ctx context.Context, p Provider, id NodeID) (bool, error) {
		v, err := isVisible(ctx, p, id)
		return !v, err
	}), "be.hidden")
	register(state("checked", boolProp(PropChecked)), "be.checked")
	register(state("disabled", boolProp(PropDisabled)), "be.disabled")
	register(state("enabled", func(ctx context.Context, p Provider, id NodeID) (bool, error) {
		v, err := readBool(ctx, p, id, PropDisabled)
		return !v, err
	}), "be.enabled")
	register(state("focused", boolProp(PropFocused)), "be.focused", "have.focus")
	register(state("selected", boolProp(PropSelected)), "be.selected")

	register(&chainer{eval: func(ctx context.Context, p Provider, sub Subject, _ []interface{}) (outcome, error) {
		if sub.IsValue {
			n := sub.Len()
			return outcome{pass: n == 0, actual: sub.Value}, nil
		}
		ok, err := anyNode(ctx, sub, func(id NodeID) (bool, error) {
			children, err := p.QueryAll(ctx, id, Query{Relation: Children})
			if err != nil || len(children) > 0 {
				return false, err
			}
			text, err := readString(ctx, p, id, PropTextContent)
			return text == "", err
		})
		actual := "not empty"
		if ok {
			actual = "empty"
		}
		return outcome{pass: ok, actual: actual}, err
	}}, "be.empty")

	register(&chainer{minArgs: 1, maxArgs: 1, eval: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (outcome, error) {
		if sub.IsValue {
			return outcome{pass: includes(sub.Value, args[0]), expected: args[0], actual: sub.Value}, nil
		}
		m, err := newTextMatcher(args[0])
		if err != nil {
			return outcome{}, Permanent(err)
		}
		var texts []string
		ok, err := anyNode(ctx, sub, func(id NodeID) (bool, error) {
			text, err := readString(ctx, p, id, PropTextContent)
			texts = append(texts, normalizeSpace(text))
			return m.match(text), err
		})
		return outcome{pass: ok, expected: args[0], actual: strings.Join(texts, " ")}, err
	}}, "contain", "include")

	register(&chainer{minArgs: 1, maxArgs: 1, eval: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (outcome, error) {
		class := toString(args[0])
		var classes []string
		ok, err := anyNode(ctx, sub, func(id NodeID) (bool, error) {
			attr, _, err := p.Attribute(ctx, id, "class")
			classes = append(classes, attr)
			return slices.Contains(strings.Fields(attr), class), err
		})
		return outcome{pass: ok, expected: class, actual: strings.Join(classes, " ")}, err
	}}, "have.class")

	register(&chainer{
		minArgs: 1, maxArgs: 2,
		eval: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (outcome, error) {
			if err := elementsRequired(sub); err != nil {
				return outcome{}, err
			}
			name := toString(args[0])
			v, ok, err := p.Attribute(ctx, sub.Nodes[0], name)
			if err != nil {
				return outcome{}, err
			}
			if len(args) == 1 {
				return outcome{pass: ok, expected: name, actual: attrActual(v, ok)}, nil
			}
			return outcome{pass: ok && v == toString(normalize(args[1])), expected: args[1], actual: attrActual(v, ok)}, nil
		},
		yields: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (Subject, error) {
			// a missing attribute yields nil, so later assertions fail on
			// the value rather than on resolution
			if len(sub.Nodes) == 0 {
				return ValueSubject(nil), nil
			}
			v, ok, err := p.Attribute(ctx, sub.Nodes[0], toString(args[0]))
			switch {
			case err != nil:
				return Subject{}, err
			case !ok:
				return ValueSubject(nil), nil
			}
			return ValueSubject(v), nil
		},
	}, "have.attr")

	register(&chainer{minArgs: 1, maxArgs: 1, eval: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (outcome, error) {
		if err := elementsRequired(sub); err != nil {
			return outcome{}, err
		}
		v, err := readString(ctx, p, sub.Nodes[0], PropValue)
		want := toString(normalize(args[0]))
		return outcome{pass: v == want, expected: want, actual: v}, err
	}}, "have.value")

	register(&chainer{minArgs: 1, maxArgs: 1, eval: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (outcome, error) {
		if err := elementsRequired(sub); err != nil {
			return outcome{}, err
		}
		text, err := textOfNodes(ctx, p, sub.Nodes)
		want := toString(normalize(args[0]))
		return outcome{pass: text == want, expected: want, actual: text}, err
	}}, "have.text")

	register(&chainer{
		minArgs: 1, maxArgs: 2,
		eval: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (outcome, error) {
			name := toString(args[0])
			v, ok, err := readAny(ctx, p, sub, name)
			if err != nil {
				return outcome{}, err
			}
			if len(args) == 1 {
				return outcome{pass: ok, expected: name, actual: v}, nil
			}
			return outcome{pass: ok && equal(v, args[1]), expected: args[1], actual: v}, nil
		},
		yields: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (Subject, error) {
			v, _, err := readAny(ctx, p, sub, toString(args[0]))
			if err != nil {
				return Subject{}, err
			}
			return ValueSubject(v), nil
		},
	}, "have.property")

	register(&chainer{minArgs: 1, maxArgs: 1, eval: func(ctx context.Context, p Provider, sub Subject, args []interface{}) (outcome, error) {
		if re, ok := args[0].(*regexp.Regexp); ok {
			s := toString(normalize(sub.Value))
			if !sub.IsValue {
				text, err := textOfNodes(ctx, p, sub.Nodes)
				if err != nil {
					return outcome{}, err
				}
				s = text
			}
			return outcome{pass: re.MatchString(s), expected: "/" + re.String() + "/", actual: s}, nil
		}
		sel := toString(args[0])
		var tags []string
		ok, err := anyNode(ctx, sub, func(id NodeID) (bool, error) {
			tag, _ := readString(ctx, p, id, PropTagName)
			tags = append(tags, strings.ToLower(tag))
			nodes, err := p.QueryAll(ctx, id, Query{Relation: Self, Selector: sel})
			return len(nodes) > 0, err
		})
		return outcome{pass: ok, expected: sel, actual: strings.Join(tags, ", ")}, err
	}}, "match")

	register(&chainer{minArgs: 1, maxArgs: 1, eval: func(_ context.Context, _ Provider, sub Subject, args []interface{}) (outcome, error) {
		actual := sub.Value
		if !sub.IsValue {
			actual = sub.Nodes
		}
		return outcome{pass: equal(actual, args[0]), expected: args[0], actual: actual}, nil
	}}, "eq", "equal", "deep.equal", "deep.eq")
}

func attrActual(v string, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}
