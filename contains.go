package chainrun

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// prioritySelector lists the elements Contains prefers over the deeper
// element actually holding the text.
const prioritySelector = "input[type='submit'], button, a, label"

// textMatcher matches element text against a literal or a pattern.
type textMatcher struct {
	literal string
	re      *regexp.Regexp
}

func newTextMatcher(text interface{}) (textMatcher, error) {
	switch t := text.(type) {
	case *regexp.Regexp:
		return textMatcher{re: t}, nil
	case string:
		return textMatcher{literal: normalizeSpace(t)}, nil
	case int, int64, float64:
		return textMatcher{literal: toString(normalize(t))}, nil
	}
	return textMatcher{}, fmt.Errorf("%w: cannot match text against %T", ErrInvalidSubject, text)
}

func (m textMatcher) match(s string) bool {
	s = normalizeSpace(s)
	if m.re != nil {
		return m.re.MatchString(s)
	}
	return strings.Contains(s, m.literal)
}

func (m textMatcher) String() string {
	if m.re != nil {
		return "/" + m.re.String() + "/"
	}
	return strconv.Quote(m.literal)
}

func containsDesc(sel string, m textMatcher) string {
	if sel == "" {
		return fmt.Sprintf("contains(%s)", m)
	}
	return fmt.Sprintf("contains(%q, %s)", sel, m)
}

// textOf returns the text Contains looks at: the value of submit inputs,
// the text content of anything else.
func (cy *Cy) textOf(ctx context.Context, id NodeID) (string, error) {
	p := cy.s.provider
	tag, err := readString(ctx, p, id, PropTagName)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(tag, "input") {
		typ, _, err := p.Attribute(ctx, id, "type")
		if err != nil {
			return "", err
		}
		if strings.EqualFold(typ, "submit") {
			return readString(ctx, p, id, PropValue)
		}
	}
	return readString(ctx, p, id, PropTextContent)
}

// contains finds the deepest descendant of roots matching sel whose text
// matches m. Without a selector the result is promoted to the closest
// priority element below the root. Only the first match is yielded.
func (cy *Cy) contains(ctx context.Context, roots []NodeID, sel string, m textMatcher) (Subject, error) {
	for _, root := range roots {
		cands, err := cy.query(ctx, root, Descendants, sel)
		if err != nil {
			return Subject{}, err
		}
		var matched, skipped []NodeID
		for _, id := range cands {
			skip, err := cy.skipText(ctx, skipped, id, sel == "")
			if err != nil {
				return Subject{}, err
			}
			if skip {
				skipped = append(skipped, id)
				continue
			}
			text, err := cy.textOf(ctx, id)
			if err != nil {
				return Subject{}, err
			}
			if m.match(text) {
				matched = append(matched, id)
			}
		}
		// matched is in document order, so an element's descendants
		// directly follow it
		for i, id := range matched {
			if i+1 < len(matched) {
				deeper, err := cy.isAncestor(ctx, id, matched[i+1])
				if err != nil {
					return Subject{}, err
				}
				if deeper {
					continue
				}
			}
			if sel == "" {
				if id, err = cy.promote(ctx, root, id); err != nil {
					return Subject{}, err
				}
			}
			return NodeSubject(id), nil
		}
	}
	return Subject{}, nil
}

// skipText reports whether Contains ignores id: the html element, whose
// text includes the title, scripts and styles, and without a selector the
// head element and anything below a skipped element.
func (cy *Cy) skipText(ctx context.Context, skipped []NodeID, id NodeID, anyTag bool) (bool, error) {
	tag, err := readString(ctx, cy.s.provider, id, PropTagName)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(tag) {
	case "html", "script", "style":
		return true, nil
	case "head":
		return anyTag, nil
	}
	for _, s := range skipped {
		below, err := cy.isAncestor(ctx, s, id)
		if err != nil || below {
			return below, err
		}
	}
	return false, nil
}

// promote returns the closest element from id up to, but excluding, root
// that matches the priority selector, or id itself.
func (cy *Cy) promote(ctx context.Context, root, id NodeID) (NodeID, error) {
	for cur := id; cur != NoNode && cur != root; {
		ok, err := cy.matches(ctx, cur, prioritySelector)
		if err != nil {
			return NoNode, err
		}
		if ok {
			return cur, nil
		}
		if cur, err = cy.step(ctx, cur, Parent); err != nil {
			return NoNode, err
		}
	}
	return id, nil
}

// Contains yields the deepest element below the subject whose whitespace
// normalized text contains text, a string or a *regexp.Regexp. Submit
// inputs match on their value. A match inside a submit input, button, link
// or label yields that element instead.
func (c Chain) Contains(text interface{}) Chain {
	return c.ContainsIn("", text)
}

// ContainsIn is Contains restricted to elements matching sel, without the
// promotion to priority elements.
func (c Chain) ContainsIn(sel string, text interface{}) Chain {
	if c.dead() {
		return c
	}
	m, err := newTextMatcher(text)
	if err != nil {
		return c.cy.fail(&CommandError{Command: "contains", Locator: c.l.desc, Err: err})
	}
	return c.derive(containsDesc(sel, m), func(ctx context.Context, sub Subject) (Subject, error) {
		if err := elementsOnly(sub); err != nil {
			return Subject{}, err
		}
		return c.cy.contains(ctx, sub.Nodes, sel, m)
	})
}

// readString reads a property and renders it as a string.
func readString(ctx context.Context, p Provider, id NodeID, name string) (string, error) {
	v, err := p.ReadProperty(ctx, id, name)
	if err != nil {
		return "", err
	}
	return toString(normalize(v)), nil
}

// readBool reads a boolean property. A missing property reads as false.
func readBool(ctx context.Context, p Provider, id NodeID, name string) (bool, error) {
	v, err := p.ReadProperty(ctx, id, name)
	switch {
	case errors.Is(err, ErrNoProperty):
		return false, nil
	case err != nil:
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// readFloat reads a numeric property.
func readFloat(ctx context.Context, p Provider, id NodeID, name string) (float64, error) {
	v, err := p.ReadProperty(ctx, id, name)
	if err != nil {
		return 0, err
	}
	f, ok := normalize(v).(float64)
	if !ok {
		return 0, fmt.Errorf("property %s is %T, not a number", name, v)
	}
	return f, nil
}
