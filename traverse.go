package chainrun

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func (cy *Cy) query(ctx context.Context, from NodeID, rel Relation, sel string) ([]NodeID, error) {
	return cy.s.provider.QueryAll(ctx, from, Query{Relation: rel, Selector: sel})
}

// matches reports whether id matches sel. The empty selector matches any
// element.
func (cy *Cy) matches(ctx context.Context, id NodeID, sel string) (bool, error) {
	if sel == "" {
		return true, nil
	}
	nodes, err := cy.query(ctx, id, Self, sel)
	return len(nodes) > 0, err
}

// step returns the single node reached from id through rel, or NoNode.
func (cy *Cy) step(ctx context.Context, id NodeID, rel Relation) (NodeID, error) {
	nodes, err := cy.query(ctx, id, rel, "")
	if err != nil || len(nodes) == 0 {
		return NoNode, err
	}
	return nodes[0], nil
}

// walk follows rel from id, collecting nodes matching filter until a node
// matches until.
func (cy *Cy) walk(ctx context.Context, id NodeID, rel Relation, until, filter string) ([]NodeID, error) {
	var out []NodeID
	for {
		next, err := cy.step(ctx, id, rel)
		if err != nil {
			return nil, err
		}
		if next == NoNode {
			return out, nil
		}
		if until != "" {
			stop, err := cy.matches(ctx, next, until)
			if err != nil {
				return nil, err
			}
			if stop {
				return out, nil
			}
		}
		ok, err := cy.matches(ctx, next, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, next)
		}
		id = next
	}
}

// isAncestor reports whether anc is a proper ancestor of id.
func (cy *Cy) isAncestor(ctx context.Context, anc, id NodeID) (bool, error) {
	for {
		p, err := cy.step(ctx, id, Parent)
		if err != nil || p == NoNode {
			return false, err
		}
		if p == anc {
			return true, nil
		}
		id = p
	}
}

func optional(sel []string) string {
	if len(sel) == 0 {
		return ""
	}
	return sel[0]
}

func traversalDesc(name string, args ...string) string {
	var quoted []string
	for _, a := range args {
		if a != "" {
			quoted = append(quoted, strconv.Quote(a))
		}
	}
	return name + "(" + strings.Join(quoted, ", ") + ")"
}

// perNode applies fn to every node and concatenates the results.
func perNode(ctx context.Context, nodes []NodeID, fn func(context.Context, NodeID) ([]NodeID, error)) ([]NodeID, error) {
	var out []NodeID
	for _, id := range nodes {
		res, err := fn(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

// Find yields the descendants of the subject matching sel.
func (c Chain) Find(sel string) Chain {
	base, positional := splitPositional(sel)
	return c.deriveNodes(traversalDesc("find", sel), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		out, err := perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.query(ctx, id, Descendants, base)
		})
		if err != nil {
			return nil, err
		}
		return positional(dedupe(out)), nil
	})
}

// Children yields the child elements of the subject, optionally filtered
// by sel.
func (c Chain) Children(sel ...string) Chain {
	f := optional(sel)
	return c.deriveNodes(traversalDesc("children", f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.query(ctx, id, Children, f)
		})
	})
}

// Parent yields the parent element of each subject element, optionally
// filtered by sel.
func (c Chain) Parent(sel ...string) Chain {
	f := optional(sel)
	return c.deriveNodes(traversalDesc("parent", f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.query(ctx, id, Parent, f)
		})
	})
}

// Parents yields the ancestors of the subject, closest first, optionally
// filtered by sel.
func (c Chain) Parents(sel ...string) Chain {
	f := optional(sel)
	return c.deriveNodes(traversalDesc("parents", f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.walk(ctx, id, Parent, "", f)
		})
	})
}

// ParentsUntil yields the ancestors of the subject up to, but not
// including, the first one matching until.
func (c Chain) ParentsUntil(until string, filter ...string) Chain {
	f := optional(filter)
	return c.deriveNodes(traversalDesc("parentsUntil", until, f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.walk(ctx, id, Parent, until, f)
		})
	})
}

// Closest yields, for each subject element, the element itself or its
// nearest ancestor matching sel.
func (c Chain) Closest(sel string) Chain {
	return c.deriveNodes(traversalDesc("closest", sel), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			for id != NoNode {
				ok, err := c.cy.matches(ctx, id, sel)
				if err != nil {
					return nil, err
				}
				if ok {
					return []NodeID{id}, nil
				}
				if id, err = c.cy.step(ctx, id, Parent); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
	})
}

// Next yields the immediately following sibling of each subject element,
// when it matches sel.
func (c Chain) Next(sel ...string) Chain {
	f := optional(sel)
	return c.deriveNodes(traversalDesc("next", f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.query(ctx, id, NextSibling, f)
		})
	})
}

// NextAll yields all following siblings of the subject.
func (c Chain) NextAll(sel ...string) Chain {
	f := optional(sel)
	return c.deriveNodes(traversalDesc("nextAll", f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.walk(ctx, id, NextSibling, "", f)
		})
	})
}

// NextUntil yields the following siblings of the subject up to, but not
// including, the first one matching until.
func (c Chain) NextUntil(until string, filter ...string) Chain {
	f := optional(filter)
	return c.deriveNodes(traversalDesc("nextUntil", until, f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.walk(ctx, id, NextSibling, until, f)
		})
	})
}

// Prev yields the immediately preceding sibling of each subject element,
// when it matches sel.
func (c Chain) Prev(sel ...string) Chain {
	f := optional(sel)
	return c.deriveNodes(traversalDesc("prev", f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.query(ctx, id, PrevSibling, f)
		})
	})
}

// PrevAll yields all preceding siblings of the subject, closest first.
func (c Chain) PrevAll(sel ...string) Chain {
	f := optional(sel)
	return c.deriveNodes(traversalDesc("prevAll", f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.walk(ctx, id, PrevSibling, "", f)
		})
	})
}

// PrevUntil yields the preceding siblings of the subject, closest first,
// up to but not including the first one matching until.
func (c Chain) PrevUntil(until string, filter ...string) Chain {
	f := optional(filter)
	return c.deriveNodes(traversalDesc("prevUntil", until, f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			return c.cy.walk(ctx, id, PrevSibling, until, f)
		})
	})
}

// Siblings yields the other children of each subject element's parent,
// in document order.
func (c Chain) Siblings(sel ...string) Chain {
	f := optional(sel)
	return c.deriveNodes(traversalDesc("siblings", f), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return perNode(ctx, nodes, func(ctx context.Context, id NodeID) ([]NodeID, error) {
			prev, err := c.cy.walk(ctx, id, PrevSibling, "", f)
			if err != nil {
				return nil, err
			}
			next, err := c.cy.walk(ctx, id, NextSibling, "", f)
			if err != nil {
				return nil, err
			}
			out := make([]NodeID, 0, len(prev)+len(next))
			for i := len(prev) - 1; i >= 0; i-- {
				out = append(out, prev[i])
			}
			return append(out, next...), nil
		})
	})
}

// Filter keeps the subject elements matching sel.
func (c Chain) Filter(sel string) Chain {
	return c.deriveNodes(traversalDesc("filter", sel), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return c.cy.keep(ctx, nodes, sel, true)
	})
}

// Not drops the subject elements matching sel.
func (c Chain) Not(sel string) Chain {
	return c.deriveNodes(traversalDesc("not", sel), func(ctx context.Context, nodes []NodeID) ([]NodeID, error) {
		return c.cy.keep(ctx, nodes, sel, false)
	})
}

func (cy *Cy) keep(ctx context.Context, nodes []NodeID, sel string, want bool) ([]NodeID, error) {
	var out []NodeID
	for _, id := range nodes {
		ok, err := cy.matches(ctx, id, sel)
		if err != nil {
			return nil, err
		}
		if ok == want {
			out = append(out, id)
		}
	}
	return out, nil
}

// Eq yields the subject element at index i. Negative indexes count from
// the end.
func (c Chain) Eq(i int) Chain {
	return c.deriveNodes(fmt.Sprintf("eq(%d)", i), func(_ context.Context, nodes []NodeID) ([]NodeID, error) {
		return pick(nodes, i), nil
	})
}

// First yields the first subject element.
func (c Chain) First() Chain {
	return c.deriveNodes("first()", func(_ context.Context, nodes []NodeID) ([]NodeID, error) {
		return pick(nodes, 0), nil
	})
}

// Last yields the last subject element.
func (c Chain) Last() Chain {
	return c.deriveNodes("last()", func(_ context.Context, nodes []NodeID) ([]NodeID, error) {
		return pick(nodes, -1), nil
	})
}
