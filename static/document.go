package static

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/chromedp/chainrun"
)

// Listener handles an event. target is the element the listener was
// registered for, which is the event target or one of its ancestors.
type Listener func(d *Document, target *goquery.Selection, ev chainrun.Event)

type listener struct {
	event string
	match cascadia.Selector
	fn    Listener
}

// nodeState is the live state of an element that is not reflected in its
// attributes.
type nodeState struct {
	value      string
	valueSet   bool
	checked    bool
	checkedSet bool
	selected   bool
	selSet     bool
	cursor     int
	cursorSet  bool
	selectAll  bool
	scrollLeft float64
	scrollTop  float64
	props      map[string]interface{}
}

// Document is a loaded page. Its methods are meant for page scripts, which
// run with the browser locked.
type Document struct {
	b         *Browser
	url       string
	doc       *goquery.Document
	ids       map[*html.Node]chainrun.NodeID
	nodes     map[chainrun.NodeID]*html.Node
	state     map[*html.Node]*nodeState
	focus     *html.Node
	scrollX   float64
	scrollY   float64
	ready     bool
	closed    bool
	listeners []listener
	timers    []*time.Timer
	props     map[string]interface{}
}

func parse(b *Browser, u, src string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	return &Document{
		b:     b,
		url:   u,
		doc:   doc,
		ids:   map[*html.Node]chainrun.NodeID{},
		nodes: map[chainrun.NodeID]*html.Node{},
		state: map[*html.Node]*nodeState{},
		ready: true,
		props: map[string]interface{}{},
	}, nil
}

func (d *Document) close() {
	d.closed = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
}

// URL returns the URL the document was loaded from.
func (d *Document) URL() string {
	return d.url
}

// Find returns the elements of the document matching sel.
func (d *Document) Find(sel string) *goquery.Selection {
	return d.doc.Find(sel)
}

// On registers fn for events named event on elements matching sel,
// including events bubbling up from their descendants. The selector
// "document" registers on the document. It panics when sel is invalid.
func (d *Document) On(sel, event string, fn Listener) {
	l := listener{event: event, fn: fn}
	if sel != "document" {
		l.match = cascadia.MustCompile(sel)
	}
	d.listeners = append(d.listeners, l)
}

// After runs fn once dur has elapsed, unless the browser navigated away or
// was closed in the meantime.
func (d *Document) After(dur time.Duration, fn func(d *Document)) {
	b := d.b
	d.timers = append(d.timers, time.AfterFunc(dur, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if d.closed || b.doc != d {
			return
		}
		fn(d)
	}))
}

// Value returns the current value of the first element of s.
func (d *Document) Value(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	v, _ := d.value(s.Nodes[0])
	return v
}

// SetValue sets the value of every element of s.
func (d *Document) SetValue(s *goquery.Selection, v string) {
	for _, n := range s.Nodes {
		d.setValue(n, v)
	}
}

// Checked reports whether the first element of s is checked.
func (d *Document) Checked(s *goquery.Selection) bool {
	return s.Length() > 0 && d.checked(s.Nodes[0])
}

// Focused returns the focused element, if any.
func (d *Document) Focused() *goquery.Selection {
	if d.focus == nil {
		return selection()
	}
	return selection(d.focus)
}

// SetProp sets a custom property on every element of s.
func (d *Document) SetProp(s *goquery.Selection, name string, v interface{}) {
	for _, n := range s.Nodes {
		st := d.st(n)
		if st.props == nil {
			st.props = map[string]interface{}{}
		}
		st.props[name] = v
	}
}

// Prop returns a custom property of the first element of s.
func (d *Document) Prop(s *goquery.Selection, name string) (interface{}, bool) {
	if s.Length() == 0 {
		return nil, false
	}
	v, ok := d.st(s.Nodes[0]).props[name]
	return v, ok
}

// SetWindowProp sets a custom property on the window.
func (d *Document) SetWindowProp(name string, v interface{}) {
	d.props[name] = v
}

// ScrollPosition returns the window scroll offsets.
func (d *Document) ScrollPosition() (float64, float64) {
	return d.scrollX, d.scrollY
}

// selection wraps nodes in a goquery selection.
func selection(nodes ...*html.Node) *goquery.Selection {
	return &goquery.Selection{Nodes: nodes}
}

func (d *Document) root() *html.Node {
	return d.doc.Selection.Nodes[0]
}

// id returns the id of n, assigning one on first use. Ids are unique for
// the lifetime of the browser.
func (d *Document) id(n *html.Node) chainrun.NodeID {
	if n == d.root() {
		return chainrun.DocumentNode
	}
	if id, ok := d.ids[n]; ok {
		return id
	}
	d.b.next++
	id := d.b.next
	d.ids[n] = id
	d.nodes[id] = n
	return id
}

// node returns the element with id.
func (d *Document) node(id chainrun.NodeID) (*html.Node, error) {
	if id == chainrun.DocumentNode || id == chainrun.WindowNode {
		return d.root(), nil
	}
	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %d", chainrun.ErrDetached, id)
	}
	return n, nil
}

func (d *Document) st(n *html.Node) *nodeState {
	st, ok := d.state[n]
	if !ok {
		st = &nodeState{}
		d.state[n] = st
	}
	return st
}

// connected reports whether n is still part of the document.
func (d *Document) connected(n *html.Node) bool {
	root := d.root()
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, name string) bool {
	_, ok := attr(n, name)
	return ok
}

func setAttr(n *html.Node, name, v string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = v
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: v})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func isElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

func tag(n *html.Node) string {
	if !isElement(n) {
		return ""
	}
	return n.Data
}

func inputType(n *html.Node) string {
	if tag(n) != "input" {
		return ""
	}
	t, _ := attr(n, "type")
	if t == "" {
		return "text"
	}
	return strings.ToLower(t)
}

// closest returns n or its nearest ancestor with tag name.
func closest(n *html.Node, name string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if tag(cur) == name {
			return cur
		}
	}
	return nil
}

// elements returns the element descendants of n in document order.
func elements(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func (d *Document) value(n *html.Node) (string, bool) {
	st := d.st(n)
	if st.valueSet {
		return st.value, true
	}
	switch tag(n) {
	case "input", "button":
		v, _ := attr(n, "value")
		if v == "" && (inputType(n) == "checkbox" || inputType(n) == "radio") && !hasAttr(n, "value") {
			v = "on"
		}
		return v, true
	case "textarea":
		return selection(n).Text(), true
	case "option":
		if v, ok := attr(n, "value"); ok {
			return v, true
		}
		return strings.TrimSpace(selection(n).Text()), true
	case "select":
		opts := selection(n).Find("option").Nodes
		for _, o := range opts {
			if d.selected(o) {
				return d.value(o)
			}
		}
		return "", true
	}
	return "", false
}

func (d *Document) setValue(n *html.Node, v string) {
	if tag(n) == "select" {
		for _, o := range selection(n).Find("option").Nodes {
			ov, _ := d.value(o)
			d.setSelected(o, ov == v)
		}
		return
	}
	st := d.st(n)
	st.value, st.valueSet = v, true
	st.cursorSet = false
	st.selectAll = false
}

func (d *Document) checked(n *html.Node) bool {
	st := d.st(n)
	if st.checkedSet {
		return st.checked
	}
	return hasAttr(n, "checked")
}

func (d *Document) setChecked(n *html.Node, v bool) {
	st := d.st(n)
	st.checked, st.checkedSet = v, true
	if !v || inputType(n) != "radio" {
		return
	}
	name, _ := attr(n, "name")
	scope := closest(n, "form")
	if scope == nil {
		scope = d.root()
	}
	for _, o := range elements(scope) {
		if o == n || inputType(o) != "radio" {
			continue
		}
		if other, _ := attr(o, "name"); other == name {
			st := d.st(o)
			st.checked, st.checkedSet = false, true
		}
	}
}

func (d *Document) selected(n *html.Node) bool {
	st := d.st(n)
	if st.selSet {
		return st.selected
	}
	if hasAttr(n, "selected") {
		return true
	}
	// A single select without a selected option shows its first option.
	sel := closest(n, "select")
	if sel == nil || hasAttr(sel, "multiple") {
		return false
	}
	opts := selection(sel).Find("option").Nodes
	for _, o := range opts {
		if o != n && (hasAttr(o, "selected") || (d.st(o).selSet && d.st(o).selected)) {
			return false
		}
	}
	return len(opts) > 0 && opts[0] == n
}

// setSelected selects or deselects the option n. Selecting an option of a
// single select deselects the others.
func (d *Document) setSelected(n *html.Node, v bool) {
	if sel := closest(n, "select"); v && sel != nil && !hasAttr(sel, "multiple") {
		for _, o := range selection(sel).Find("option").Nodes {
			st := d.st(o)
			st.selected, st.selSet = false, true
		}
	}
	st := d.st(n)
	st.selected, st.selSet = v, true
}

func disabled(n *html.Node) bool {
	for cur := n; isElement(cur); cur = cur.Parent {
		if hasAttr(cur, "disabled") {
			switch tag(cur) {
			case "button", "input", "select", "textarea", "option", "optgroup", "fieldset":
				return true
			}
		}
	}
	return false
}
