package static

import (
	"context"
	"strconv"
	"unicode/utf8"

	"golang.org/x/exp/slices"
	"golang.org/x/net/html"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/kb"
)

// DispatchEvent satisfies chainrun.Provider. Events run the listeners of
// the target and its ancestors, then the default action.
func (b *Browser) DispatchEvent(ctx context.Context, id chainrun.NodeID, ev chainrun.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.doc
	n, err := d.node(id)
	if err != nil {
		return err
	}
	if id == chainrun.WindowNode || id == chainrun.DocumentNode {
		d.fire(n, eventName(ev), ev)
		return nil
	}
	switch ev.Type {
	case chainrun.MouseMoved:
		d.fire(n, "mousemove", ev)
		d.fire(n, "mouseover", ev)
	case chainrun.MousePressed:
		d.fire(n, "mousedown", ev)
		if f := focusable(n); f != nil {
			d.setFocus(f, ev)
		} else if d.focus != nil {
			d.setFocus(nil, ev)
		}
	case chainrun.MouseReleased:
		d.fire(n, "mouseup", ev)
		if ev.Button == chainrun.ButtonRight {
			d.fire(n, "contextmenu", ev)
			break
		}
		d.fire(n, "click", ev)
		d.click(n, ev)
		if ev.ClickCount == 2 {
			d.fire(n, "dblclick", ev)
		}
	case chainrun.KeyDown:
		d.fire(n, "keydown", ev)
		d.keyDown(n, ev)
	case chainrun.KeyChar:
		d.fire(n, "keypress", ev)
		d.insert(n, ev.Text, ev)
	case chainrun.KeyUp:
		d.fire(n, "keyup", ev)
	case chainrun.FocusEvent:
		d.setFocus(n, ev)
	case chainrun.BlurEvent:
		if d.focus == n {
			d.setFocus(nil, ev)
		}
	case chainrun.ScrollIntoViewEvent:
		d.scrollIntoView(n)
	default:
		d.fire(n, eventName(ev), ev)
	}
	return nil
}

func eventName(ev chainrun.Event) string {
	if ev.Type == chainrun.CustomEvent {
		return ev.Name
	}
	return ev.Type.String()
}

// fire runs the listeners for event on n and its ancestors, innermost
// first, then the document listeners.
func (d *Document) fire(n *html.Node, event string, ev chainrun.Event) {
	if event == "" {
		return
	}
	for cur := n; isElement(cur); cur = cur.Parent {
		for _, l := range d.listeners {
			if l.event == event && l.match != nil && l.match.Match(cur) {
				l.fn(d, selection(cur), ev)
			}
		}
	}
	for _, l := range d.listeners {
		if l.event == event && l.match == nil {
			l.fn(d, selection(d.root()), ev)
		}
	}
}

var focusableTags = map[string]bool{
	"input": true, "textarea": true, "select": true, "button": true, "a": true,
}

// focusable returns n or its nearest ancestor that can take focus.
func focusable(n *html.Node) *html.Node {
	for cur := n; isElement(cur); cur = cur.Parent {
		if (focusableTags[cur.Data] || hasAttr(cur, "tabindex")) && !disabled(cur) {
			return cur
		}
	}
	return nil
}

func (d *Document) setFocus(n *html.Node, ev chainrun.Event) {
	if d.focus == n {
		return
	}
	if prev := d.focus; prev != nil {
		d.focus = nil
		d.fire(prev, "blur", ev)
		d.fire(prev, "focusout", ev)
	}
	if n == nil {
		return
	}
	d.focus = n
	st := d.st(n)
	st.cursorSet, st.selectAll = false, false
	d.fire(n, "focus", ev)
	d.fire(n, "focusin", ev)
}

// click runs the default action of a left click on n.
func (d *Document) click(n *html.Node, ev chainrun.Event) {
	if disabled(n) {
		return
	}
	switch inputType(n) {
	case "checkbox":
		d.setChecked(n, !d.checked(n))
		d.fire(n, "input", ev)
		d.fire(n, "change", ev)
		return
	case "radio":
		if !d.checked(n) {
			d.setChecked(n, true)
			d.fire(n, "input", ev)
			d.fire(n, "change", ev)
		}
		return
	case "submit":
		d.submit(n, ev)
		return
	}
	if tag(n) == "button" {
		if t, ok := attr(n, "type"); !ok || t == "submit" {
			d.submit(n, ev)
		}
	}
}

// submit fires submit on the form owning n.
func (d *Document) submit(n *html.Node, ev chainrun.Event) {
	if form := closest(n, "form"); form != nil {
		d.fire(form, "submit", ev)
	}
}

var textInputTypes = map[string]bool{
	"text": true, "email": true, "password": true, "search": true, "tel": true,
	"url": true, "number": true, "date": true, "datetime-local": true,
	"month": true, "time": true, "week": true,
}

func editable(n *html.Node) bool {
	if disabled(n) || hasAttr(n, "readonly") {
		return false
	}
	if tag(n) == "textarea" {
		return true
	}
	return textInputTypes[inputType(n)] || hasAttr(n, "contenteditable")
}

// text returns the value of an editable element and the cursor position
// in runes.
func (d *Document) text(n *html.Node) ([]rune, int) {
	v, _ := d.value(n)
	r := []rune(v)
	st := d.st(n)
	if !st.cursorSet || st.cursor > len(r) {
		return r, len(r)
	}
	return r, st.cursor
}

func (d *Document) setText(n *html.Node, r []rune, cursor int) {
	d.setValue(n, string(r))
	st := d.st(n)
	st.cursor, st.cursorSet = cursor, true
	st.selectAll = false
}

func (d *Document) keyDown(n *html.Node, ev chainrun.Event) {
	st := d.st(n)
	if slices.Contains(ev.Commands, "selectAll") {
		st.selectAll = editable(n)
		return
	}
	if ev.Key == nil {
		return
	}
	if ev.Key.Key == kb.Enter && tag(n) == "input" {
		d.submit(n, ev)
		return
	}
	if !editable(n) {
		return
	}
	r, cur := d.text(n)
	switch ev.Key.Key {
	case kb.Backspace, kb.Delete:
		switch {
		case st.selectAll:
			r, cur = nil, 0
		case ev.Key.Key == kb.Backspace && cur > 0:
			r = append(r[:cur-1:cur-1], r[cur:]...)
			cur--
		case ev.Key.Key == kb.Delete && cur < len(r):
			r = append(r[:cur:cur], r[cur+1:]...)
		default:
			return
		}
		d.setText(n, r, cur)
		d.fire(n, "input", ev)
		return
	case kb.ArrowLeft:
		if cur > 0 {
			cur--
		}
	case kb.ArrowRight:
		if cur < len(r) {
			cur++
		}
	case kb.Home, kb.ArrowUp:
		cur = 0
	case kb.End, kb.ArrowDown:
		cur = len(r)
	default:
		return
	}
	st.selectAll = false
	st.cursor, st.cursorSet = cur, true
}

// insert types text into n at the cursor, replacing the whole value when
// it is selected.
func (d *Document) insert(n *html.Node, text string, ev chainrun.Event) {
	if !editable(n) || text == "" {
		return
	}
	if text == "\r" {
		if tag(n) != "textarea" {
			return
		}
		text = "\n"
	}
	st := d.st(n)
	r, cur := d.text(n)
	if st.selectAll {
		r, cur = nil, 0
	}
	if maxLen, ok := attr(n, "maxlength"); ok {
		if limit, err := strconv.Atoi(maxLen); err == nil && len(r)+utf8.RuneCountInString(text) > limit {
			return
		}
	}
	ins := []rune(text)
	out := make([]rune, 0, len(r)+len(ins))
	out = append(out, r[:cur]...)
	out = append(out, ins...)
	out = append(out, r[cur:]...)
	d.setText(n, out, cur+len(ins))
	d.fire(n, "input", ev)
}
