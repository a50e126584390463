package static

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/chromedp/chainrun"
)

// parseNumbers parses "a b" or "a b c d" style attributes of numbers.
func parseNumbers(s string, n int) ([]float64, bool) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSuffix(f, "px"), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// ownBox returns the data-box of n.
func ownBox(n *html.Node) (chainrun.Rect, bool) {
	v, ok := attr(n, "data-box")
	if !ok {
		return chainrun.Rect{}, false
	}
	f, ok := parseNumbers(v, 4)
	if !ok {
		return chainrun.Rect{}, false
	}
	return chainrun.Rect{X: f[0], Y: f[1], Width: f[2], Height: f[3]}, true
}

// scrollSize returns the data-scroll-size of n.
func scrollSize(n *html.Node) (float64, float64, bool) {
	v, ok := attr(n, "data-scroll-size")
	if !ok {
		return 0, 0, false
	}
	f, ok := parseNumbers(v, 2)
	if !ok {
		return 0, 0, false
	}
	return f[0], f[1], true
}

func isScroller(n *html.Node) bool {
	_, _, ok := scrollSize(n)
	return ok && tag(n) != "html"
}

// docBox returns the box of n in unscrolled document coordinates.
func (d *Document) docBox(n *html.Node) chainrun.Rect {
	for cur := n; isElement(cur); cur = cur.Parent {
		if r, ok := ownBox(cur); ok {
			return r
		}
	}
	return chainrun.Rect{Width: float64(d.b.width), Height: float64(d.b.height)}
}

// viewBox returns the box of n in viewport coordinates.
func (d *Document) viewBox(n *html.Node) chainrun.Rect {
	r := d.docBox(n)
	for cur := n.Parent; isElement(cur); cur = cur.Parent {
		if isScroller(cur) {
			st := d.st(cur)
			r.X -= st.scrollLeft
			r.Y -= st.scrollTop
		}
	}
	r.X -= d.scrollX
	r.Y -= d.scrollY
	return r
}

// docSize returns the scrollable size of the document.
func (d *Document) docSize() (float64, float64) {
	w, h := float64(d.b.width), float64(d.b.height)
	if root := d.doc.Find("html"); root.Length() > 0 {
		if sw, sh, ok := scrollSize(root.Nodes[0]); ok {
			return math.Max(w, sw), math.Max(h, sh)
		}
	}
	for _, n := range elements(d.root()) {
		if r, ok := ownBox(n); ok {
			w = math.Max(w, r.X+r.Width)
			h = math.Max(h, r.Y+r.Height)
		}
	}
	return w, h
}

// maxScroll returns the largest scroll offsets of n, or of the window when
// n is nil.
func (d *Document) maxScroll(n *html.Node) (float64, float64) {
	if n == nil {
		w, h := d.docSize()
		return math.Max(w-float64(d.b.width), 0), math.Max(h-float64(d.b.height), 0)
	}
	sw, sh, ok := scrollSize(n)
	if !ok {
		return 0, 0
	}
	box := d.docBox(n)
	return math.Max(sw-box.Width, 0), math.Max(sh-box.Height, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func (d *Document) clampScroll() {
	mx, my := d.maxScroll(nil)
	d.scrollX, d.scrollY = clamp(d.scrollX, 0, mx), clamp(d.scrollY, 0, my)
}

func (d *Document) scrollTo(n *html.Node, x, y float64) {
	mx, my := d.maxScroll(n)
	x, y = clamp(x, 0, mx), clamp(y, 0, my)
	if n == nil {
		d.scrollX, d.scrollY = x, y
		return
	}
	st := d.st(n)
	st.scrollLeft, st.scrollTop = x, y
}

var unrenderedTags = map[string]bool{
	"head": true, "script": true, "style": true, "title": true,
	"meta": true, "link": true, "template": true, "noscript": true,
}

func styleHas(n *html.Node, decl string) bool {
	style, ok := attr(n, "style")
	if !ok {
		return false
	}
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	for _, part := range strings.Split(style, ";") {
		if part == decl {
			return true
		}
	}
	return false
}

// styleHidden reports whether n or an ancestor hides n through styles or
// attributes.
func styleHidden(n *html.Node) bool {
	if inputType(n) == "hidden" {
		return true
	}
	for cur := n; isElement(cur); cur = cur.Parent {
		if unrenderedTags[cur.Data] || hasAttr(cur, "hidden") ||
			styleHas(cur, "display:none") || styleHas(cur, "visibility:hidden") {
			return true
		}
	}
	return false
}

// rendered reports whether n is displayed and not clipped away by a
// scrolling ancestor.
func (d *Document) rendered(n *html.Node) bool {
	if !d.connected(n) || styleHidden(n) {
		return false
	}
	box := d.viewBox(n)
	if box.Empty() {
		return true
	}
	for cur := n.Parent; isElement(cur); cur = cur.Parent {
		if isScroller(cur) && !box.Intersects(d.viewBox(cur)) {
			return false
		}
	}
	return true
}

// scrollIntoView scrolls n's scrolling ancestors and the window so that n
// is in view, aligning its top left corner when it is not.
func (d *Document) scrollIntoView(n *html.Node) {
	target := d.docBox(n)
	for cur := n.Parent; isElement(cur); cur = cur.Parent {
		if !isScroller(cur) {
			continue
		}
		c := d.docBox(cur)
		st := d.st(cur)
		view := chainrun.Rect{X: c.X + st.scrollLeft, Y: c.Y + st.scrollTop, Width: c.Width, Height: c.Height}
		if !contains(view, target) {
			d.scrollTo(cur, target.X-c.X, target.Y-c.Y)
		}
		// The element now sits at the container's scrolled position.
		target.X -= st.scrollLeft
		target.Y -= st.scrollTop
	}
	view := chainrun.Rect{X: d.scrollX, Y: d.scrollY, Width: float64(d.b.width), Height: float64(d.b.height)}
	if !contains(view, target) {
		d.scrollTo(nil, target.X, target.Y)
	}
}

// contains reports whether inner lies within outer.
func contains(outer, inner chainrun.Rect) bool {
	return inner.X >= outer.X && inner.Y >= outer.Y &&
		inner.X+inner.Width <= outer.X+outer.Width &&
		inner.Y+inner.Height <= outer.Y+outer.Height
}

// elementAt returns the last element in document order with its own box
// containing the viewport point x, y.
func (d *Document) elementAt(x, y float64) *html.Node {
	var hit *html.Node
	for _, n := range elements(d.root()) {
		if _, ok := ownBox(n); !ok || styleHas(n, "pointer-events:none") || !d.rendered(n) {
			continue
		}
		if !d.viewBox(n).Contains(x, y) {
			continue
		}
		clipped := false
		for cur := n.Parent; isElement(cur); cur = cur.Parent {
			if isScroller(cur) && !d.viewBox(cur).Contains(x, y) {
				clipped = true
				break
			}
		}
		if !clipped {
			hit = n
		}
	}
	return hit
}
