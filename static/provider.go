package static

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/chromedp/chainrun"
)

var anyElement = cascadia.Selector(isElement)

func compile(sel string) (cascadia.Selector, error) {
	if sel == "" {
		return anyElement, nil
	}
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", chainrun.ErrInvalidSelector, sel, err)
	}
	return m, nil
}

// QueryAll satisfies chainrun.Provider.
func (b *Browser) QueryAll(ctx context.Context, from chainrun.NodeID, q chainrun.Query) ([]chainrun.NodeID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := compile(q.Selector)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.doc
	start, err := d.node(from)
	if err != nil {
		return nil, err
	}

	var found []*html.Node
	add := func(n *html.Node) {
		if isElement(n) && m.Match(n) {
			found = append(found, n)
		}
	}
	switch q.Relation {
	case chainrun.Descendants:
		found = goquery.NewDocumentFromNode(start).FindMatcher(m).Nodes
	case chainrun.Children:
		for c := start.FirstChild; c != nil; c = c.NextSibling {
			add(c)
		}
	case chainrun.Parent:
		add(start.Parent)
	case chainrun.NextSibling:
		c := start.NextSibling
		for c != nil && !isElement(c) {
			c = c.NextSibling
		}
		add(c)
	case chainrun.PrevSibling:
		c := start.PrevSibling
		for c != nil && !isElement(c) {
			c = c.PrevSibling
		}
		add(c)
	case chainrun.Self:
		add(start)
	default:
		return nil, fmt.Errorf("unknown relation %v", q.Relation)
	}

	ids := make([]chainrun.NodeID, len(found))
	for i, n := range found {
		ids[i] = d.id(n)
	}
	return ids, nil
}

// Attribute satisfies chainrun.Provider.
func (b *Browser) Attribute(ctx context.Context, id chainrun.NodeID, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == chainrun.WindowNode || id == chainrun.DocumentNode {
		return "", false, nil
	}
	n, err := b.doc.node(id)
	if err != nil {
		return "", false, err
	}
	v, ok := attr(n, name)
	return v, ok, nil
}

// BoundingBox satisfies chainrun.Provider.
func (b *Browser) BoundingBox(ctx context.Context, id chainrun.NodeID) (chainrun.Rect, error) {
	if err := ctx.Err(); err != nil {
		return chainrun.Rect{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.doc
	switch id {
	case chainrun.WindowNode:
		return chainrun.Rect{Width: float64(b.width), Height: float64(b.height)}, nil
	case chainrun.DocumentNode:
		w, h := d.docSize()
		return chainrun.Rect{X: -d.scrollX, Y: -d.scrollY, Width: w, Height: h}, nil
	}
	n, err := d.node(id)
	if err != nil {
		return chainrun.Rect{}, err
	}
	return d.viewBox(n), nil
}

// ElementAt satisfies chainrun.HitTester.
func (b *Browser) ElementAt(ctx context.Context, x, y float64) (chainrun.NodeID, error) {
	if err := ctx.Err(); err != nil {
		return chainrun.NoNode, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.doc.elementAt(x, y)
	if n == nil {
		return chainrun.NoNode, nil
	}
	return b.doc.id(n), nil
}

// ReadProperty satisfies chainrun.Provider.
func (b *Browser) ReadProperty(ctx context.Context, id chainrun.NodeID, name string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.doc
	switch id {
	case chainrun.WindowNode:
		return d.windowProperty(name)
	case chainrun.DocumentNode:
		return d.documentProperty(name)
	}
	n, ok := d.nodes[id]
	if !ok {
		if name == chainrun.PropIsConnected {
			return false, nil
		}
		return nil, fmt.Errorf("%w: node %d", chainrun.ErrDetached, id)
	}
	return d.property(n, name)
}

func noProperty(name string) error {
	return fmt.Errorf("%w: %s", chainrun.ErrNoProperty, name)
}

func (d *Document) windowProperty(name string) (interface{}, error) {
	b := d.b
	switch name {
	case chainrun.PropScrollLeft:
		return d.scrollX, nil
	case chainrun.PropScrollTop:
		return d.scrollY, nil
	case chainrun.PropScrollWidth:
		w, _ := d.docSize()
		return w, nil
	case chainrun.PropScrollHeight:
		_, h := d.docSize()
		return h, nil
	case chainrun.PropClientWidth, "innerWidth":
		return float64(b.width), nil
	case chainrun.PropClientHeight, "innerHeight":
		return float64(b.height), nil
	case "devicePixelRatio":
		return b.scale, nil
	case "maxTouchPoints":
		if b.touch {
			return 1.0, nil
		}
		return 0.0, nil
	case "location":
		return d.url, nil
	case "top", "self", "window":
		return map[string]interface{}{"location": d.url}, nil
	case chainrun.PropIsConnected, chainrun.PropRendered:
		return true, nil
	}
	if v, ok := d.props[name]; ok {
		return v, nil
	}
	return nil, noProperty(name)
}

func (d *Document) documentProperty(name string) (interface{}, error) {
	switch name {
	case chainrun.PropReadyState:
		if d.ready {
			return "complete", nil
		}
		return "loading", nil
	case chainrun.PropTitle:
		return strings.TrimSpace(d.doc.Find("title").First().Text()), nil
	case "charset", "characterSet":
		if v, ok := d.doc.Find("meta[charset]").First().Attr("charset"); ok {
			return strings.ToUpper(v), nil
		}
		return "UTF-8", nil
	case "URL":
		return d.url, nil
	case chainrun.PropTextContent:
		return nil, nil
	case chainrun.PropIsConnected, chainrun.PropRendered:
		return true, nil
	}
	return nil, noProperty(name)
}

func (d *Document) property(n *html.Node, name string) (interface{}, error) {
	st := d.st(n)
	if v, ok := st.props[name]; ok {
		return v, nil
	}
	switch name {
	case chainrun.PropTextContent:
		return selection(n).Text(), nil
	case chainrun.PropValue:
		v, ok := d.value(n)
		if !ok {
			return nil, noProperty(name)
		}
		return v, nil
	case chainrun.PropChecked:
		return d.checked(n), nil
	case chainrun.PropSelected:
		return d.selected(n), nil
	case chainrun.PropDisabled:
		return disabled(n), nil
	case chainrun.PropTagName:
		return strings.ToUpper(n.Data), nil
	case chainrun.PropType:
		if tag(n) == "input" {
			return inputType(n), nil
		}
		t, _ := attr(n, "type")
		return t, nil
	case chainrun.PropIsConnected:
		return d.connected(n), nil
	case chainrun.PropRendered:
		return d.rendered(n), nil
	case chainrun.PropFocused:
		return d.focus == n, nil
	case chainrun.PropScrollLeft:
		return st.scrollLeft, nil
	case chainrun.PropScrollTop:
		return st.scrollTop, nil
	case chainrun.PropScrollWidth:
		if w, _, ok := scrollSize(n); ok {
			return w, nil
		}
		return d.docBox(n).Width, nil
	case chainrun.PropScrollHeight:
		if _, h, ok := scrollSize(n); ok {
			return h, nil
		}
		return d.docBox(n).Height, nil
	case chainrun.PropClientWidth:
		return d.docBox(n).Width, nil
	case chainrun.PropClientHeight:
		return d.docBox(n).Height, nil
	case "id", "className", "href", "name", "placeholder":
		key := name
		if name == "className" {
			key = "class"
		}
		v, _ := attr(n, key)
		return v, nil
	case "innerHTML":
		return selection(n).Html()
	}
	return nil, noProperty(name)
}

// SetProperty satisfies chainrun.Provider.
func (b *Browser) SetProperty(ctx context.Context, id chainrun.NodeID, name string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.doc
	if id == chainrun.WindowNode {
		switch name {
		case chainrun.PropScrollLeft:
			d.scrollTo(nil, toFloat(v), d.scrollY)
		case chainrun.PropScrollTop:
			d.scrollTo(nil, d.scrollX, toFloat(v))
		default:
			d.props[name] = v
		}
		return nil
	}
	if id == chainrun.DocumentNode {
		return fmt.Errorf("cannot set document property %s", name)
	}
	n, err := d.node(id)
	if err != nil {
		return err
	}
	st := d.st(n)
	switch name {
	case chainrun.PropValue:
		d.setValue(n, fmt.Sprint(v))
	case chainrun.PropChecked:
		d.setChecked(n, toBool(v))
	case chainrun.PropSelected:
		d.setSelected(n, toBool(v))
	case chainrun.PropDisabled:
		if toBool(v) {
			setAttr(n, "disabled", "")
		} else {
			removeAttr(n, "disabled")
		}
	case chainrun.PropTextContent:
		selection(n).SetText(fmt.Sprint(v))
	case chainrun.PropScrollLeft:
		d.scrollTo(n, toFloat(v), st.scrollTop)
	case chainrun.PropScrollTop:
		d.scrollTo(n, st.scrollLeft, toFloat(v))
	default:
		if st.props == nil {
			st.props = map[string]interface{}{}
		}
		st.props[name] = v
	}
	return nil
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return v != nil
}

func toFloat(v interface{}) float64 {
	switch f := v.(type) {
	case float64:
		return f
	case float32:
		return float64(f)
	case int:
		return float64(f)
	case int64:
		return float64(f)
	}
	return 0
}
