package chainrun

import (
	"context"
	"time"

	"github.com/chromedp/chainrun/device"
	"github.com/chromedp/chainrun/kb"
)

// NodeID is an opaque reference to a node owned by a Provider.
type NodeID int64

// Well-known node ids.
const (
	NoNode       NodeID = 0
	DocumentNode NodeID = -1
	WindowNode   NodeID = -2
)

// Relation is the structural relation a Query walks from its context node.
type Relation int

// Relation values.
const (
	Descendants Relation = iota
	Children
	Parent
	NextSibling
	PrevSibling
	Self
)

// String satisfies fmt.Stringer.
func (r Relation) String() string {
	switch r {
	case Descendants:
		return "descendants"
	case Children:
		return "children"
	case Parent:
		return "parent"
	case NextSibling:
		return "next"
	case PrevSibling:
		return "prev"
	case Self:
		return "self"
	}
	return "unknown"
}

// Query selects the element nodes reached through Relation that match
// Selector. An empty Selector matches any element.
type Query struct {
	Relation Relation
	Selector string
}

// Rect is a bounding box in CSS pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Contains reports whether the point (x, y) lies within r.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// EventType is the kind of a dispatched event.
type EventType int

// EventType values.
const (
	MouseMoved EventType = iota
	MousePressed
	MouseReleased
	KeyDown
	KeyUp
	KeyChar
	FocusEvent
	BlurEvent
	SubmitEvent
	InputEvent
	ChangeEvent
	ScrollIntoViewEvent
	CustomEvent
)

var eventTypeNames = [...]string{
	MouseMoved:          "mousemove",
	MousePressed:        "mousedown",
	MouseReleased:       "mouseup",
	KeyDown:             "keydown",
	KeyUp:               "keyup",
	KeyChar:             "keypress",
	FocusEvent:          "focus",
	BlurEvent:           "blur",
	SubmitEvent:         "submit",
	InputEvent:          "input",
	ChangeEvent:         "change",
	ScrollIntoViewEvent: "scrollintoview",
	CustomEvent:         "custom",
}

// String satisfies fmt.Stringer.
func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// Modifier is a bit set of held modifier keys. The values match the Chrome
// DevTools Protocol.
type Modifier int64

// Modifier values.
const (
	ModifierNone Modifier = 0
	ModifierAlt  Modifier = 1 << (iota - 1)
	ModifierCtrl
	ModifierMeta
	ModifierShift
)

// MouseButton is a mouse button.
type MouseButton string

// MouseButton values.
const (
	ButtonNone  MouseButton = "none"
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// Event describes a primitive event to dispatch on a node.
//
// Mouse events carry viewport coordinates in X and Y. Key events carry the
// key definition and the held modifiers. CustomEvent uses Name.
type Event struct {
	Type       EventType
	Name       string
	Key        *kb.Key
	Text       string
	Modifiers  Modifier
	Commands   []string
	X, Y       float64
	Button     MouseButton
	ClickCount int
}

// Well-known property names.
const (
	PropTextContent  = "textContent"
	PropValue        = "value"
	PropChecked      = "checked"
	PropSelected     = "selected"
	PropDisabled     = "disabled"
	PropTagName      = "tagName"
	PropType         = "type"
	PropIsConnected  = "isConnected"
	PropRendered     = "rendered"
	PropFocused      = "focused"
	PropScrollLeft   = "scrollLeft"
	PropScrollTop    = "scrollTop"
	PropScrollWidth  = "scrollWidth"
	PropScrollHeight = "scrollHeight"
	PropClientWidth  = "clientWidth"
	PropClientHeight = "clientHeight"
	PropReadyState   = "readyState"
	PropTitle        = "title"
)

// Provider is the browser capability interface the runner drives.
//
// QueryAll returns element nodes in document order. ReadProperty returns
// ErrNoProperty when the node has no such property. BoundingBox returns
// viewport coordinates; for WindowNode it returns the viewport itself.
type Provider interface {
	Navigate(ctx context.Context, url string) error
	QueryAll(ctx context.Context, from NodeID, q Query) ([]NodeID, error)
	DispatchEvent(ctx context.Context, id NodeID, ev Event) error
	ReadProperty(ctx context.Context, id NodeID, name string) (interface{}, error)
	SetProperty(ctx context.Context, id NodeID, name string, v interface{}) error
	Attribute(ctx context.Context, id NodeID, name string) (string, bool, error)
	BoundingBox(ctx context.Context, id NodeID) (Rect, error)
	Wait(ctx context.Context, pred func(context.Context) (bool, error), timeout time.Duration) (bool, error)
}

// HitTester is implemented by providers able to report the topmost element
// at a viewport point.
type HitTester interface {
	ElementAt(ctx context.Context, x, y float64) (NodeID, error)
}

// Screenshotter is implemented by providers able to capture PNG images.
// Capturing WindowNode captures the viewport.
type Screenshotter interface {
	Screenshot(ctx context.Context, id NodeID) ([]byte, error)
}

// Emulator is implemented by providers able to emulate a device: its
// viewport, scale, orientation and touch support.
type Emulator interface {
	SetViewport(ctx context.Context, d device.Info) error
}

// ProviderFactory creates an isolated provider. The returned func releases
// it.
type ProviderFactory func(ctx context.Context) (Provider, func(), error)
