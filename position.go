package chainrun

import "fmt"

// Position is a named point of an element's bounding box.
type Position string

// Position values.
//
// For a box of width w and height h the offsets from its top-left corner
// are:
//
//	topLeft    (0, 0)      top    (w/2, 0)      topRight    (w-1, 0)
//	left       (0, h/2)    center (w/2, h/2)    right       (w-1, h/2)
//	bottomLeft (0, h-1)    bottom (w/2, h-1)    bottomRight (w-1, h-1)
//
// The far edges are inset by one pixel so the point stays inside the box.
const (
	TopLeft     Position = "topLeft"
	Top         Position = "top"
	TopRight    Position = "topRight"
	Left        Position = "left"
	Center      Position = "center"
	Right       Position = "right"
	BottomLeft  Position = "bottomLeft"
	Bottom      Position = "bottom"
	BottomRight Position = "bottomRight"
)

// fractions holds, per position, where the point lies along each axis: 0
// for the near edge, 0.5 for the middle and 1 for the far edge.
var fractions = map[Position][2]float64{
	TopLeft:     {0, 0},
	Top:         {0.5, 0},
	TopRight:    {1, 0},
	Left:        {0, 0.5},
	Center:      {0.5, 0.5},
	Right:       {1, 0.5},
	BottomLeft:  {0, 1},
	Bottom:      {0.5, 1},
	BottomRight: {1, 1},
}

// Valid reports whether p is one of the nine positions.
func (p Position) Valid() bool {
	_, ok := fractions[p]
	return ok
}

// Offset returns the point for p in a w by h box, relative to its
// top-left corner. The empty position is Center.
func (p Position) Offset(w, h float64) (float64, float64, error) {
	if p == "" {
		p = Center
	}
	f, ok := fractions[p]
	if !ok {
		return 0, 0, fmt.Errorf("invalid position %q", string(p))
	}
	return axisOffset(f[0], w), axisOffset(f[1], h), nil
}

func axisOffset(f, size float64) float64 {
	switch f {
	case 0:
		return 0
	case 1:
		if size < 1 {
			return 0
		}
		return size - 1
	}
	return size * f
}

// Point returns the viewport point for p within r.
func (p Position) Point(r Rect) (float64, float64, error) {
	x, y, err := p.Offset(r.Width, r.Height)
	if err != nil {
		return 0, 0, err
	}
	return r.X + x, r.Y + y, nil
}

// fraction returns the axis fractions of p, used by ScrollTo.
func (p Position) fraction() (float64, float64, error) {
	if p == "" {
		p = TopLeft
	}
	f, ok := fractions[p]
	if !ok {
		return 0, 0, fmt.Errorf("invalid position %q", string(p))
	}
	return f[0], f[1], nil
}
