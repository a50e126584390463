package chainrun

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Easing is a scroll animation curve.
type Easing string

// Easing values.
const (
	Swing  Easing = "swing"
	Linear Easing = "linear"
)

// at returns the eased progress for p in [0, 1].
func (e Easing) at(p float64) (float64, error) {
	switch e {
	case "", Swing:
		return 0.5 - math.Cos(p*math.Pi)/2, nil
	case Linear:
		return p, nil
	}
	return 0, fmt.Errorf("invalid easing %q", string(e))
}

// scrollFrame is the interval between animated scroll steps.
const scrollFrame = 16 * time.Millisecond

// ScrollOptions are the options of ScrollTo and ScrollIntoView.
type ScrollOptions struct {
	// Easing defaults to Swing.
	Easing Easing
	// Duration of the animation. Zero scrolls at once.
	Duration time.Duration
	Timeout  time.Duration
}

// ScrollTarget is where ScrollTo scrolls: a named position, or X and Y
// given as pixels ("250", "250px") or percentages ("75%") of the
// scrollable range.
type ScrollTarget struct {
	Position Position
	X, Y     string
}

// scrollOffset resolves one axis of a coordinate target.
func scrollOffset(s string, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid scroll offset %q", s)
		}
		return limit * pct / 100, nil
	}
	px, err := strconv.ParseFloat(strings.TrimSuffix(s, "px"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid scroll offset %q", s)
	}
	return px, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// resolve returns the scroll offsets for t given the scrollable ranges.
func (t ScrollTarget) resolve(maxX, maxY float64) (float64, float64, error) {
	var x, y float64
	if t.Position != "" || (t.X == "" && t.Y == "") {
		fx, fy, err := t.Position.fraction()
		if err != nil {
			return 0, 0, err
		}
		x, y = fx*maxX, fy*maxY
	} else {
		var err error
		if x, err = scrollOffset(t.X, maxX); err != nil {
			return 0, 0, err
		}
		if y, err = scrollOffset(t.Y, maxY); err != nil {
			return 0, 0, err
		}
	}
	return clamp(x, 0, maxX), clamp(y, 0, maxY), nil
}

// scrollNode scrolls id, an element or WindowNode, to t.
func (cy *Cy) scrollNode(ctx context.Context, id NodeID, t ScrollTarget, opts ScrollOptions) error {
	p := cy.s.provider
	var dims [6]float64
	for i, name := range []string{PropScrollLeft, PropScrollTop, PropScrollWidth, PropScrollHeight, PropClientWidth, PropClientHeight} {
		v, err := readFloat(ctx, p, id, name)
		if err != nil {
			return err
		}
		dims[i] = v
	}
	startX, startY := dims[0], dims[1]
	maxX, maxY := math.Max(dims[2]-dims[4], 0), math.Max(dims[3]-dims[5], 0)
	x, y, err := t.resolve(maxX, maxY)
	if err != nil {
		return err
	}
	if _, err := opts.Easing.at(0); err != nil {
		return err
	}
	return cy.animateScroll(ctx, id, startX, startY, x, y, opts)
}

// animateScroll moves the scroll position of id from (fromX, fromY) to
// (x, y) over opts.Duration.
func (cy *Cy) animateScroll(ctx context.Context, id NodeID, fromX, fromY, x, y float64, opts ScrollOptions) error {
	p := cy.s.provider
	set := func(x, y float64) error {
		if err := p.SetProperty(ctx, id, PropScrollLeft, x); err != nil {
			return err
		}
		return p.SetProperty(ctx, id, PropScrollTop, y)
	}
	for elapsed := scrollFrame; elapsed < opts.Duration; elapsed += scrollFrame {
		e, _ := opts.Easing.at(float64(elapsed) / float64(opts.Duration))
		if err := set(fromX+(x-fromX)*e, fromY+(y-fromY)*e); err != nil {
			return err
		}
		if err := sleep(ctx, scrollFrame); err != nil {
			return err
		}
	}
	return set(x, y)
}

// ScrollIntoView scrolls the subject element into view.
func (c Chain) ScrollIntoView() Chain {
	return c.ScrollIntoViewWith(ScrollOptions{})
}

// ScrollIntoViewWith is ScrollIntoView with options. With a Duration the
// window scroll is animated; nested scroll containers move at once.
func (c Chain) ScrollIntoViewWith(opts ScrollOptions) Chain {
	return c.act("scrollIntoView", "a single element", single, nil, attachedOnly, false, opts.Timeout, func(ctx context.Context, nodes []NodeID) error {
		if _, err := opts.Easing.at(0); err != nil {
			return err
		}
		if opts.Duration <= 0 {
			return c.cy.dispatch(ctx, nodes[0], Event{Type: ScrollIntoViewEvent})
		}
		p := c.cy.s.provider
		pos := func() (float64, float64, error) {
			x, err := readFloat(ctx, p, WindowNode, PropScrollLeft)
			if err != nil {
				return 0, 0, err
			}
			y, err := readFloat(ctx, p, WindowNode, PropScrollTop)
			return x, y, err
		}
		fromX, fromY, err := pos()
		if err != nil {
			return err
		}
		if err := c.cy.dispatch(ctx, nodes[0], Event{Type: ScrollIntoViewEvent}); err != nil {
			return err
		}
		x, y, err := pos()
		if err != nil {
			return err
		}
		return c.cy.animateScroll(ctx, WindowNode, fromX, fromY, x, y, opts)
	})
}

// ScrollTo scrolls the subject element to a named position.
func (c Chain) ScrollTo(pos Position) Chain {
	return c.ScrollToWith(ScrollTarget{Position: pos}, ScrollOptions{})
}

// ScrollToXY scrolls the subject element to x, y, each in pixels or as a
// percentage.
func (c Chain) ScrollToXY(x, y string) Chain {
	return c.ScrollToWith(ScrollTarget{X: x, Y: y}, ScrollOptions{})
}

// ScrollToWith scrolls the subject element to t with options.
func (c Chain) ScrollToWith(t ScrollTarget, opts ScrollOptions) Chain {
	return c.act("scrollTo", "a single element", single, nil, attachedOnly, false, opts.Timeout, func(ctx context.Context, nodes []NodeID) error {
		return c.cy.scrollNode(ctx, nodes[0], t, opts)
	})
}
