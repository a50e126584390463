package chainrun

import (
	"context"
	"fmt"
	"time"
)

// isVisible reports whether id is rendered and its box intersects the
// viewport.
func isVisible(ctx context.Context, p Provider, id NodeID) (bool, error) {
	if id == WindowNode || id == DocumentNode {
		return true, nil
	}
	rendered, err := readBool(ctx, p, id, PropRendered)
	if err != nil || !rendered {
		return false, err
	}
	box, err := p.BoundingBox(ctx, id)
	if err != nil || box.Empty() {
		return false, err
	}
	viewport, err := p.BoundingBox(ctx, WindowNode)
	if err != nil {
		return false, err
	}
	return box.Intersects(viewport), nil
}

// actionability lists the preconditions a command checks.
type actionability struct {
	visible  bool
	enabled  bool
	pointer  bool
	position Position
	x, y     float64
	useXY    bool
}

var (
	pointerChecks = actionability{visible: true, enabled: true, pointer: true}
	inputChecks   = actionability{visible: true, enabled: true}
	attachedOnly  = actionability{}
)

// point returns where a pointer action on box lands.
func (a actionability) point(box Rect) (float64, float64, error) {
	if a.useXY {
		return box.X + a.x, box.Y + a.y, nil
	}
	return a.position.Point(box)
}

// checkNode runs the preconditions on id once, scrolling it into view
// first when it is not visible.
func (cy *Cy) checkNode(ctx context.Context, id NodeID, a actionability) (Precondition, error) {
	p := cy.s.provider
	connected, err := p.ReadProperty(ctx, id, PropIsConnected)
	if err != nil {
		return PreconditionDetached, err
	}
	if b, _ := connected.(bool); !b {
		return PreconditionDetached, ErrDetached
	}
	if a.visible {
		visible, err := isVisible(ctx, p, id)
		if err != nil {
			return PreconditionVisibility, err
		}
		if !visible {
			if err := p.DispatchEvent(ctx, id, Event{Type: ScrollIntoViewEvent}); err != nil {
				return PreconditionVisibility, err
			}
			if visible, err = isVisible(ctx, p, id); err != nil {
				return PreconditionVisibility, err
			}
			if !visible {
				return PreconditionVisibility, ErrNotVisible
			}
		}
	}
	if a.enabled {
		disabled, err := readBool(ctx, p, id, PropDisabled)
		if err != nil {
			return PreconditionDisabled, err
		}
		if disabled {
			return PreconditionDisabled, ErrDisabled
		}
	}
	if a.pointer {
		ht, ok := p.(HitTester)
		if !ok {
			return "", nil
		}
		box, err := p.BoundingBox(ctx, id)
		if err != nil {
			return PreconditionOccluded, err
		}
		x, y, err := a.point(box)
		if err != nil {
			return PreconditionOccluded, Permanent(err)
		}
		hit, err := ht.ElementAt(ctx, x, y)
		if err != nil {
			return PreconditionOccluded, err
		}
		if hit != id && hit != NoNode {
			inside, err := cy.isAncestor(ctx, id, hit)
			if err != nil {
				return PreconditionOccluded, err
			}
			if !inside {
				return PreconditionOccluded, fmt.Errorf("%w by node %d at (%g, %g)", ErrOccluded, hit, x, y)
			}
		}
	}
	return "", nil
}

// actionable retries the preconditions on every node until they all pass
// or the command timeout elapses.
func (cy *Cy) actionable(command, locator string, nodes []NodeID, a actionability, timeout time.Duration) error {
	var failed Precondition
	elapsed, err := cy.s.poller.WithTimeout(timeout).Poll(cy.ctx, func(ctx context.Context) error {
		for _, id := range nodes {
			pre, err := cy.checkNode(ctx, id, a)
			if err != nil {
				failed = pre
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &ActionPreconditionError{
			Command:      command,
			Precondition: failed,
			Locator:      locator,
			Count:        len(nodes),
			Elapsed:      elapsed,
			Err:          err,
		}
	}
	return nil
}
