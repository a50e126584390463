// Package devtools is a browser capability provider driving Chrome over
// the DevTools protocol.
package devtools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/device"
)

// Browser is one tab. Node ids are backend node ids, which stay valid for
// the lifetime of the node.
type Browser struct {
	tab    context.Context
	cancel context.CancelFunc
	log    logrus.FieldLogger
}

// newBrowser starts the tab of the chromedp context tab.
func newBrowser(tab context.Context, cancel context.CancelFunc, log logrus.FieldLogger) (*Browser, error) {
	if err := chromedp.Run(tab); err != nil {
		cancel()
		return nil, err
	}
	return &Browser{tab: tab, cancel: cancel, log: log}, nil
}

// Close closes the tab.
func (b *Browser) Close() {
	b.cancel()
}

// run runs fn on the tab. It stops when ctx is done.
func (b *Browser) run(ctx context.Context, fn func(ctx context.Context) error) error {
	tctx, cancel := context.WithCancel(b.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(tctx, chromedp.ActionFunc(fn))
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, context.Canceled) {
		return ctxErr
	}
	return err
}

// object resolves id to a remote object.
func object(ctx context.Context, id chainrun.NodeID) (runtime.RemoteObjectID, error) {
	var expr string
	switch id {
	case chainrun.WindowNode:
		expr = "window"
	case chainrun.DocumentNode:
		expr = "document"
	default:
		obj, err := dom.ResolveNode().
			WithBackendNodeID(cdp.BackendNodeID(id)).
			WithObjectGroup(objectGroup).
			Do(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: node %d: %v", chainrun.ErrDetached, id, err)
		}
		return obj.ObjectID, nil
	}
	obj, exp, err := runtime.Evaluate(expr).WithObjectGroup(objectGroup).Do(ctx)
	if err != nil {
		return "", err
	}
	if exp != nil {
		return "", exp
	}
	return obj.ObjectID, nil
}

// nodeOf returns the node id of a remote element.
func nodeOf(ctx context.Context, obj runtime.RemoteObjectID) (chainrun.NodeID, error) {
	n, err := dom.DescribeNode().WithObjectID(obj).Do(ctx)
	if err != nil {
		return chainrun.NoNode, err
	}
	if n.NodeType == cdp.NodeTypeDocument {
		return chainrun.DocumentNode, nil
	}
	return chainrun.NodeID(n.BackendNodeID), nil
}

// Navigate satisfies chainrun.Provider.
func (b *Browser) Navigate(ctx context.Context, u string) error {
	b.log.WithField("url", u).Debug("navigate")
	return b.run(ctx, func(ctx context.Context) error {
		_ = runtime.ReleaseObjectGroup(objectGroup).Do(ctx)
		_, _, errText, err := page.Navigate(u).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigating to %s: %s", u, errText)
		}
		return nil
	})
}

// QueryAll satisfies chainrun.Provider.
func (b *Browser) QueryAll(ctx context.Context, from chainrun.NodeID, q chainrun.Query) ([]chainrun.NodeID, error) {
	var ids []chainrun.NodeID
	err := b.run(ctx, func(ctx context.Context) error {
		obj, err := object(ctx, from)
		if err != nil {
			return err
		}
		var arr *runtime.RemoteObject
		if err := callOn(ctx, obj, queryJS, &arr, q.Relation.String(), q.Selector); err != nil {
			if strings.Contains(err.Error(), "not a valid selector") {
				return fmt.Errorf("%w: %q: %v", chainrun.ErrInvalidSelector, q.Selector, err)
			}
			return err
		}
		var n int
		if err := callOn(ctx, arr.ObjectID, lengthJS, &n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			var el *runtime.RemoteObject
			if err := callOn(ctx, arr.ObjectID, indexJS, &el, i); err != nil {
				return err
			}
			id, err := nodeOf(ctx, el.ObjectID)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

// ReadProperty satisfies chainrun.Provider.
func (b *Browser) ReadProperty(ctx context.Context, id chainrun.NodeID, name string) (interface{}, error) {
	var v interface{}
	err := b.run(ctx, func(ctx context.Context) error {
		obj, err := object(ctx, id)
		if err != nil {
			return err
		}
		return callOn(ctx, obj, propertyJS, &v, name)
	})
	switch {
	case errors.Is(err, chainrun.ErrDetached) && name == chainrun.PropIsConnected:
		return false, nil
	case err != nil:
		return nil, err
	}
	if m, ok := v.(map[string]interface{}); ok && m["__missing"] == true {
		return nil, fmt.Errorf("%w: %s", chainrun.ErrNoProperty, name)
	}
	return v, nil
}

// SetProperty satisfies chainrun.Provider.
func (b *Browser) SetProperty(ctx context.Context, id chainrun.NodeID, name string, v interface{}) error {
	return b.run(ctx, func(ctx context.Context) error {
		obj, err := object(ctx, id)
		if err != nil {
			return err
		}
		return callOn(ctx, obj, setPropertyJS, nil, name, v)
	})
}

// Attribute satisfies chainrun.Provider.
func (b *Browser) Attribute(ctx context.Context, id chainrun.NodeID, name string) (string, bool, error) {
	var res []interface{}
	err := b.run(ctx, func(ctx context.Context) error {
		obj, err := object(ctx, id)
		if err != nil {
			return err
		}
		return callOn(ctx, obj, attributeJS, &res, name)
	})
	if err != nil || len(res) != 2 {
		return "", false, err
	}
	ok, _ := res[0].(bool)
	v, _ := res[1].(string)
	return v, ok, nil
}

// BoundingBox satisfies chainrun.Provider.
func (b *Browser) BoundingBox(ctx context.Context, id chainrun.NodeID) (chainrun.Rect, error) {
	var r [4]float64
	err := b.run(ctx, func(ctx context.Context) error {
		obj, err := object(ctx, id)
		if err != nil {
			return err
		}
		return callOn(ctx, obj, boxJS, &r)
	})
	return chainrun.Rect{X: r[0], Y: r[1], Width: r[2], Height: r[3]}, err
}

var mouseTypes = map[chainrun.EventType]input.MouseType{
	chainrun.MouseMoved:    input.MouseMoved,
	chainrun.MousePressed:  input.MousePressed,
	chainrun.MouseReleased: input.MouseReleased,
}

var keyTypes = map[chainrun.EventType]input.KeyType{
	chainrun.KeyDown: input.KeyDown,
	chainrun.KeyChar: input.KeyChar,
	chainrun.KeyUp:   input.KeyUp,
}

// DispatchEvent satisfies chainrun.Provider. Mouse and key events are
// trusted input events; the others are synthetic DOM events.
func (b *Browser) DispatchEvent(ctx context.Context, id chainrun.NodeID, ev chainrun.Event) error {
	return b.run(ctx, func(ctx context.Context) error {
		if typ, ok := mouseTypes[ev.Type]; ok {
			p := input.DispatchMouseEvent(typ, ev.X, ev.Y).
				WithModifiers(input.Modifier(ev.Modifiers))
			if ev.Button != "" {
				p = p.WithButton(input.MouseButton(ev.Button))
			}
			if ev.ClickCount > 0 {
				p = p.WithClickCount(int64(ev.ClickCount))
			}
			return p.Do(ctx)
		}
		if typ, ok := keyTypes[ev.Type]; ok {
			k := ev.Key
			if k == nil {
				return errors.New("key event without a key")
			}
			p := &input.DispatchKeyEventParams{
				Type:                  typ,
				Key:                   k.Key,
				Code:                  k.Code,
				NativeVirtualKeyCode:  k.Native,
				WindowsVirtualKeyCode: k.Windows,
				Modifiers:             input.Modifier(ev.Modifiers),
				Commands:              ev.Commands,
			}
			if typ == input.KeyChar {
				p.Text, p.UnmodifiedText = ev.Text, k.Unmodified
			}
			return p.Do(ctx)
		}
		switch ev.Type {
		case chainrun.FocusEvent:
			return dom.Focus().WithBackendNodeID(cdp.BackendNodeID(id)).Do(ctx)
		case chainrun.ScrollIntoViewEvent:
			return dom.ScrollIntoViewIfNeeded().WithBackendNodeID(cdp.BackendNodeID(id)).Do(ctx)
		}
		obj, err := object(ctx, id)
		if err != nil {
			return err
		}
		name := ev.Name
		if ev.Type != chainrun.CustomEvent {
			name = ev.Type.String()
		}
		return callOn(ctx, obj, dispatchJS, nil, ev.Type.String(), name, ev.X, ev.Y)
	})
}

// ElementAt satisfies chainrun.HitTester.
func (b *Browser) ElementAt(ctx context.Context, x, y float64) (chainrun.NodeID, error) {
	id := chainrun.NoNode
	err := b.run(ctx, func(ctx context.Context) error {
		doc, err := object(ctx, chainrun.DocumentNode)
		if err != nil {
			return err
		}
		var el *runtime.RemoteObject
		if err := callOn(ctx, doc, elementAtJS, &el, x, y); err != nil {
			return err
		}
		if el == nil || el.ObjectID == "" {
			return nil
		}
		id, err = nodeOf(ctx, el.ObjectID)
		return err
	})
	return id, err
}

// Wait satisfies chainrun.Provider.
func (b *Browser) Wait(ctx context.Context, pred func(context.Context) (bool, error), timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	tick := time.NewTicker(waitInterval)
	defer tick.Stop()
	for {
		ok, err := pred(ctx)
		if err != nil || ok {
			return ok, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-tick.C:
		}
	}
}

const waitInterval = 20 * time.Millisecond

// Screenshot satisfies chainrun.Screenshotter.
func (b *Browser) Screenshot(ctx context.Context, id chainrun.NodeID) ([]byte, error) {
	var clip *page.Viewport
	if id != chainrun.WindowNode && id != chainrun.DocumentNode {
		box, err := b.BoundingBox(ctx, id)
		if err != nil {
			return nil, err
		}
		var scroll [2]float64
		if err := b.run(ctx, func(ctx context.Context) error {
			win, err := object(ctx, chainrun.WindowNode)
			if err != nil {
				return err
			}
			return callOn(ctx, win, `function() { return [window.scrollX, window.scrollY]; }`, &scroll)
		}); err != nil {
			return nil, err
		}
		clip = &page.Viewport{X: box.X + scroll[0], Y: box.Y + scroll[1], Width: box.Width, Height: box.Height, Scale: 1}
	}
	var buf []byte
	err := b.run(ctx, func(ctx context.Context) error {
		p := page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng)
		if clip != nil {
			p = p.WithClip(clip).WithCaptureBeyondViewport(true)
		}
		var err error
		buf, err = p.Do(ctx)
		return err
	})
	return buf, err
}

// SetViewport satisfies chainrun.Emulator.
func (b *Browser) SetViewport(ctx context.Context, d device.Info) error {
	orientation, angle := emulation.OrientationTypePortraitPrimary, int64(0)
	if d.Landscape {
		orientation, angle = emulation.OrientationTypeLandscapePrimary, 90
	}
	return b.run(ctx, func(ctx context.Context) error {
		err := emulation.SetDeviceMetricsOverride(d.Width, d.Height, d.Scale, d.Mobile).
			WithScreenOrientation(&emulation.ScreenOrientation{
				Type:  orientation,
				Angle: angle,
			}).
			Do(ctx)
		if err != nil {
			return err
		}
		return emulation.SetTouchEmulationEnabled(d.Touch).Do(ctx)
	})
}
