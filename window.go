package chainrun

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/chromedp/chainrun/device"
)

// resolveURL joins u to the configured base URL unless it is absolute.
func (cy *Cy) resolveURL(u string) (string, error) {
	base := cy.s.cfg.BaseURL.String
	if base == "" {
		return u, nil
	}
	ref, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return u, nil
	}
	b, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	return b.ResolveReference(&url.URL{Path: strings.TrimPrefix(ref.Path, "/"), RawQuery: ref.RawQuery, Fragment: ref.Fragment}).String(), nil
}

// Visit navigates to u, joined to the base URL when relative, and waits
// for the document to finish loading. It yields the window.
func (cy *Cy) Visit(u string) Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	target, err := cy.resolveURL(u)
	if err != nil {
		return cy.fail(&CommandError{Command: "visit", Locator: u, Err: err})
	}
	cy.logCommand("visit", target)
	p := cy.s.provider
	if err := p.Navigate(cy.ctx, target); err != nil {
		return cy.fail(&CommandError{Command: "visit", Locator: target, Err: err})
	}
	ok, err := p.Wait(cy.ctx, func(ctx context.Context) (bool, error) {
		state, err := readString(ctx, p, DocumentNode, PropReadyState)
		return state == "complete", err
	}, cy.s.poller.Timeout)
	if err == nil && !ok {
		err = ErrPollingTimeout
	}
	if err != nil {
		return cy.fail(&CommandError{Command: "visit", Locator: target, Err: fmt.Errorf("waiting for page load: %w", err)})
	}
	return cy.settled(fmt.Sprintf("visit(%q)", u), NodeSubject(WindowNode))
}

// Window yields the window object.
func (cy *Cy) Window() Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	return cy.settled("window()", NodeSubject(WindowNode))
}

// Document yields the document object.
func (cy *Cy) Document() Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	return cy.settled("document()", NodeSubject(DocumentNode))
}

// Title yields the document title.
func (cy *Cy) Title() Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	cy.logCommand("title", "title()")
	return cy.chain("title()", 0, func(ctx context.Context) (Subject, error) {
		title, err := readString(ctx, cy.s.provider, DocumentNode, PropTitle)
		if err != nil {
			return Subject{}, err
		}
		return ValueSubject(title), nil
	})
}

// Viewport resizes the viewport. The provider must be an Emulator.
func (cy *Cy) Viewport(width, height int64) Chain {
	return cy.viewport(device.Info{Name: fmt.Sprintf("%dx%d", width, height), Width: width, Height: height, Scale: 1})
}

// ViewportPreset resizes the viewport to a named device preset. An
// orientation of "landscape" swaps its dimensions.
func (cy *Cy) ViewportPreset(name, orientation string) Chain {
	if cy.failed() {
		return Chain{cy: cy}
	}
	info, err := device.Lookup(name, orientation)
	if err != nil {
		return cy.fail(&CommandError{Command: "viewport", Err: err})
	}
	return cy.viewport(info)
}

func (cy *Cy) viewport(info device.Info) Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	cy.logCommand("viewport", info.String())
	em, ok := cy.s.provider.(Emulator)
	if !ok {
		return cy.fail(&CommandError{Command: "viewport", Locator: info.String(), Err: ErrUnsupported})
	}
	if info.Width <= 0 || info.Height <= 0 {
		return cy.fail(&CommandError{Command: "viewport", Locator: info.String(), Err: fmt.Errorf("invalid viewport %dx%d", info.Width, info.Height)})
	}
	if err := em.SetViewport(cy.ctx, info); err != nil {
		return cy.fail(&CommandError{Command: "viewport", Locator: info.String(), Err: err})
	}
	return cy.settled(fmt.Sprintf("viewport(%s)", info), ValueSubject(nil))
}

// ScrollTo scrolls the window to a named position.
func (cy *Cy) ScrollTo(pos Position) Chain {
	return cy.ScrollToWith(ScrollTarget{Position: pos}, ScrollOptions{})
}

// ScrollToXY scrolls the window to x, y, each in pixels or as a
// percentage.
func (cy *Cy) ScrollToXY(x, y string) Chain {
	return cy.ScrollToWith(ScrollTarget{X: x, Y: y}, ScrollOptions{})
}

// ScrollToWith scrolls the window to t with options.
func (cy *Cy) ScrollToWith(t ScrollTarget, opts ScrollOptions) Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	cy.logCommand("scrollTo", "window()")
	if err := cy.scrollNode(cy.ctx, WindowNode, t, opts); err != nil {
		return cy.fail(&CommandError{Command: "scrollTo", Locator: "window()", Err: err})
	}
	return cy.settled("window()", NodeSubject(WindowNode))
}
