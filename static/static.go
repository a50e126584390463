// Package static is an in-memory browser capability provider over parsed
// HTML.
//
// Pages are plain HTML documents. The provider does no layout: an element's
// box is read from its data-box attribute ("x y width height", in document
// pixels) and otherwise inherited from its parent. An element carrying
// data-scroll-size ("width height") is a scroll container clipping its
// descendants; on the html element it sets the size of the document.
// data-color fills an element's box in screenshots.
//
// Behavior is attached with a Page's Script, which registers listeners and
// timers on the Document.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/device"
)

// ErrPageNotFound is returned by Navigate for unknown URLs.
var ErrPageNotFound = errors.New("page not found")

// BlankPage is the URL of the empty page a Browser starts on.
const BlankPage = "about:blank"

// Page is a page a Browser can navigate to.
type Page struct {
	HTML string
	// Script runs once the page is parsed.
	Script func(d *Document)
	// LoadDelay keeps the document's readyState at "loading" for a while
	// after navigation.
	LoadDelay time.Duration
}

// Browser is a single tab over in-memory pages. It implements
// chainrun.Provider, chainrun.HitTester, chainrun.Screenshotter and
// chainrun.Emulator.
type Browser struct {
	mu     sync.Mutex
	pages  map[string]Page
	width  int64
	height int64
	scale  float64
	touch  bool
	log    logrus.FieldLogger

	doc  *Document
	next chainrun.NodeID
}

// Option is a Browser option.
type Option = func(*Browser)

// WithPage adds a page served at u.
func WithPage(u string, p Page) Option {
	return func(b *Browser) {
		b.pages[pageKey(u)] = p
	}
}

// WithPages adds pages keyed by URL.
func WithPages(pages map[string]Page) Option {
	return func(b *Browser) {
		for u, p := range pages {
			b.pages[pageKey(u)] = p
		}
	}
}

// WithViewport sets the initial viewport size.
func WithViewport(width, height int64) Option {
	return func(b *Browser) {
		b.width, b.height = width, height
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Browser) {
		b.log = l
	}
}

// New creates a browser showing the blank page.
func New(opts ...Option) *Browser {
	l := logrus.New()
	l.SetOutput(io.Discard)
	b := &Browser{
		pages:  map[string]Page{BlankPage: {HTML: "<html><head></head><body></body></html>"}},
		width:  1000,
		height: 660,
		scale:  1,
		log:    l,
	}
	for _, o := range opts {
		o(b)
	}
	if err := b.load(BlankPage, b.pages[BlankPage]); err != nil {
		panic(err)
	}
	return b
}

// Factory returns a provider factory creating a fresh browser for every
// case.
func Factory(opts ...Option) chainrun.ProviderFactory {
	return func(context.Context) (chainrun.Provider, func(), error) {
		b := New(opts...)
		return b, b.Close, nil
	}
}

// Close stops the timers of the current page.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc != nil {
		b.doc.close()
	}
}

// Do runs fn on the current document with the browser locked.
func (b *Browser) Do(fn func(d *Document)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.doc)
}

// pageKey reduces a URL to the key pages are stored under: its path for
// http and file URLs, the URL itself otherwise.
func pageKey(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	switch parsed.Scheme {
	case "http", "https", "file", "":
		p := parsed.Path
		if p == "" {
			p = "/"
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		return p
	}
	return u
}

func (b *Browser) lookup(u string) (Page, bool) {
	key := pageKey(u)
	if p, ok := b.pages[key]; ok {
		return p, true
	}
	if p, ok := b.pages[strings.TrimSuffix(key, "/")+".html"]; ok {
		return p, true
	}
	p, ok := b.pages[strings.TrimSuffix(key, "/")+"/index.html"]
	return p, ok
}

// Navigate satisfies chainrun.Provider.
func (b *Browser) Navigate(ctx context.Context, u string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.lookup(u)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, u)
	}
	b.log.WithField("url", u).Debug("navigate")
	return b.load(u, p)
}

// load replaces the current document. b.mu must be held.
func (b *Browser) load(u string, p Page) error {
	d, err := parse(b, u, p.HTML)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", u, err)
	}
	if b.doc != nil {
		b.doc.close()
	}
	b.doc = d
	if p.LoadDelay > 0 {
		d.ready = false
		d.After(p.LoadDelay, func(d *Document) {
			d.ready = true
		})
	}
	if p.Script != nil {
		p.Script(d)
	}
	return nil
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

const waitInterval = 10 * time.Millisecond

// SetViewport satisfies chainrun.Emulator.
func (b *Browser) SetViewport(ctx context.Context, d device.Info) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height, b.scale, b.touch = d.Width, d.Height, d.Scale, d.Touch
	b.doc.clampScroll()
	return nil
}

// Viewport returns the viewport size.
func (b *Browser) Viewport() (int64, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}
