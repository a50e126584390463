package devtools

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/device"
)

// Pool manages one Chrome process, local or remote, and the tabs
// allocated on it.
type Pool struct {
	// remote is the DevTools websocket URL of a running Chrome. When empty
	// a local Chrome is started.
	remote string

	// headless starts the local Chrome headless.
	headless bool

	// execPath is the local Chrome binary.
	execPath string

	// width and height are the window size of the local Chrome.
	width, height int

	log logrus.FieldLogger

	allocCancel   context.CancelFunc
	browser       context.Context
	browserCancel context.CancelFunc

	// res are the allocated tabs.
	res  map[int]*Res
	next int

	rw sync.RWMutex
}

// NewPool starts or connects to Chrome.
func NewPool(ctx context.Context, opts ...PoolOption) (*Pool, error) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	p := &Pool{
		headless: true,
		width:    1000,
		height:   660,
		log:      l,
		res:      make(map[int]*Res),
	}

	// apply opts
	for _, o := range opts {
		if err := o(p); err != nil {
			return nil, err
		}
	}

	var alloc context.Context
	if p.remote != "" {
		alloc, p.allocCancel = chromedp.NewRemoteAllocator(ctx, p.remote)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", p.headless),
			chromedp.WindowSize(p.width, p.height),
		)
		if p.execPath != "" {
			execOpts = append(execOpts, chromedp.ExecPath(p.execPath))
		}
		alloc, p.allocCancel = chromedp.NewExecAllocator(ctx, execOpts...)
	}

	p.browser, p.browserCancel = chromedp.NewContext(alloc,
		chromedp.WithLogf(p.log.Infof),
		chromedp.WithErrorf(p.log.Errorf),
		chromedp.WithDebugf(p.log.Debugf),
	)
	if err := chromedp.Run(p.browser); err != nil {
		p.browserCancel()
		p.allocCancel()
		return nil, err
	}
	p.log.WithField("remote", p.remote).Debug("pool started")
	return p, nil
}

// Shutdown releases all the pool resources.
func (p *Pool) Shutdown() error {
	p.rw.Lock()
	for _, r := range p.res {
		r.b.Close()
	}
	p.res = make(map[int]*Res)
	p.rw.Unlock()

	var err error
	if p.browserCancel != nil {
		err = chromedp.Cancel(p.browser)
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// Allocate opens a new tab.
func (p *Pool) Allocate(ctx context.Context) (*Res, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.rw.Lock()
	p.next++
	id := p.next
	p.rw.Unlock()

	log := p.log.WithField("tab", id)
	tab, cancel := chromedp.NewContext(p.browser)
	b, err := newBrowser(tab, cancel, log)
	if err != nil {
		log.WithError(err).Error("pool could not open tab")
		return nil, err
	}
	if err := b.SetViewport(ctx, device.Info{Width: int64(p.width), Height: int64(p.height), Scale: 1}); err != nil {
		b.Close()
		return nil, err
	}

	r := &Res{p: p, id: id, b: b}
	p.rw.Lock()
	p.res[id] = r
	p.rw.Unlock()
	log.Debug("pool allocated tab")
	return r, nil
}

// Factory returns a provider factory allocating a tab per case.
func (p *Pool) Factory() chainrun.ProviderFactory {
	return func(ctx context.Context) (chainrun.Provider, func(), error) {
		r, err := p.Allocate(ctx)
		if err != nil {
			return nil, nil, err
		}
		return r.Browser(), r.Release, nil
	}
}

// Len returns the number of allocated tabs.
func (p *Pool) Len() int {
	p.rw.RLock()
	defer p.rw.RUnlock()
	return len(p.res)
}

// Res is a pool resource.
type Res struct {
	p  *Pool
	id int
	b  *Browser
}

// Release closes the tab.
func (r *Res) Release() {
	r.b.Close()

	r.p.rw.Lock()
	defer r.p.rw.Unlock()
	delete(r.p.res, r.id)
	r.p.log.WithField("tab", r.id).Debug("pool released tab")
}

// Browser returns the provider of the tab.
func (r *Res) Browser() *Browser {
	return r.b
}

// PoolOption is a pool option.
type PoolOption func(*Pool) error

// RemoteURL is a pool option to connect to a running Chrome instead of
// starting one.
func RemoteURL(u string) PoolOption {
	return func(p *Pool) error {
		p.remote = u
		return nil
	}
}

// Headless is a pool option to start the local Chrome headless or not.
func Headless(headless bool) PoolOption {
	return func(p *Pool) error {
		p.headless = headless
		return nil
	}
}

// ExecPath is a pool option to set the local Chrome binary.
func ExecPath(path string) PoolOption {
	return func(p *Pool) error {
		p.execPath = path
		return nil
	}
}

// WindowSize is a pool option to set the viewport of every tab.
func WindowSize(width, height int) PoolOption {
	return func(p *Pool) error {
		if width <= 0 || height <= 0 {
			return errors.New("invalid window size")
		}
		p.width, p.height = width, height
		return nil
	}
}

// PoolLogger is a pool option to set the logger.
func PoolLogger(l logrus.FieldLogger) PoolOption {
	return func(p *Pool) error {
		p.log = l
		return nil
	}
}
