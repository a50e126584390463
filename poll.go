package chainrun

import (
	"context"
	"time"
)

// Poller is a bounded retry loop.
//
// Poll calls its function until it returns nil, returns a permanent error,
// or Timeout elapses. The wait between attempts starts at Interval and is
// multiplied by Backoff after each attempt, capped at MaxInterval. A Backoff
// of 1 polls at a fixed interval.
type Poller struct {
	Interval    time.Duration
	Backoff     float64
	MaxInterval time.Duration
	Timeout     time.Duration
}

// DefaultPoller polls every 50ms for up to 4s.
var DefaultPoller = Poller{
	Interval:    50 * time.Millisecond,
	Backoff:     1,
	MaxInterval: time.Second,
	Timeout:     4 * time.Second,
}

// WithTimeout returns a copy of p with its timeout replaced when d is
// positive.
func (p Poller) WithTimeout(d time.Duration) Poller {
	if d > 0 {
		p.Timeout = d
	}
	return p
}

// Poll runs fn until it succeeds or the poller gives up, and returns the
// elapsed time with the last error. fn always runs at least once.
func (p Poller) Poll(ctx context.Context, fn func(context.Context) error) (time.Duration, error) {
	start := time.Now()
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPoller.Interval
	}
	deadline := start.Add(p.Timeout)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		err := fn(ctx)
		if err == nil {
			return time.Since(start), nil
		}
		if isPermanent(err) {
			if perr, ok := err.(permanentError); ok {
				err = perr.err
			}
			return time.Since(start), err
		}
		if ctx.Err() != nil {
			return time.Since(start), ctx.Err()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return time.Since(start), err
		}

		wait := interval
		if wait > remaining {
			wait = remaining
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-timer.C:
		}

		if p.Backoff > 1 {
			interval = time.Duration(float64(interval) * p.Backoff)
			if p.MaxInterval > 0 && interval > p.MaxInterval {
				interval = p.MaxInterval
			}
		}
	}
}
