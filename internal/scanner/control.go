package scanner

import (
	"context"
	"errors"
	"sync"
)

// State is the phase a scan is in
type State string

const (
	StateIdle        State = "Idle"
	StateEnumerating State = "Enumerating"
	StateEnriching   State = "Enriching"
	StateFinalizing  State = "Finalizing"
)

// errStopped is returned inside a scan once Stop has been requested
var errStopped = errors.New("scan stopped by user")

// control is the cooperative pause/stop switch shared by the walker and the
// enrichment workers. A paused scan blocks in wait without consuming work.
type control struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	resume  chan struct{}
	stop    chan struct{}
}

func newControl() *control {
	c := &control{}
	c.reset()
	return c
}

func (c *control) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.paused = false
	c.stopped = false
	c.resume = make(chan struct{})
	close(c.resume)
	c.stop = make(chan struct{})
}

func (c *control) pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused || c.stopped {
		return false
	}
	c.paused = true
	c.resume = make(chan struct{})
	return true
}

func (c *control) unpause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return false
	}
	c.paused = false
	close(c.resume)
	return true
}

func (c *control) requestStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return false
	}
	c.stopped = true
	close(c.stop)
	return true
}

// stopCh returns a channel closed once Stop is requested
func (c *control) stopCh() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop
}

func (c *control) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *control) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// wait blocks while paused. It returns errStopped after Stop and ctx.Err()
// once ctx is done.
func (c *control) wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		stopped, resume, stop := c.stopped, c.resume, c.stop
		c.mu.Unlock()

		if stopped {
			return errStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-resume:
			c.mu.Lock()
			paused := c.paused
			c.mu.Unlock()
			if !paused {
				if c.isStopped() {
					return errStopped
				}
				return nil
			}
		case <-stop:
			return errStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
