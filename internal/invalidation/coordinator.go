package invalidation

import (
	"context"
	"time"

	"github.com/bassista/go_gallery/internal/logger"
)

// Invalidator is one transport that evicts or broadcasts tags.
type Invalidator interface {
	Name() string
	Invalidate(ctx context.Context, tags Set) error
	InvalidateAll(ctx context.Context) error
}

// Coordinator plans the tags of a committed change and fans them out to every
// transport. Transport failures are logged and never reach the caller: the write
// already succeeded and stale entries age out of the bounded cache.
type Coordinator struct {
	planner    Planner
	transports []Invalidator
	timeout    time.Duration
}

// NewCoordinator creates a coordinator delivering to transports in order.
func NewCoordinator(planner Planner, transports ...Invalidator) *Coordinator {
	return &Coordinator{planner: planner, transports: transports, timeout: 5 * time.Second}
}

func (c *Coordinator) Planner() Planner {
	return c.planner
}

// Apply invalidates everything change affects and returns the planned tags.
// It must only be called after the write committed.
func (c *Coordinator) Apply(ctx context.Context, change Change) Set {
	tags := c.planner.Plan(change)
	if len(tags) == 0 {
		return tags
	}
	logger.WithComponent("invalidation").Debugf("%s %s: invalidating %s", change.Op, change.PhotoID, tags)
	c.Invalidate(ctx, tags)
	return tags
}

// Invalidate delivers tags to every transport.
func (c *Coordinator) Invalidate(ctx context.Context, tags Set) {
	ctx, cancel := c.detach(ctx)
	defer cancel()
	for _, t := range c.transports {
		if err := t.Invalidate(ctx, tags); err != nil {
			logger.WithComponent("invalidation").Warnf("transport %s failed to invalidate %s: %v", t.Name(), tags, err)
		}
	}
}

// InvalidateAll drops every cached entry on every transport.
func (c *Coordinator) InvalidateAll(ctx context.Context) {
	ctx, cancel := c.detach(ctx)
	defer cancel()
	for _, t := range c.transports {
		if err := t.InvalidateAll(ctx); err != nil {
			logger.WithComponent("invalidation").Warnf("transport %s failed to invalidate all: %v", t.Name(), err)
		}
	}
}

// detach keeps request values but not the request deadline; a client that hangs up
// right after its write must not leave stale entries behind.
func (c *Coordinator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
}
