package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/wirecore/stream"
)

// CheckpointCoordinator injects barriers into the source actors of a graph.
// Every barrier it sends gets a strictly greater epoch than the previous one.
type CheckpointCoordinator struct {
	interval  time.Duration
	maxEpochs int
	outputs   []chan<- *stream.Barrier
	logger    zerolog.Logger

	mu       sync.Mutex
	epoch    stream.Epoch
	injected int
	stopped  bool
}

// NewCheckpointCoordinator creates a new CheckpointCoordinator.
func NewCheckpointCoordinator(interval time.Duration, logger zerolog.Logger, outputs ...chan<- *stream.Barrier) *CheckpointCoordinator {
	return &CheckpointCoordinator{
		interval: interval,
		outputs:  outputs,
		logger:   logger,
	}
}

// WithMaxEpochs makes Start send a Stop barrier once n plain barriers went
// out. Zero means no limit.
func (c *CheckpointCoordinator) WithMaxEpochs(n int) *CheckpointCoordinator {
	c.maxEpochs = n
	return c
}

// WithStartEpoch makes the first injected barrier carry epoch e+1. Used to
// continue after the epoch a restored checkpoint was taken at.
func (c *CheckpointCoordinator) WithStartEpoch(e stream.Epoch) *CheckpointCoordinator {
	if e > c.epoch {
		c.epoch = e
	}
	return c
}

// Epoch returns the epoch of the last injected barrier, NoEpoch before the first.
func (c *CheckpointCoordinator) Epoch() stream.Epoch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.injected == 0 {
		return stream.NoEpoch
	}
	return c.epoch
}

// Inject sends one barrier carrying m, which may be nil, to every output.
func (c *CheckpointCoordinator) Inject(ctx context.Context, m stream.Mutation) (*stream.Barrier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil, ErrCoordinatorStopped
	}
	c.epoch++
	b := stream.NewBarrierWithMutation(c.epoch, m)
	for i, out := range c.outputs {
		select {
		case out <- b:
		case <-ctx.Done():
			return nil, fmt.Errorf("inject %s into output %d: %w", b, i, ctx.Err())
		}
	}
	c.injected++
	if b.IsStop() {
		c.stopped = true
	}
	c.logger.Debug().Stringer("barrier", b).Int("outputs", len(c.outputs)).Msg("barrier injected")
	return b, nil
}

// Stop injects a Stop barrier. Later injections fail with ErrCoordinatorStopped.
func (c *CheckpointCoordinator) Stop(ctx context.Context) error {
	_, err := c.Inject(ctx, stream.Stop{})
	return err
}

// Start injects a barrier on every tick until ctx is done, Stop is called or
// the epoch limit is reached.
func (c *CheckpointCoordinator) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger a new checkpoint.
			var m stream.Mutation
			if c.maxEpochs > 0 && c.plainInjected() >= c.maxEpochs {
				m = stream.Stop{}
			}
			b, err := c.Inject(ctx, m)
			if errors.Is(err, ErrCoordinatorStopped) {
				return nil
			}
			if err != nil {
				return err
			}
			if b.IsStop() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *CheckpointCoordinator) plainInjected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.injected
}
