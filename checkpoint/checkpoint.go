package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tarungka/wirecore/state"
	"github.com/tarungka/wirecore/stream"
)

// Checkpoint represents the state of a set of operators at the end of an epoch.
type Checkpoint struct {
	ID        uuid.UUID
	Epoch     stream.Epoch
	Timestamp time.Time
	// OperatorIDs lists the operators whose state was saved.
	OperatorIDs []string
}

// CheckpointManager is responsible for creating and restoring checkpoints.
// It is shared by every actor of a process, so it is safe for concurrent use.
type CheckpointManager struct {
	backend state.StateBackend
	logger  zerolog.Logger

	mu          sync.RWMutex
	checkpoints map[stream.Epoch][]*Checkpoint
}

// NewCheckpointManager creates a new CheckpointManager.
func NewCheckpointManager(backend state.StateBackend, logger zerolog.Logger) *CheckpointManager {
	return &CheckpointManager{
		backend:     backend,
		logger:      logger,
		checkpoints: make(map[stream.Epoch][]*Checkpoint),
	}
}

// CreateCheckpoint snapshots every operator for epoch.
func (c *CheckpointManager) CreateCheckpoint(epoch stream.Epoch, operators []stream.Operator) (*Checkpoint, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("checkpoint id: %w", err)
	}
	cp := &Checkpoint{
		ID:        id,
		Epoch:     epoch,
		Timestamp: time.Now(),
	}

	for _, operator := range operators {
		snapshot := operator.Snapshot(epoch)
		if err := c.backend.Save(operator.ID(), epoch, snapshot); err != nil {
			return nil, fmt.Errorf("save operator %s: %w", operator.ID(), err)
		}
		cp.OperatorIDs = append(cp.OperatorIDs, operator.ID())
	}

	c.mu.Lock()
	c.checkpoints[epoch] = append(c.checkpoints[epoch], cp)
	c.mu.Unlock()

	c.logger.Debug().
		Str("checkpoint_id", cp.ID.String()).
		Int64("epoch", int64(epoch)).
		Strs("operators", cp.OperatorIDs).
		Msg("checkpoint created")
	return cp, nil
}

// Checkpoint implements stream.Checkpointer.
func (c *CheckpointManager) Checkpoint(ctx context.Context, epoch stream.Epoch, operators []stream.Operator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.CreateCheckpoint(epoch, operators)
	return err
}

// RestoreCheckpoint restores every operator to its state at epoch. Every
// snapshot is loaded before any operator is touched, so on error no
// operator has been restored.
func (c *CheckpointManager) RestoreCheckpoint(epoch stream.Epoch, operators []stream.Operator) error {
	snapshots := make([]stream.State, len(operators))
	for i, operator := range operators {
		snapshot, err := c.backend.Load(operator.ID(), epoch)
		if err != nil {
			return err
		}
		snapshots[i] = snapshot
	}
	for i, operator := range operators {
		operator.Restore(snapshots[i])
	}
	c.logger.Info().Int64("epoch", int64(epoch)).Int("operators", len(operators)).Msg("checkpoint restored")
	return nil
}

// RestoreLatest restores every operator to the newest epoch they all have
// state for. It returns NoEpoch and leaves the operators untouched when
// there is no such epoch.
func (c *CheckpointManager) RestoreLatest(operators []stream.Operator) (stream.Epoch, error) {
	epoch, err := c.commonEpoch(operators)
	if err != nil || epoch == stream.NoEpoch {
		return stream.NoEpoch, err
	}
	if err := c.RestoreCheckpoint(epoch, operators); err != nil {
		return stream.NoEpoch, err
	}
	return epoch, nil
}

// commonEpoch returns the greatest epoch stored for every operator, NoEpoch
// if there is none.
func (c *CheckpointManager) commonEpoch(operators []stream.Operator) (stream.Epoch, error) {
	if len(operators) == 0 {
		return stream.NoEpoch, nil
	}
	counts := make(map[stream.Epoch]int)
	for _, operator := range operators {
		epochs, err := c.backend.Epochs(operator.ID())
		if err != nil {
			return stream.NoEpoch, err
		}
		seen := make(map[stream.Epoch]bool, len(epochs))
		for _, e := range epochs {
			if !seen[e] {
				seen[e] = true
				counts[e]++
			}
		}
	}
	common := stream.NoEpoch
	for e, n := range counts {
		if n == len(operators) && e > common {
			common = e
		}
	}
	return common, nil
}

// Checkpoints returns the checkpoints taken in this process for epoch.
func (c *CheckpointManager) Checkpoints(epoch stream.Epoch) []*Checkpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Checkpoint(nil), c.checkpoints[epoch]...)
}

// Epochs returns every epoch checkpointed in this process, ascending.
func (c *CheckpointManager) Epochs() []stream.Epoch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	epochs := make([]stream.Epoch, 0, len(c.checkpoints))
	for e := range c.checkpoints {
		epochs = append(epochs, e)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })
	return epochs
}
