package stream

import "context"

// State represents the state of an operator.
type State map[string]any

// Operator is the base interface for all stream operators.
type Operator interface {
	// ID returns the unique identifier of the operator.
	ID() string
	// Process processes a record and returns zero or more output records.
	Process(ctx context.Context, rec Record) ([]Record, error)
	// HandleBarrier is called when a barrier passes the operator, before
	// its state is snapshotted for the barrier's epoch.
	HandleBarrier(ctx context.Context, b *Barrier) error
	// Snapshot returns a copy of the operator state as of epoch.
	Snapshot(epoch Epoch) State
	// Restore replaces the operator state.
	Restore(state State)
}
