package stream

import (
	"context"
	"maps"
)

// BaseOperator is a base struct for all stream operators.
type BaseOperator struct {
	// The unique identifier of the operator.
	id string
	// The state of the operator.
	state State
	// Settings received through Update mutations.
	settings map[string]string
}

// NewBaseOperator creates a new BaseOperator.
func NewBaseOperator(id string) *BaseOperator {
	return &BaseOperator{
		id:       id,
		state:    make(State),
		settings: make(map[string]string),
	}
}

// ID returns the unique identifier of the operator.
func (o *BaseOperator) ID() string {
	return o.id
}

// Process forwards the record unchanged.
func (o *BaseOperator) Process(ctx context.Context, rec Record) ([]Record, error) {
	return []Record{rec}, nil
}

// HandleBarrier applies Update mutations to the operator settings. Every
// other mutation is ignored.
func (o *BaseOperator) HandleBarrier(ctx context.Context, b *Barrier) error {
	if u, ok := b.Mutation.(Update); ok {
		maps.Copy(o.settings, u.Config)
	}
	return nil
}

// Setting returns a value set by an Update mutation.
func (o *BaseOperator) Setting(key string) (string, bool) {
	v, ok := o.settings[key]
	return v, ok
}

// Snapshot returns a copy of the operator state.
func (o *BaseOperator) Snapshot(epoch Epoch) State {
	return maps.Clone(o.state)
}

// Restore restores the state of the operator.
func (o *BaseOperator) Restore(state State) {
	if state == nil {
		state = make(State)
	}
	o.state = maps.Clone(state)
}
