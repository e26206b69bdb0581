package state

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/tarungka/wirecore/stream"
)

type stateKey struct {
	operatorID string
	epoch      stream.Epoch
}

// InMemoryStateBackend is an in-memory implementation of the StateBackend interface.
type InMemoryStateBackend struct {
	mu    sync.RWMutex
	state map[stateKey]stream.State
}

// NewInMemoryStateBackend creates a new InMemoryStateBackend.
func NewInMemoryStateBackend() *InMemoryStateBackend {
	return &InMemoryStateBackend{
		state: make(map[stateKey]stream.State),
	}
}

// Save saves the state of an operator.
func (b *InMemoryStateBackend) Save(operatorID string, epoch stream.Epoch, state stream.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state[stateKey{operatorID, epoch}] = maps.Clone(state)
	return nil
}

// Load loads the state of an operator.
func (b *InMemoryStateBackend) Load(operatorID string, epoch stream.Epoch) (stream.State, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	state, ok := b.state[stateKey{operatorID, epoch}]
	if !ok {
		return nil, fmt.Errorf("operator %s epoch %s: %w", operatorID, epoch, ErrStateNotFound)
	}
	return maps.Clone(state), nil
}

// Latest returns the highest epoch saved for the operator.
func (b *InMemoryStateBackend) Latest(operatorID string) (stream.Epoch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	latest := stream.NoEpoch
	for k := range b.state {
		if k.operatorID == operatorID && k.epoch > latest {
			latest = k.epoch
		}
	}
	if latest == stream.NoEpoch {
		return stream.NoEpoch, fmt.Errorf("operator %s: %w", operatorID, ErrStateNotFound)
	}
	return latest, nil
}

// Epochs returns every epoch saved for the operator, ascending.
func (b *InMemoryStateBackend) Epochs(operatorID string) ([]stream.Epoch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var epochs []stream.Epoch
	for k := range b.state {
		if k.operatorID == operatorID {
			epochs = append(epochs, k.epoch)
		}
	}
	slices.Sort(epochs)
	return epochs, nil
}

func (b *InMemoryStateBackend) Close() error {
	return nil
}
