package state

import (
	"errors"

	"github.com/tarungka/wirecore/stream"
)

// ErrStateNotFound is returned when no state is stored for an operator and epoch.
var ErrStateNotFound = errors.New("state: not found")

// StateBackend is an interface for storing and retrieving operator state.
type StateBackend interface {
	// Save saves the state of an operator for an epoch.
	Save(operatorID string, epoch stream.Epoch, state stream.State) error
	// Load loads the state of an operator for an epoch.
	Load(operatorID string, epoch stream.Epoch) (stream.State, error)
	// Latest returns the highest epoch stored for an operator.
	Latest(operatorID string) (stream.Epoch, error)
	// Epochs returns every epoch stored for an operator, ascending. It is
	// empty, not an error, for an unknown operator.
	Epochs(operatorID string) ([]stream.Epoch, error)
	// Close releases the backend.
	Close() error
}
