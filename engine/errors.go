package engine

import "errors"

var (
	// ErrActorAlreadyRun is returned when Run is called a second time on the
	// same actor.
	ErrActorAlreadyRun = errors.New("engine: actor already run")
	// ErrEpochRegression is returned when a consumer surfaces a barrier whose
	// epoch is lower than one the actor already saw.
	ErrEpochRegression = errors.New("engine: barrier epoch went backwards")
	// ErrInvalidEpoch is returned for barriers outside the epoch domain.
	ErrInvalidEpoch = errors.New("engine: barrier epoch is invalid")
	// ErrCoordinatorStopped is returned when injecting after a Stop barrier.
	ErrCoordinatorStopped = errors.New("engine: coordinator already stopped")
)
