package stream

import (
	"fmt"
	"time"
)

// Epoch identifies the checkpoint generation a barrier closes. Valid epochs
// are non-negative.
type Epoch int64

// NoEpoch is the epoch reported before an actor has seen its first barrier.
const NoEpoch Epoch = -1

// Valid reports whether e is inside the epoch domain.
func (e Epoch) Valid() bool {
	return e >= 0
}

func (e Epoch) String() string {
	if !e.Valid() {
		return "none"
	}
	return fmt.Sprintf("%d", int64(e))
}

// Message is anything that flows on a channel between actors: either a data
// Record or a *Barrier.
type Message interface {
	isMessage()
}

// Record is a single data row.
type Record struct {
	Key       []byte
	Value     any
	EventTime time.Time
}

func (Record) isMessage() {}

// Barrier marks an epoch boundary in the stream and optionally carries a
// mutation. Barriers are never modified after creation.
type Barrier struct {
	Epoch    Epoch
	Mutation Mutation
}

func (*Barrier) isMessage() {}

// NewBarrier returns a barrier with no mutation.
func NewBarrier(epoch Epoch) *Barrier {
	return &Barrier{Epoch: epoch}
}

// NewBarrierWithMutation returns a barrier carrying m.
func NewBarrierWithMutation(epoch Epoch, m Mutation) *Barrier {
	return &Barrier{Epoch: epoch, Mutation: m}
}

// NewStopBarrier returns a barrier carrying a Stop mutation.
func NewStopBarrier(epoch Epoch) *Barrier {
	return &Barrier{Epoch: epoch, Mutation: Stop{}}
}

// IsStop reports whether the barrier asks the receiving actor to stop.
func (b *Barrier) IsStop() bool {
	return b != nil && IsStop(b.Mutation)
}

func (b *Barrier) String() string {
	if b.Mutation == nil {
		return fmt.Sprintf("Barrier{epoch=%s}", b.Epoch)
	}
	return fmt.Sprintf("Barrier{epoch=%s, mutation=%s}", b.Epoch, b.Mutation)
}
