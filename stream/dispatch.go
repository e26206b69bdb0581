package stream

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
)

// DispatchStrategy decides which outputs receive a record. Barriers always
// go to every output.
type DispatchStrategy string

const (
	// Broadcast sends every record to every output.
	Broadcast DispatchStrategy = "broadcast"
	// Hash sends each record to one output picked by the FNV-1a hash of its key.
	Hash DispatchStrategy = "hash"
)

// Dispatcher is a Sink that feeds the inputs of downstream actors. It owns
// the set of outputs and changes it when AddOutput and RemoveOutput
// mutations pass through. The output channels belong to their creators and
// are never closed here; a removed output is sent a Stop barrier instead so
// the actor behind it finishes.
type Dispatcher struct {
	strategy DispatchStrategy
	outputs  map[uint32]chan<- Message
	order    []uint32
}

// NewDispatcher creates a Dispatcher with the given initial outputs.
func NewDispatcher(strategy DispatchStrategy, outputs map[uint32]chan<- Message) *Dispatcher {
	d := &Dispatcher{
		strategy: strategy,
		outputs:  make(map[uint32]chan<- Message, len(outputs)),
	}
	for id, ch := range outputs {
		d.outputs[id] = ch
	}
	d.reorder()
	return d
}

// Outputs returns the ids of the current outputs in ascending order.
func (d *Dispatcher) Outputs() []uint32 {
	return append([]uint32(nil), d.order...)
}

func (d *Dispatcher) Write(ctx context.Context, rec Record) error {
	if len(d.order) == 0 {
		return nil
	}
	if d.strategy == Hash {
		h := fnv.New64a()
		_, _ = h.Write(rec.Key)
		id := d.order[h.Sum64()%uint64(len(d.order))]
		return d.send(ctx, id, rec)
	}
	for _, id := range d.order {
		if err := d.send(ctx, id, rec); err != nil {
			return err
		}
	}
	return nil
}

// Barrier forwards b to every output. Outputs added by b receive it, outputs
// removed by b receive it followed by a Stop barrier of the same epoch.
func (d *Dispatcher) Barrier(ctx context.Context, b *Barrier) error {
	if add, ok := b.Mutation.(AddOutput); ok {
		for id, ch := range add.Outputs {
			d.outputs[id] = ch
		}
		d.reorder()
	}
	for _, id := range d.order {
		if err := d.send(ctx, id, b); err != nil {
			return err
		}
	}
	if rm, ok := b.Mutation.(RemoveOutput); ok {
		for _, id := range rm.ActorIDs {
			if _, ok := d.outputs[id]; !ok {
				continue
			}
			if err := d.send(ctx, id, NewStopBarrier(b.Epoch)); err != nil {
				return err
			}
			delete(d.outputs, id)
		}
		d.reorder()
	}
	return nil
}

// Close drops every output.
func (d *Dispatcher) Close() error {
	d.outputs = map[uint32]chan<- Message{}
	d.order = nil
	return nil
}

func (d *Dispatcher) send(ctx context.Context, id uint32, msg Message) error {
	select {
	case d.outputs[id] <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch to actor %d: %w", id, ctx.Err())
	}
}

func (d *Dispatcher) reorder() {
	d.order = d.order[:0]
	for id := range d.outputs {
		d.order = append(d.order, id)
	}
	sort.Slice(d.order, func(i, j int) bool { return d.order[i] < d.order[j] })
}
