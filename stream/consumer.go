package stream

import "context"

// Consumer is the next unit of output of an operator or operator chain.
//
// Next does whatever internal work is needed and reports one of three
// outcomes:
//
//   - (nil, nil): work happened but nothing crossed the actor boundary
//   - (b, nil): the barrier b was reached
//   - (_, err): the consumer cannot continue
//
// Next is called repeatedly by a single owner and never concurrently.
// Barriers are surfaced in non-decreasing epoch order, each exactly once, and
// a Stop barrier is the last result a consumer ever returns. Consumers that
// hold resources should also implement io.Closer; the owning actor closes
// them on every exit path.
type Consumer interface {
	Next(ctx context.Context) (*Barrier, error)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(ctx context.Context) (*Barrier, error)

func (f ConsumerFunc) Next(ctx context.Context) (*Barrier, error) {
	return f(ctx)
}
