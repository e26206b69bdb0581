package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tarungka/wirecore/stream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tarungka/wirecore/engine"

// State is the state of an actor run loop.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

// Actor is the basic execution unit of the streaming engine. It owns one
// consumer and polls it until a Stop barrier or a failure.
type Actor struct {
	consumer stream.Consumer
	id       uint32

	logger   zerolog.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	registry *Registry

	ran atomic.Bool
}

// Option configures an Actor.
type Option func(*Actor)

// WithLogger sets the base logger of the actor.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Actor) {
		a.logger = l
	}
}

// WithTracer sets the tracer used for poll spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Actor) {
		a.tracer = t
	}
}

// WithMetrics records poll and barrier counts in m.
func WithMetrics(m *Metrics) Option {
	return func(a *Actor) {
		a.metrics = m
	}
}

// WithRegistry publishes the actor status to r.
func WithRegistry(r *Registry) Option {
	return func(a *Actor) {
		a.registry = r
	}
}

// NewActor creates an actor that owns consumer. It has no side effects.
func NewActor(consumer stream.Consumer, id uint32, opts ...Option) *Actor {
	a := &Actor{
		consumer: consumer,
		id:       id,
		logger:   log.Logger,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the actor id.
func (a *Actor) ID() uint32 {
	return a.id
}

// Run drives the consumer until it surfaces a Stop barrier, in which case
// Run returns nil, or until it fails, in which case the failure is returned
// unchanged. Run gives up ownership of the consumer: it is closed on every
// exit path if it implements io.Closer, and the actor cannot be run again.
func (a *Actor) Run(ctx context.Context) (err error) {
	if !a.ran.CompareAndSwap(false, true) {
		return fmt.Errorf("actor %d: %w", a.id, ErrActorAlreadyRun)
	}
	consumer := a.consumer
	a.consumer = nil

	tag := newPollTag(a.id, stream.NoEpoch, a.logger)
	last := stream.NoEpoch

	defer func() {
		closer, ok := consumer.(io.Closer)
		if !ok {
			return
		}
		if cerr := closer.Close(); cerr != nil {
			a.logger.Warn().Err(cerr).Uint32("actor_id", a.id).Msg("closing consumer failed")
			if err != nil {
				err = errors.Join(err, cerr)
				a.registry.update(Status{ID: a.id, State: StateFailed, Epoch: last, Error: err.Error()})
			}
		}
	}()

	a.metrics.observeStart(a.id)
	a.registry.update(Status{ID: a.id, State: StateRunning, Epoch: last})
	tag.Logger().Debug().Msg("actor started")

	state := StateRunning
	for state == StateRunning {
		if cerr := ctx.Err(); cerr != nil {
			state, err = StateFailed, cerr
			break
		}

		barrier, perr := a.poll(ctx, consumer, tag)
		var epoch stream.Epoch
		state, epoch, err = transition(last, barrier, perr)
		if state == StateFailed || barrier == nil {
			continue
		}

		last = epoch
		a.metrics.observeBarrier(a.id, last)
		a.registry.update(Status{ID: a.id, State: state, Epoch: last})
		if state == StateRunning {
			tag = tag.withEpoch(last, a.logger)
		}
	}

	if state == StateFailed {
		a.logger.Warn().
			Err(err).
			Uint32("actor_id", a.id).
			Int64("epoch", int64(last)).
			Msg("actor polling failed")
		a.metrics.observeFailure(a.id)
		a.registry.update(Status{ID: a.id, State: StateFailed, Epoch: last, Error: err.Error()})
		return err
	}

	a.logger.Info().Uint32("actor_id", a.id).Int64("epoch", int64(last)).Msg("actor stopped")
	return nil
}

// poll calls the consumer once under the current tag.
func (a *Actor) poll(ctx context.Context, consumer stream.Consumer, tag PollTag) (*stream.Barrier, error) {
	ctx, span := a.tracer.Start(ctx, tag.SpanName(), trace.WithAttributes(tag.Attributes()...))
	defer span.End()
	ctx = tag.Logger().WithContext(ctx)

	a.metrics.observePoll(a.id)
	barrier, err := consumer.Next(ctx)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case barrier != nil:
		attrs := []attribute.KeyValue{attribute.Int64("barrier.epoch", int64(barrier.Epoch))}
		if barrier.Mutation != nil {
			attrs = append(attrs, attribute.String("barrier.mutation", barrier.Mutation.String()))
		}
		span.AddEvent("barrier", trace.WithAttributes(attrs...))
	}
	return barrier, err
}

// transition computes the loop state after one poll result. last is the
// epoch of the previous barrier, NoEpoch before the first one. It returns
// the new state, the epoch to remember and, for StateFailed, the error Run
// returns.
func transition(last stream.Epoch, barrier *stream.Barrier, err error) (State, stream.Epoch, error) {
	if err != nil {
		return StateFailed, last, err
	}
	if barrier == nil {
		return StateRunning, last, nil
	}
	if !barrier.Epoch.Valid() {
		return StateFailed, last, fmt.Errorf("%w: %d", ErrInvalidEpoch, int64(barrier.Epoch))
	}
	if last.Valid() && barrier.Epoch < last {
		return StateFailed, last, fmt.Errorf("%w: %d after %d", ErrEpochRegression, int64(barrier.Epoch), int64(last))
	}
	if barrier.IsStop() {
		return StateStopped, barrier.Epoch, nil
	}
	return StateRunning, barrier.Epoch, nil
}
