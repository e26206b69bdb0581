package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrInputClosed is returned when every input of a pipeline closed before
	// a Stop barrier arrived.
	ErrInputClosed = errors.New("stream: input closed before stop barrier")
	// ErrPipelineClosed is returned by Next after Close.
	ErrPipelineClosed = errors.New("stream: pipeline is closed")
)

// Checkpointer persists operator state when a barrier passes.
type Checkpointer interface {
	Checkpoint(ctx context.Context, epoch Epoch, operators []Operator) error
}

// Pipeline is a Consumer that drives a source through a chain of operators
// into a sink. Each call to Next moves exactly one message through the chain.
//
// Barriers arrive either in-band on the source channel (actors fed by an
// upstream dispatcher) or on a separate barrier channel (source actors).
// Barriers on the separate channel take priority over pending data, and only
// those pipelines honour Pause and Resume.
type Pipeline struct {
	source       Source
	operators    []Operator
	sink         Sink
	barriers     <-chan *Barrier
	checkpointer Checkpointer

	opened bool
	closed bool
	paused bool
	data   <-chan Message
}

// NewPipeline creates a new Pipeline.
func NewPipeline(source Source, sink Sink) *Pipeline {
	return &Pipeline{
		source: source,
		sink:   sink,
	}
}

// AddOperator adds an operator to the pipeline.
func (p *Pipeline) AddOperator(operator Operator) *Pipeline {
	p.operators = append(p.operators, operator)
	return p
}

// WithBarriers sets the channel barriers are injected on.
func (p *Pipeline) WithBarriers(barriers <-chan *Barrier) *Pipeline {
	p.barriers = barriers
	return p
}

// WithCheckpointer snapshots every operator on each barrier.
func (p *Pipeline) WithCheckpointer(c Checkpointer) *Pipeline {
	p.checkpointer = c
	return p
}

// Operators returns the operator chain.
func (p *Pipeline) Operators() []Operator {
	return p.operators
}

// Paused reports whether the source is paused by a Pause mutation.
func (p *Pipeline) Paused() bool {
	return p.paused
}

// Next implements Consumer.
func (p *Pipeline) Next(ctx context.Context) (*Barrier, error) {
	if p.closed {
		return nil, ErrPipelineClosed
	}
	if !p.opened {
		data, err := p.source.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		p.data = data
		p.opened = true
	}

	msg, err := p.receive(ctx)
	if err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case Record:
		return nil, p.processRecord(ctx, m)
	case *Barrier:
		if err := p.processBarrier(ctx, m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("stream: unexpected message %T", msg)
	}
}

func (p *Pipeline) receive(ctx context.Context) (Message, error) {
	for {
		if p.barriers != nil {
			select {
			case b, ok := <-p.barriers:
				if !ok {
					p.barriers = nil
					continue
				}
				return b, nil
			default:
			}
		}

		data := p.data
		if p.paused && p.barriers != nil {
			data = nil
		}
		if data == nil && p.barriers == nil {
			return nil, ErrInputClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case b, ok := <-p.barriers:
			if !ok {
				p.barriers = nil
				continue
			}
			return b, nil
		case m, ok := <-data:
			if !ok {
				p.data = nil
				continue
			}
			return m, nil
		}
	}
}

func (p *Pipeline) processRecord(ctx context.Context, rec Record) error {
	batch := []Record{rec}
	for _, op := range p.operators {
		var next []Record
		for _, r := range batch {
			out, err := op.Process(ctx, r)
			if err != nil {
				return fmt.Errorf("operator %s: %w", op.ID(), err)
			}
			next = append(next, out...)
		}
		batch = next
		if len(batch) == 0 {
			return nil
		}
	}
	for _, r := range batch {
		if err := p.sink.Write(ctx, r); err != nil {
			return fmt.Errorf("sink write: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) processBarrier(ctx context.Context, b *Barrier) error {
	logger := zerolog.Ctx(ctx)
	switch b.Mutation.(type) {
	case Pause:
		p.paused = true
	case Resume:
		p.paused = false
	}

	for _, op := range p.operators {
		if err := op.HandleBarrier(ctx, b); err != nil {
			return fmt.Errorf("operator %s barrier %s: %w", op.ID(), b.Epoch, err)
		}
	}
	if p.checkpointer != nil {
		if err := p.checkpointer.Checkpoint(ctx, b.Epoch, p.operators); err != nil {
			return fmt.Errorf("checkpoint epoch %s: %w", b.Epoch, err)
		}
	}
	if err := p.sink.Barrier(ctx, b); err != nil {
		return fmt.Errorf("sink barrier %s: %w", b.Epoch, err)
	}
	logger.Debug().Stringer("barrier", b).Bool("paused", p.paused).Msg("barrier passed pipeline")
	return nil
}

// Close closes the source and the sink. It is safe to call more than once.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(p.source.Close(), p.sink.Close())
}
