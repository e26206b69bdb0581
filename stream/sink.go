package stream

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink is an interface for data sinks.
type Sink interface {
	// Write writes one record.
	Write(ctx context.Context, rec Record) error
	// Barrier is called once every operator has handled the barrier. Sinks
	// flush everything written during the epoch before returning.
	Barrier(ctx context.Context, b *Barrier) error
	// Close closes the sink.
	Close() error
}

// PrintSink is a simple sink that prints records to a writer.
type PrintSink struct {
	out io.Writer
}

// NewPrintSink creates a new PrintSink writing to stdout.
func NewPrintSink() *PrintSink {
	return &PrintSink{out: os.Stdout}
}

// NewPrintSinkTo creates a new PrintSink writing to w.
func NewPrintSinkTo(w io.Writer) *PrintSink {
	return &PrintSink{out: w}
}

func (s *PrintSink) Write(ctx context.Context, rec Record) error {
	_, err := fmt.Fprintf(s.out, "Sink: key=%s value=%v\n", rec.Key, rec.Value)
	return err
}

func (s *PrintSink) Barrier(ctx context.Context, b *Barrier) error {
	_, err := fmt.Fprintf(s.out, "Sink: %s\n", b)
	return err
}

// Close closes the sink.
func (s *PrintSink) Close() error {
	return nil
}

// CollectSink keeps everything it receives in memory.
type CollectSink struct {
	mu       sync.Mutex
	records  []Record
	barriers []*Barrier
	closed   bool
}

// NewCollectSink creates a new CollectSink.
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

func (s *CollectSink) Write(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *CollectSink) Barrier(ctx context.Context, b *Barrier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barriers = append(s.barriers, b)
	return nil
}

func (s *CollectSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Records returns a copy of the records written so far.
func (s *CollectSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Barriers returns a copy of the barriers seen so far.
func (s *CollectSink) Barriers() []*Barrier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Barrier(nil), s.barriers...)
}

// Closed reports whether Close has been called.
func (s *CollectSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
