package stream

import (
	"context"
	"time"
)

// Source is an interface for data sources.
type Source interface {
	// Open opens the source. The returned channel may carry records and,
	// for sources fed by an upstream actor, barriers.
	Open(ctx context.Context) (<-chan Message, error)
	// Close closes the source.
	Close() error
}

// ChannelSource reads messages from a channel owned by someone else, usually
// the dispatcher of an upstream actor.
type ChannelSource struct {
	in <-chan Message
}

// NewChannelSource creates a new ChannelSource.
func NewChannelSource(in <-chan Message) *ChannelSource {
	return &ChannelSource{in: in}
}

// Open returns the wrapped channel.
func (s *ChannelSource) Open(ctx context.Context) (<-chan Message, error) {
	return s.in, nil
}

// Close is a no-op; the channel belongs to its writer.
func (s *ChannelSource) Close() error {
	return nil
}

// NumberSource is a simple source that generates a stream of numbered
// records. A count of zero or less generates records until the source is
// closed.
type NumberSource struct {
	count    int
	interval time.Duration
	cancel   context.CancelFunc
}

// NewNumberSource creates a new NumberSource.
func NewNumberSource(count int) *NumberSource {
	return &NumberSource{
		count: count,
	}
}

// WithInterval makes the source wait d between records.
func (s *NumberSource) WithInterval(d time.Duration) *NumberSource {
	s.interval = d
	return s
}

// Open opens the source.
func (s *NumberSource) Open(ctx context.Context) (<-chan Message, error) {
	ctx, s.cancel = context.WithCancel(ctx)
	out := make(chan Message)
	go func() {
		defer close(out)
		for i := 0; s.count <= 0 || i < s.count; i++ {
			if s.interval > 0 && i > 0 {
				select {
				case <-time.After(s.interval):
				case <-ctx.Done():
					return
				}
			}
			rec := Record{Key: []byte{byte('a' + i%26)}, Value: i, EventTime: time.Now()}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops the generator goroutine.
func (s *NumberSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
