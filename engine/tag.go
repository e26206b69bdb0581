package engine

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tarungka/wirecore/stream"
	"go.opentelemetry.io/otel/attribute"
)

// NextOutbound is the direction of every actor poll: what the actor
// produces is the input of its downstream actors.
const NextOutbound = "Outbound"

// PollTag is the correlation context attached to each poll of an actor. A
// new tag is derived every time the actor passes a barrier; polls in between
// share it.
type PollTag struct {
	ActorID uint32
	Next    string
	Epoch   stream.Epoch

	spanName string
	attrs    []attribute.KeyValue
	logger   zerolog.Logger
}

func newPollTag(actorID uint32, epoch stream.Epoch, base zerolog.Logger) PollTag {
	return PollTag{
		ActorID:  actorID,
		Next:     NextOutbound,
		Epoch:    epoch,
		spanName: fmt.Sprintf("actor_poll_%03d", actorID),
		attrs: []attribute.KeyValue{
			attribute.Int64("actor_id", int64(actorID)),
			attribute.String("next", NextOutbound),
			attribute.Int64("epoch", int64(epoch)),
		},
		logger: base.With().
			Uint32("actor_id", actorID).
			Str("next", NextOutbound).
			Int64("epoch", int64(epoch)).
			Logger(),
	}
}

// withEpoch returns the tag for the polls following a barrier of epoch.
func (t PollTag) withEpoch(epoch stream.Epoch, base zerolog.Logger) PollTag {
	return newPollTag(t.ActorID, epoch, base)
}

// SpanName is the name of the span recorded for each poll.
func (t PollTag) SpanName() string {
	return t.spanName
}

// Attributes returns the span attributes of the tag.
func (t PollTag) Attributes() []attribute.KeyValue {
	return t.attrs
}

// Logger returns a logger carrying the tag fields.
func (t PollTag) Logger() *zerolog.Logger {
	return &t.logger
}
