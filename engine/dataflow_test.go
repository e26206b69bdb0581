package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/wirecore/checkpoint"
	"github.com/tarungka/wirecore/engine"
	"github.com/tarungka/wirecore/state"
	"github.com/tarungka/wirecore/stream"
)

var keys = []string{"a", "b", "c", "d", "e"}

func records(ch chan stream.Message, n int) {
	for i := range n {
		ch <- stream.Record{Key: []byte(keys[i%len(keys)]), Value: i}
	}
}

func total(ops []*stream.CountOperator) int64 {
	var n int64
	for _, op := range ops {
		for _, k := range keys {
			n += op.Count(k)
		}
	}
	return n
}

// One source actor hashes records over two counting actors. The barriers
// travel in-band so the epoch boundaries are deterministic.
func TestDataflow_CheckpointsAndStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	checkpoints := checkpoint.NewCheckpointManager(state.NewInMemoryStateBackend(), zerolog.Nop())
	registry := engine.NewRegistry()
	opts := []engine.Option{engine.WithLogger(zerolog.Nop()), engine.WithRegistry(registry)}

	outputs := map[uint32]chan<- stream.Message{}
	var (
		counters []*stream.CountOperator
		sinks    []*stream.CollectSink
		actors   []*engine.Actor
	)
	for _, id := range []uint32{2, 3} {
		in := make(chan stream.Message, 64)
		outputs[id] = in
		counter := stream.NewCountOperator(fmt.Sprintf("count-%d", id))
		sink := stream.NewCollectSink()
		p := stream.NewPipeline(stream.NewChannelSource(in), sink).
			AddOperator(counter).
			WithCheckpointer(checkpoints)
		counters = append(counters, counter)
		sinks = append(sinks, sink)
		actors = append(actors, engine.NewActor(p, id, opts...))
	}

	input := make(chan stream.Message, 64)
	records(input, 20)
	input <- stream.NewBarrier(1)
	records(input, 10)
	input <- stream.NewStopBarrier(2)

	source := stream.NewPipeline(stream.NewChannelSource(input), stream.NewDispatcher(stream.Hash, outputs)).
		WithCheckpointer(checkpoints)
	actors = append(actors, engine.NewActor(source, 1, opts...))

	require.NoError(t, engine.RunGroup(ctx, actors...))

	assert.Equal(t, int64(30), total(counters))
	for _, sink := range sinks {
		barriers := sink.Barriers()
		require.Len(t, barriers, 2)
		assert.Equal(t, stream.Epoch(1), barriers[0].Epoch)
		assert.True(t, barriers[1].IsStop())
		assert.True(t, sink.Closed())
	}
	for _, s := range registry.List() {
		assert.Equal(t, engine.StateStopped, s.State, "actor %d", s.ID)
		assert.Equal(t, stream.Epoch(2), s.Epoch, "actor %d", s.ID)
	}
	assert.Len(t, registry.List(), 3)
	assert.Equal(t, []stream.Epoch{1, 2}, checkpoints.Epochs())

	restored := []*stream.CountOperator{stream.NewCountOperator("count-2"), stream.NewCountOperator("count-3")}
	epoch, err := checkpoints.RestoreLatest([]stream.Operator{restored[0], restored[1]})
	require.NoError(t, err)
	assert.Equal(t, stream.Epoch(2), epoch)
	assert.Equal(t, int64(30), total(restored))

	require.NoError(t, checkpoints.RestoreCheckpoint(1, []stream.Operator{restored[0], restored[1]}))
	assert.Equal(t, int64(20), total(restored))
}

// A failing downstream actor takes the rest of the graph down with it.
func TestDataflow_FailurePropagates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := make(chan stream.Message, 4)
	errBad := errors.New("bad record")
	downstream := stream.NewPipeline(stream.NewChannelSource(in), stream.NewCollectSink())
	// fails right after the first record made it through
	failing := stream.ConsumerFunc(func(ctx context.Context) (*stream.Barrier, error) {
		if _, err := downstream.Next(ctx); err != nil {
			return nil, err
		}
		return nil, errBad
	})

	// the source never finishes on its own; only cancellation ends it
	barriers := make(chan *stream.Barrier)
	source := stream.NewPipeline(stream.NewNumberSource(0).WithInterval(time.Millisecond),
		stream.NewDispatcher(stream.Broadcast, map[uint32]chan<- stream.Message{2: in})).
		WithBarriers(barriers)

	err := engine.RunGroup(ctx,
		engine.NewActor(source, 1, engine.WithLogger(zerolog.Nop())),
		engine.NewActor(failing, 2, engine.WithLogger(zerolog.Nop())),
	)
	assert.ErrorIs(t, err, errBad)
}
