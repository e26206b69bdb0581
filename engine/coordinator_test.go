package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/wirecore/stream"
)

func TestCheckpointCoordinator_InjectIncreasesEpoch(t *testing.T) {
	out1 := make(chan *stream.Barrier, 4)
	out2 := make(chan *stream.Barrier, 4)
	c := NewCheckpointCoordinator(time.Hour, zerolog.Nop(), out1, out2)
	assert.Equal(t, stream.NoEpoch, c.Epoch())

	ctx := context.Background()
	b1, err := c.Inject(ctx, nil)
	require.NoError(t, err)
	b2, err := c.Inject(ctx, stream.Pause{})
	require.NoError(t, err)

	assert.Equal(t, stream.Epoch(1), b1.Epoch)
	assert.Equal(t, stream.Epoch(2), b2.Epoch)
	assert.Equal(t, stream.Epoch(2), c.Epoch())
	for _, out := range []chan *stream.Barrier{out1, out2} {
		assert.Same(t, b1, <-out)
		assert.Same(t, b2, <-out)
	}
}

func TestCheckpointCoordinator_Stop(t *testing.T) {
	out := make(chan *stream.Barrier, 2)
	c := NewCheckpointCoordinator(time.Hour, zerolog.Nop(), out)

	require.NoError(t, c.Stop(context.Background()))
	b := <-out
	assert.True(t, b.IsStop())

	_, err := c.Inject(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCoordinatorStopped)
	assert.ErrorIs(t, c.Stop(context.Background()), ErrCoordinatorStopped)
}

func TestCheckpointCoordinator_StartWithMaxEpochs(t *testing.T) {
	out := make(chan *stream.Barrier, 8)
	c := NewCheckpointCoordinator(time.Millisecond, zerolog.Nop(), out).WithMaxEpochs(3)

	require.NoError(t, c.Start(context.Background()))
	close(out)

	var got []*stream.Barrier
	for b := range out {
		got = append(got, b)
	}
	require.Len(t, got, 4)
	for i, b := range got[:3] {
		assert.Equal(t, stream.Epoch(i+1), b.Epoch)
		assert.False(t, b.IsStop())
	}
	assert.True(t, got[3].IsStop())
	assert.Equal(t, stream.Epoch(4), got[3].Epoch)
}

func TestCheckpointCoordinator_StartEpoch(t *testing.T) {
	out := make(chan *stream.Barrier, 1)
	c := NewCheckpointCoordinator(time.Hour, zerolog.Nop(), out).WithStartEpoch(41)

	b, err := c.Inject(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, stream.Epoch(42), b.Epoch)
}

func TestCheckpointCoordinator_InjectBlockedOutput(t *testing.T) {
	out := make(chan *stream.Barrier)
	c := NewCheckpointCoordinator(time.Hour, zerolog.Nop(), out)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Inject(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCheckpointCoordinator_StartCancelled(t *testing.T) {
	out := make(chan *stream.Barrier, 1)
	c := NewCheckpointCoordinator(time.Hour, zerolog.Nop(), out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Start(ctx), context.Canceled)
}
