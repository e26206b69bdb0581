package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/wirecore/stream"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestFileSink_WritesJSONLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")

	sink, err := New(SinkConfig{Name: "actor-2", ConnectionType: "file", Config: map[string]string{"file_path": path}})
	require.NoError(t, err)
	f := sink.(*FileSink)
	assert.Equal(t, "actor-2", f.Name())

	require.NoError(t, f.Write(ctx, stream.Record{Key: []byte("a"), Value: 1}))
	require.NoError(t, f.Write(ctx, stream.Record{Key: []byte("b"), Value: "two"}))
	require.NoError(t, f.Barrier(ctx, stream.NewBarrier(1)))

	// synced at the barrier, before Close
	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "a", lines[0]["key"])
	assert.Equal(t, float64(1), lines[0]["value"])
	assert.Equal(t, "two", lines[1]["value"])
	assert.Equal(t, float64(1), lines[2]["epoch"])
	assert.NotContains(t, lines[2], "value")
	assert.NotContains(t, lines[2], "event_time")
	assert.NotContains(t, lines[0], "event_time")

	require.NoError(t, f.Barrier(ctx, stream.NewStopBarrier(2)))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	lines = readLines(t, path)
	require.Len(t, lines, 4)
	assert.Equal(t, "Stop", lines[3]["mutation"])
}

func TestFileSink_EventTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	f, err := NewFileSink(path)
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.Write(context.Background(), stream.Record{Value: 0, EventTime: at}))
	require.NoError(t, f.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "2024-05-01T12:00:00Z", lines[0]["event_time"])
}

func TestFileSink_Appends(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.jsonl")

	for i := range 2 {
		f, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, f.Write(ctx, stream.Record{Value: i}))
		require.NoError(t, f.Close())
	}
	assert.Len(t, readLines(t, path), 2)
}

func TestNew(t *testing.T) {
	sink, err := New(SinkConfig{})
	require.NoError(t, err)
	assert.IsType(t, &stream.PrintSink{}, sink)

	_, err = New(SinkConfig{ConnectionType: "file"})
	assert.Error(t, err)

	_, err = New(SinkConfig{ConnectionType: "kafka", Config: map[string]string{"topic": "t"}})
	assert.Error(t, err)

	_, err = New(SinkConfig{ConnectionType: "carrier-pigeon"})
	assert.Error(t, err)
}
