package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/wirecore/engine"
	"github.com/tarungka/wirecore/stream"
)

// newTestServer runs one actor to a Stop barrier at epoch 5 so the registry
// and the metrics have something to show.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	registry := engine.NewRegistry()

	barriers := []*stream.Barrier{stream.NewBarrier(4), stream.NewStopBarrier(5)}
	consumer := stream.ConsumerFunc(func(ctx context.Context) (*stream.Barrier, error) {
		b := barriers[0]
		barriers = barriers[1:]
		return b, nil
	})
	actor := engine.NewActor(consumer, 7,
		engine.WithLogger(zerolog.Nop()),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithRegistry(registry),
	)
	require.NoError(t, actor.Run(context.Background()))

	ts := httptest.NewServer(New(registry, reg, zerolog.Nop()).Router())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, ResponseModel) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Actors(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/actors")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	actors, ok := body.Data.([]any)
	require.True(t, ok)
	require.Len(t, actors, 1)

	status, body = get(t, ts.URL+"/actors/7")
	assert.Equal(t, http.StatusOK, status)
	actor := body.Data.(map[string]any)
	assert.Equal(t, float64(7), actor["id"])
	assert.Equal(t, "stopped", actor["state"])
	assert.Equal(t, float64(5), actor["epoch"])
}

func TestServer_ActorErrors(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/actors/8")
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, body.Success)
	assert.Equal(t, "actor not found", body.Error)

	status, body = get(t, ts.URL+"/actors/seven")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid actor id", body.Error)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.Contains(text, `wirecore_actor_barriers_total{actor_id="7"} 2`), text)
	assert.True(t, strings.Contains(text, `wirecore_actor_epoch{actor_id="7"} 5`), text)
}

func TestServer_RunStopsWithContext(t *testing.T) {
	s := New(engine.NewRegistry(), prometheus.NewRegistry(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
