package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/wirecore/internal/config"
)

// stopMarkers counts the stop barrier lines a file sink wrote.
func stopMarkers(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		if line["mutation"] == "Stop" {
			n++
		}
	}
	require.NoError(t, scanner.Err())
	return n
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"--port", "0",
		"--actors", "2",
		"--records", "5",
		"--record-interval", "1ms",
		"--checkpoint-interval", "10ms",
		"--max-epochs", "1",
		"--state-backend", "badger",
		"--state-dir", filepath.Join(dir, "state"),
		"--sink", "file",
		"--sink-path", filepath.Join(dir, "out.jsonl"),
	}
	cfg, err := config.Load(args)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.NoError(t, run(cfg, zerolog.Nop()))
	for _, name := range []string{"out-2.jsonl", "out-3.jsonl"} {
		assert.Equal(t, 1, stopMarkers(t, filepath.Join(dir, name)), name)
	}

	// a second run restores from the badger state and appends
	require.NoError(t, run(cfg, zerolog.Nop()))
	for _, name := range []string{"out-2.jsonl", "out-3.jsonl"} {
		assert.Equal(t, 2, stopMarkers(t, filepath.Join(dir, name)), name)
	}
}
