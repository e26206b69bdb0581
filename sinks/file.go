package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarungka/wirecore/stream"
)

// FileSink appends records to a file as JSON lines. Everything written
// during an epoch is synced to disk when the epoch's barrier arrives.
type FileSink struct {
	name string

	// File details
	filePath string
	file     *os.File
	writer   *bufio.Writer
	encoder  *json.Encoder
}

type fileLine struct {
	Key       string    `json:"key,omitempty"`
	Value     any        `json:"value,omitempty"`
	EventTime *time.Time `json:"event_time,omitempty"`
	Epoch     *int64     `json:"epoch,omitempty"`
	Mutation  string     `json:"mutation,omitempty"`
}

// NewFileSink creates a file sink writing to path and opens the file.
func NewFileSink(path string) (*FileSink, error) {
	f := &FileSink{name: "file", filePath: path}
	if err := f.Connect(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileSink) Init(args SinkConfig) error {
	f.name = args.Name

	if args.Config["file_path"] == "" {
		log.Error().Msg("Missing file_path in config")
		return fmt.Errorf("missing file_path")
	}

	f.filePath = args.Config["file_path"]
	return nil
}

func (f *FileSink) Connect() error {
	log.Trace().Str("file_path", f.filePath).Msg("Preparing to open file for writing")

	// Ensure parent directory exists
	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Err(err).Str("directory", dir).Msg("Failed to create parent directories")
		return fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Warn if the file already exists
	if _, err := os.Stat(f.filePath); err == nil {
		log.Warn().Str("file_path", f.filePath).Msg("File already exists; appending to it")
	}

	// Open the file for appending
	file, err := os.OpenFile(f.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Err(err).Str("file_path", f.filePath).Msg("Failed to open file")
		return fmt.Errorf("failed to open file: %w", err)
	}

	f.file = file
	f.writer = bufio.NewWriter(file)
	f.encoder = json.NewEncoder(f.writer)
	return nil
}

func (f *FileSink) Write(ctx context.Context, rec stream.Record) error {
	line := fileLine{Key: string(rec.Key), Value: rec.Value}
	if !rec.EventTime.IsZero() {
		line.EventTime = &rec.EventTime
	}
	if err := f.encoder.Encode(line); err != nil {
		return fmt.Errorf("write %s: %w", f.filePath, err)
	}
	return nil
}

// Barrier writes a marker line for the barrier and syncs the file.
func (f *FileSink) Barrier(ctx context.Context, b *stream.Barrier) error {
	epoch := int64(b.Epoch)
	line := fileLine{Epoch: &epoch}
	if b.Mutation != nil {
		line.Mutation = b.Mutation.String()
	}
	if err := f.encoder.Encode(line); err != nil {
		return fmt.Errorf("write %s: %w", f.filePath, err)
	}
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", f.filePath, err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", f.filePath, err)
	}
	log.Trace().Str("file_path", f.filePath).Int64("epoch", epoch).Msg("file sink synced")
	return nil
}

func (f *FileSink) Close() error {
	if f.file == nil {
		return nil
	}
	log.Info().Str("file_path", f.filePath).Msg("Closing file sink")
	err := errors.Join(f.writer.Flush(), f.file.Close())
	f.file = nil
	if err != nil {
		log.Err(err).Msg("Failed to close file")
	}
	return err
}

func (f *FileSink) Name() string { return f.name }
