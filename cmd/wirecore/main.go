// Command wirecore runs a small dataflow graph on the actor core: one source
// actor reading generated or kafka records and fanning them out by key to a set of counting
// actors, with barriers injected on an interval and operator state
// checkpointed on every barrier.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/tarungka/wirecore/checkpoint"
	"github.com/tarungka/wirecore/engine"
	"github.com/tarungka/wirecore/internal/config"
	"github.com/tarungka/wirecore/internal/logger"
	"github.com/tarungka/wirecore/server"
	"github.com/tarungka/wirecore/sinks"
	"github.com/tarungka/wirecore/sources"
	"github.com/tarungka/wirecore/state"
	"github.com/tarungka/wirecore/stream"
)

const (
	sourceActorID = 1
	// how long actors get to drain after the stop barrier before they are cancelled
	stopGracePeriod = 10 * time.Second
	inputBufferSize = 64
)

var buildString = "unknown"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		fmt.Println(config.Usage())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(2)
	}
	if cfg.Version {
		fmt.Println(buildString)
		os.Exit(0)
	}

	logger.SetDevelopment(cfg.Dev)
	if err := logger.Setup(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.GetLogger("wirecore")
	log.Info().Str("build", buildString).Msg("Starting the application")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("dataflow failed")
		os.Exit(1)
	}
	log.Info().Msg("dataflow stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	backend, err := newStateBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	checkpoints := checkpoint.NewCheckpointManager(backend, logger.GetLogger("checkpoint"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)
	registry := engine.NewRegistry()
	actorOpts := []engine.Option{
		engine.WithLogger(logger.GetLogger("actor")),
		engine.WithMetrics(metrics),
		engine.WithRegistry(registry),
	}

	// downstream actors, each counting the keys routed to it
	outputs := make(map[uint32]chan<- stream.Message, cfg.Actors)
	var actors []*engine.Actor
	restored := stream.NoEpoch
	for i := range cfg.Actors {
		id := uint32(sourceActorID + 1 + i)
		input := make(chan stream.Message, inputBufferSize)
		outputs[id] = input

		sink, err := sinks.New(cfg.SinkConfig(id))
		if err != nil {
			return fmt.Errorf("sink of actor %d: %w", id, err)
		}
		p := stream.NewPipeline(stream.NewChannelSource(input), sink).
			AddOperator(stream.NewCountOperator(fmt.Sprintf("count-%d", id))).
			WithCheckpointer(checkpoints)
		epoch, err := checkpoints.RestoreLatest(p.Operators())
		if err != nil {
			return fmt.Errorf("restore actor %d: %w", id, err)
		}
		if epoch > restored {
			restored = epoch
		}
		actors = append(actors, engine.NewActor(p, id, actorOpts...))
	}

	// source actor
	barriers := make(chan *stream.Barrier, 1)
	source, err := sources.New(cfg.SourceConfig())
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	sourcePipeline := stream.NewPipeline(source, stream.NewDispatcher(stream.Hash, outputs)).
		AddOperator(stream.NewMapOperator("double", func(rec stream.Record) stream.Record {
			switch n := rec.Value.(type) {
			case int:
				rec.Value = n * 2
			case float64:
				rec.Value = n * 2
			}
			return rec
		})).
		WithBarriers(barriers).
		WithCheckpointer(checkpoints)
	actors = append(actors, engine.NewActor(sourcePipeline, sourceActorID, actorOpts...))

	coordinator := engine.NewCheckpointCoordinator(cfg.CheckpointInterval, logger.GetLogger("coordinator"), barriers).
		WithMaxEpochs(cfg.MaxEpochs).
		WithStartEpoch(restored)
	if restored.Valid() {
		log.Info().Int64("epoch", int64(restored)).Msg("restored operator state")
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	go func() {
		if err := server.New(registry, reg, logger.GetLogger("server")).Run(runCtx, ":"+cfg.Port); err != nil {
			log.Error().Err(err).Msg("admin server failed")
		}
	}()

	go func() {
		if err := coordinator.Start(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("coordinator failed")
		}
	}()

	go func() {
		select {
		case <-sigCtx.Done():
		case <-runCtx.Done():
			return
		}
		log.Info().Msg("received interrupt signal; sending stop barrier")
		stopCtx, cancel := context.WithTimeout(runCtx, stopGracePeriod)
		defer cancel()
		if err := coordinator.Stop(stopCtx); err != nil && !errors.Is(err, engine.ErrCoordinatorStopped) {
			log.Error().Err(err).Msg("could not send stop barrier")
		}
		select {
		case <-runCtx.Done():
		case <-time.After(stopGracePeriod):
			log.Warn().Msg("actors did not stop in time; cancelling")
			cancelRun()
		}
	}()

	err = engine.RunGroup(runCtx, actors...)
	cancelRun()
	return err
}

func newStateBackend(cfg *config.Config) (state.StateBackend, error) {
	switch cfg.StateBackend {
	case "badger":
		return state.NewBadgerStateBackend(state.BadgerConfig{Dir: cfg.StateDir}, logger.GetLogger("badger"))
	default:
		return state.NewInMemoryStateBackend(), nil
	}
}
