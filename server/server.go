package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/tarungka/wirecore/engine"
)

// Server is the admin HTTP surface of a wirecore process.
type Server struct {
	registry *engine.Registry
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

// New creates a Server reading actor statuses from registry and metrics
// from gatherer.
func New(registry *engine.Registry, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Router returns the admin routes.
func (s *Server) Router() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.CleanPath)
	router.Use(middleware.RequestID)

	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	router.Mount("/actors", s.actorRouter())

	return router
}

func (s *Server) actorRouter() chi.Router {
	router := chi.NewRouter()

	router.Get("/", s.listActors())
	router.Get("/{actor_id}", s.getActor())

	return router
}

func (s *Server) listActors() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SendResponse(w, true, s.registry.List(), "")
	}
}

func (s *Server) getActor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "actor_id"), 10, 32)
		if err != nil {
			SendResponseWithStatus(w, false, nil, "invalid actor id", http.StatusBadRequest)
			return
		}
		status, ok := s.registry.Get(uint32(id))
		if !ok {
			SendResponseWithStatus(w, false, nil, "actor not found", http.StatusNotFound)
			return
		}
		SendResponse(w, true, status, "")
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Running the admin server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
