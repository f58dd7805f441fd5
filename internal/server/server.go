// Package server exposes the lineage engine and the state store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapsql/internal/state"
	"github.com/leapstack-labs/leapsql/pkg/lineage"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxBodyBytes bounds the size of a submitted statement.
const DefaultMaxBodyBytes = 1 << 20

// Config holds configuration for the HTTP server.
type Config struct {
	Addr string
	// EngineOptions configure the engine for requests that use the
	// default dialect; requests naming another dialect reuse them with
	// that dialect.
	EngineOptions lineage.Options
	// Store is optional; without it the view and impact endpoints answer
	// 503.
	Store        *state.Store
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server serves the lineage API.
type Server struct {
	addr     string
	opts     lineage.Options
	engine   *lineage.Engine
	store    *state.Store
	maxBody  int64
	logger   *slog.Logger
	listenCh chan net.Addr
}

// New creates a server. It fails when the engine options are invalid.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := cfg.EngineOptions
	if opts.Logger == nil {
		opts.Logger = logger
	}

	eng, err := lineage.NewEngine(opts)
	if err != nil {
		return nil, err
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &Server{
		addr:     cfg.Addr,
		opts:     opts,
		engine:   eng,
		store:    cfg.Store,
		maxBody:  maxBody,
		logger:   logger,
		listenCh: make(chan net.Addr, 1),
	}, nil
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/lineage", s.handleLineage)
		r.Get("/views", s.handleListViews)
		r.Get("/views/{name}", s.handleGetView)
		r.Get("/impact", s.handleImpact)
	})
	return r
}

// Serve listens on the configured address and blocks until ctx is done,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listenCh <- ln.Addr()
	s.logger.Info("serving lineage API", slog.String("addr", ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down lineage API")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Listening returns a channel that receives the bound address once Serve
// is listening.
func (s *Server) Listening() <-chan net.Addr {
	return s.listenCh
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
