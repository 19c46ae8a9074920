// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/clarirag/internal/api"
	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/mcpserver"
	"github.com/starford/clarirag/internal/sse"
)

// progressThrottle limits ingest.progress pushes per collection.
const progressThrottle = time.Second

// Run starts the HTTP server, the MCP endpoint and the reindex triggers,
// and blocks until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts...)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := NewLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("docs_path", cfg.Corpus.DocsPath),
		slog.String("code_path", cfg.Corpus.CodePath),
		slog.String("index_path", cfg.Index.Path),
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.String("generation_provider", cfg.Generation.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(progressThrottle)
	defer broker.Close()

	comps, err := NewComponents(logger, append(opts, WithIngestOptions(
		ingest.WithEvents(func(ev ingest.Event) {
			broker.PublishIngest(string(ev.Type), ev.Collection, ev)
		}),
	))...)
	if err != nil {
		return err
	}
	defer comps.Close()

	codeK, docsK := comps.Retriever.Defaults()
	logger.Info("Components ready",
		slog.String("embedding_model", comps.Embedder.Model()),
		slog.String("generation_model", comps.Assistant.Model()),
		slog.Int("code_k", codeK),
		slog.Int("docs_k", docsK))

	apiRouter := api.NewRouter(api.Deps{
		Assistant: comps.Assistant,
		Reindexer: comps.Pipeline,
		Catalog:   comps.Store,
		Targets:   comps.Targets(),
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	mcpSrv := mcpserver.New(comps.Assistant, comps.Store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := comps.Store.List(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)
	r.With(api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)).Handle("/mcp", mcpSrv.HTTPHandler())

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	targets := comps.Targets()
	watched := []ingest.Target{targets[CorpusCode], targets[CorpusDocs]}

	if cfg.Reindex.Watch {
		g.Go(func() error {
			if err := ingest.Watch(gCtx, comps.Pipeline, watched, cfg.Reindex.Debounce, logger); err != nil {
				logger.Error("watcher: stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if cfg.Reindex.Schedule != "" {
		sched, err := ingest.NewScheduler(comps.Pipeline, cfg.Reindex.Schedule, watched, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sched.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so that the watcher and scheduler stop
// together with the HTTP server.
var errShutdown = errors.New("shutdown")
