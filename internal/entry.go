// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/zennote/internal/api"
	"github.com/starford/zennote/internal/backup"
	"github.com/starford/zennote/internal/logging"
	"github.com/starford/zennote/internal/mcpserver"
	"github.com/starford/zennote/internal/notebook"
	"github.com/starford/zennote/internal/persist"
	"github.com/starford/zennote/internal/sse"
	"github.com/starford/zennote/internal/storage"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, logCloser := newLogger(cfg, app.logWriter(os.Stdout))
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("debounce_delay", cfg.Persistence.DebounceDelay.String()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	// SSE broker.
	broker := sse.NewBroker(cfg.Persistence.TagsEventThrottle)
	defer broker.Close()

	coord := persist.NewCoordinator(st.provider, cfg.Persistence.DebounceDelay, logger)
	eng := notebook.New(st.provider, coord,
		notebook.WithLogger(logger),
		notebook.WithNotifier(broker.Forward),
	)
	bk := backup.NewCoordinator(st.provider, logger, eng.Now)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, eng, bk, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Hydrate in the background; the API answers 503 until it completes.
	g.Go(func() error {
		if err := eng.Hydrate(gCtx); err != nil && gCtx.Err() == nil {
			return fmt.Errorf("hydrate: %w", err)
		}
		return nil
	})

	// Watch the data directory for edits made by other processes.
	if st.fs != nil && cfg.Storage.Watch {
		g.Go(func() error {
			err := storage.Watch(gCtx, st.fs, logger, func(key string) {
				broker.PublishStorageChanged(key)
				if !slices.Contains(storage.CollectionKeys, key) {
					return
				}
				logger.Info("reloading after external change", slog.String("key", key))
				if err := eng.Reload(gCtx); err != nil && gCtx.Err() == nil {
					logger.Error("reload failed", slog.String("error", err.Error()))
				}
			})
			if err != nil && gCtx.Err() == nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
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

	// Shut down on signal or on the first goroutine failure.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		finishWrites(cfg.Persistence, eng, coord, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, logCloser := newLogger(cfg, app.logWriter(os.Stderr))
	defer logCloser.Close()
	slog.SetDefault(logger)

	st, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	coord := persist.NewCoordinator(st.provider, cfg.Persistence.DebounceDelay, logger)
	eng := notebook.New(st.provider, coord, notebook.WithLogger(logger))
	if err := eng.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	// Tools flush after each mutation; this catches anything left over.
	defer eng.Flush()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(eng, cfg.Storage.ImagesDir).ServeStdio()
}

func newApplication(opts ...Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(cfg *Config, out io.Writer) (*slog.Logger, io.Closer) {
	return logging.New(logging.Options{
		Level:      cfg.App.LogLevel,
		Stdout:     out,
		File:       cfg.App.LogFile.Path,
		MaxSizeMB:  cfg.App.LogFile.MaxSizeMB,
		MaxBackups: cfg.App.LogFile.MaxBackups,
		MaxAgeDays: cfg.App.LogFile.MaxAgeDays,
	})
}

// newRouter builds the root chi router: middleware, health checks and the API.
func newRouter(cfg *Config, eng *notebook.Engine, bk *backup.Coordinator, events http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !eng.Ready() {
			writeHealth(w, http.StatusServiceUnavailable, "loading")
			return
		}
		writeHealth(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(eng, bk, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      events,
		ImagesDir:   cfg.Storage.ImagesDir,
	}))
	return r
}

func writeHealth(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, state)
}

// finishWrites either flushes or drops debounced writes still pending at
// shutdown, depending on configuration.
func finishWrites(cfg PersistenceConfig, eng *notebook.Engine, coord *persist.Coordinator, logger *slog.Logger) {
	var pending []string
	for _, key := range storage.CollectionKeys {
		if coord.Pending(key) {
			pending = append(pending, key)
		}
	}
	if len(pending) == 0 {
		return
	}
	if cfg.FlushOnExit {
		logger.Info("flushing pending writes", slog.Any("keys", pending))
		eng.Flush()
		return
	}
	logger.Warn("dropping pending writes", slog.Any("keys", pending))
	coord.CancelAll()
}
