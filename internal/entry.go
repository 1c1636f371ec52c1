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

	"github.com/starford/launchgrid/internal/api"
	"github.com/starford/launchgrid/internal/apperr"
	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/launcher"
	"github.com/starford/launchgrid/internal/sse"
	"github.com/starford/launchgrid/internal/storage"
	"github.com/starford/launchgrid/internal/store"
	"github.com/starford/launchgrid/internal/watcher"
)

// components holds the components shared by the server and the CLI commands.
type components struct {
	cfg     *Config
	logger  *slog.Logger
	scanner *catalog.Scanner
	db      *store.DB
	svc     *launcher.Service
	backups *storage.FS
}

// open builds the launcher service over the configured store. A store that
// cannot be opened is logged and the service runs without persistence.
func open(ctx context.Context, cfg *Config, logger *slog.Logger, notifier launcher.Notifier) *components {
	rt := &components{
		cfg:     cfg,
		logger:  logger,
		scanner: catalog.NewScanner(cfg.Catalog.BundleSuffix, logger),
	}

	var orderStore store.OrderStore
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		logger.Warn("store unavailable, layout will not be saved",
			slog.String("sqlite_path", cfg.SQLite.Path),
			slog.String("error", err.Error()))
	} else {
		rt.db = db
		orderStore = db
	}

	backups, err := storage.NewFS(cfg.Backup.Dir)
	if err != nil {
		logger.Warn("backup directory unavailable",
			slog.String("backup_dir", cfg.Backup.Dir),
			slog.String("error", err.Error()))
	} else {
		rt.backups = backups
	}

	rt.svc = launcher.New(rt.scanner, orderStore, launcher.Options{
		Roots:           cfg.Catalog.ExpandedRoots(),
		Columns:         cfg.Grid.Columns,
		Rows:            cfg.Grid.Rows,
		PersistDebounce: cfg.Persist.Debounce,
		SettleDelay:     cfg.Persist.SettleDelay,
		Notifier:        notifier,
		Logger:          logger,
	})

	if err := rt.svc.Load(ctx); err != nil && !errors.Is(err, apperr.ErrStoreUnavailable) {
		logger.Warn("saved layout not loaded", slog.String("error", err.Error()))
	}
	if err := rt.svc.Rescan(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	}
	return rt
}

// backupProvider returns the backup directory as a Provider, or nil when
// it is unavailable.
func (rt *components) backupProvider() storage.Provider {
	if rt.backups == nil {
		return nil
	}
	return rt.backups
}

// close saves pending changes and releases the store.
func (rt *components) close() {
	rt.svc.Close()
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("store close failed", slog.String("error", err.Error()))
		}
	}
}

func newLogger(cfg *Config, out *os.File) *slog.Logger {
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Any("roots", cfg.Catalog.Roots),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("backup_dir", cfg.Backup.Dir),
		slog.Int("columns", cfg.Grid.Columns),
		slog.Int("rows", cfg.Grid.Rows),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(500 * time.Millisecond)
	defer broker.Close()

	rt := open(ctx, cfg, logger, broker)
	defer rt.close()

	apiRouter := api.NewRouter(rt.svc, rt.backupProvider(), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		probeCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.svc.Snapshot(probeCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","subscribers":%d}`, broker.ClientCount())
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher.
	if cfg.Watcher.Enabled {
		g.Go(func() error {
			roots := cfg.Catalog.ExpandedRoots()
			pipeline := watcher.NewPipeline(gCtx, rt.svc, watcher.Options{
				Roots:      roots,
				Debounce:   cfg.Watcher.Debounce,
				Threshold:  cfg.Watcher.FullRescanThreshold,
				BundlePath: rt.scanner.BundlePath,
				Logger:     logger,
			})
			if err := watcher.Watch(gCtx, pipeline, roots, cfg.Catalog.BundleSuffix, logger); err != nil {
				logger.Warn("watcher disabled", slog.String("error", err.Error()))
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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if err := rt.svc.Flush(shutdownCtx); err != nil {
			logger.Warn("final save failed", slog.String("error", err.Error()))
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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")
