package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/config"
	"github.com/DoyleJ11/rodizio-backend/internal/httpapi"
	"github.com/DoyleJ11/rodizio-backend/internal/hub"
	"github.com/DoyleJ11/rodizio-backend/internal/lobby"
	"github.com/DoyleJ11/rodizio-backend/internal/logging"
	"github.com/DoyleJ11/rodizio-backend/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.New(), cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// The hub outlives ctx so lobbies can flush during shutdown.
	h := hub.NewHub(context.Background(), lobby.Config{
		Limits:      cfg.Roster.Limits(),
		Store:       st,
		Logger:      logger,
		RevealDelay: cfg.Roster.RevealDelay,
		IdleTimeout: cfg.Roster.IdleTimeout,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           httpapi.SetupRoutes(h, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		done := make(chan struct{})
		h.Inbox() <- hub.ShutdownHub{Done: done}
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("lobbies did not finish saving before the shutdown timeout")
		}
		return err
	})
	return g.Wait()
}

// openStore returns the configured roster store and a function releasing it.
// The memory driver keeps rosters only for the life of the process.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (lobby.Store, func(), error) {
	if cfg.Driver == store.DriverMemory {
		return store.NewMemoryStore(), func() {}, nil
	}

	if cfg.Driver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := store.Connect(cfg.Driver, cfg.DSN, cfg.ConnectTimeout, logger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	gs := store.NewGormStore(db)
	if err := gs.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	logger.Info("store ready", zap.String("driver", cfg.Driver))
	return gs, closeDB, nil
}
