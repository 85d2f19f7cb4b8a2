package commands

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/veilmatch/internal/api"
	"github.com/MikeSquared-Agency/veilmatch/internal/bus"
	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
	"github.com/MikeSquared-Agency/veilmatch/internal/metrics"
	"github.com/MikeSquared-Agency/veilmatch/internal/reveal"
	"github.com/MikeSquared-Agency/veilmatch/internal/service"
	"github.com/MikeSquared-Agency/veilmatch/internal/store"
)

// backend is what serve needs from either store implementation.
type backend interface {
	service.Store
	eventlog.Appender
	Migrate(ctx context.Context) error
	Close()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and bus consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func openBackend(ctx context.Context) (backend, string, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(), "memory", nil
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, "", err
	}
	slog.Info("database connected")
	return db, "postgres", nil
}

func serve(ctx context.Context) error {
	slog.Info("veilmatch starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Store
	db, storeKind, err := openBackend(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// NATS (optional: events are still logged without it)
	var (
		busClient *bus.Client
		publisher eventlog.Publisher
	)
	if cfg.NatsURL != "" {
		busClient, err = bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer busClient.Close()
		publisher = busClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, events will not be published")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	grids, err := reveal.NewGridCache(cfg.GridCacheSize)
	if err != nil {
		return err
	}
	m.RegisterGridCache(grids.Stats)

	recorder := eventlog.NewRecorder(db, publisher, slog.Default())
	svc, err := service.New(db, recorder, grids, m, service.Options{
		InitialTrust:  cfg.InitialTrust,
		AvatarBaseURL: cfg.AvatarBaseURL,
		GridSize:      cfg.GridSize,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	var busConnected func() bool
	if busClient != nil {
		if err := busClient.Subscribe(bus.SubjectTrustSignal, svc.HandleTrustSignal); err != nil {
			return fmt.Errorf("subscribe to trust signals: %w", err)
		}
		busConnected = busClient.Connected
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, svc, api.Options{
		StoreKind:    storeKind,
		BusConnected: busConnected,
		Gatherer:     reg,
	}, slog.Default())
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	if busClient != nil {
		if err := busClient.Publish(bus.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"store":     storeKind,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("veilmatch ready", "port", cfg.Port, "store", storeKind)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	slog.Info("veilmatch stopped")
	return nil
}
