package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/commonstack/trusthub/internal/access"
	"github.com/commonstack/trusthub/internal/accountability"
	"github.com/commonstack/trusthub/internal/api"
	"github.com/commonstack/trusthub/internal/bus"
	"github.com/commonstack/trusthub/internal/config"
	"github.com/commonstack/trusthub/internal/decay"
	"github.com/commonstack/trusthub/internal/events"
	"github.com/commonstack/trusthub/internal/notify"
	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
	"github.com/commonstack/trusthub/internal/trust"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	slog.Info("trusthub starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// NATS
	busClient, err := bus.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	notifier := notify.New(busClient, slog.Default())

	// Platform configuration, cached over the store
	configs := platformconfig.NewService(db, slog.Default())

	// Core components
	calculator := trust.NewCalculator(db, configs, slog.Default())
	propagator := accountability.NewPropagator(db, configs, notifier, slog.Default())
	gate := access.NewGate(db, configs, slog.Default())
	decayJob := decay.NewJob(db, configs, notifier, slog.Default())

	// Behavioral event intake
	consumer := events.NewConsumer(db, calculator, propagator, slog.Default())
	subscriptions := map[string]func(string, []byte){
		bus.SubjectActivityRecorded: consumer.HandleActivityRecorded,
		bus.SubjectMomentReceived:   consumer.HandleMomentReceived,
		bus.SubjectVouchApproved:    consumer.HandleVouchApproved,
		bus.SubjectConductReported:  consumer.HandleConductReported,
	}
	for subject, handler := range subscriptions {
		if err := busClient.Subscribe(subject, handler); err != nil {
			slog.Error("failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	// Scheduled work: weekly decay, periodic accountability sweep
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.DecaySchedule, func() {
		if _, err := decayJob.Run(ctx); err != nil {
			slog.Error("scheduled decay run failed", "error", err)
		}
	}); err != nil {
		slog.Error("invalid decay schedule", "schedule", cfg.DecaySchedule, "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		processed, failed, err := propagator.ProcessUnprocessed(ctx)
		if err != nil {
			slog.Error("accountability sweep failed", "error", err)
			return
		}
		if processed > 0 || failed > 0 {
			slog.Info("accountability sweep finished", "processed", processed, "failed", failed)
		}
	}); err != nil {
		slog.Error("invalid sweep schedule", "schedule", cfg.SweepSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Calculator: calculator,
		Propagator: propagator,
		Gate:       gate,
		Configs:    configs,
		Decay:      decayJob,
		Reader:     db,
	}, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce readiness
	if err := busClient.Publish(bus.SubjectServiceReady, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish readiness", "error", err)
	}

	slog.Info("trusthub ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("trusthub stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
