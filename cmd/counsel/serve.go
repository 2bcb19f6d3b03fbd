package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/counsel/internal/api"
	"github.com/MikeSquared-Agency/counsel/internal/archive"
	"github.com/MikeSquared-Agency/counsel/internal/config"
	"github.com/MikeSquared-Agency/counsel/internal/hermes"
	"github.com/MikeSquared-Agency/counsel/internal/memory"
	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
	"github.com/MikeSquared-Agency/counsel/internal/processor"
	"github.com/MikeSquared-Agency/counsel/internal/slack"
	"github.com/MikeSquared-Agency/counsel/internal/store"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the NATS question intake",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "create missing database tables on startup")
	return cmd
}

func serve(cfg config.Config, migrate bool) error {
	logger := setupLogging(cfg.LogLevel)
	logger.Info("counsel starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	deps := eng.deps
	var (
		history    api.RunHistory
		runArchive api.RunArchive
	)

	// Database (optional: without it there is no run history or user memory)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if migrate {
			if err := db.EnsureSchema(ctx); err != nil {
				return err
			}
		}
		deps.Persisters = append(deps.Persisters, db)
		deps.Memory = memory.New(db, eng.cache, logger)
		history = db
		logger.Info("database connected")
	} else {
		logger.Warn("DATABASE_URL not set, runs will not be stored")
	}

	// Archive
	if cfg.MongoURI != "" {
		arc, disconnect, err := archive.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return err
		}
		defer disconnect(context.Background())
		deps.Persisters = append(deps.Persisters, arc)
		runArchive = arc
		logger.Info("archive connected", "database", cfg.MongoDB)
	}

	// Slack review loop
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		deps.Reviewer = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		logger.Info("slack reviewer ready", "channel", cfg.SlackChannel)
	} else {
		logger.Warn("slack not configured, running without review loop")
	}

	// NATS/Hermes
	var progress orchestrator.Sink
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
	if err != nil {
		logger.Warn("NATS unavailable, bus intake disabled", "error", err)
	} else {
		defer hermesClient.Close()
		progress = hermes.NewProgressSink(hermesClient, logger)
		deps.Persisters = append(deps.Persisters, hermes.NewAnnouncer(hermesClient))
		logger.Info("NATS connected", "url", cfg.NatsURL)
	}

	pipeline := orchestrator.New(deps, logger)

	var proc *processor.Processor
	if hermesClient != nil {
		proc = processor.New(pipeline, progress, processor.DefaultMaxInFlight, logger)
		if err := hermesClient.Subscribe(hermes.SubjectQuestionAsked, proc.HandleQuestionAsked); err != nil {
			proc.Close()
			return err
		}
	}

	srv := api.NewServer(api.Options{
		Port:     cfg.Port,
		Runner:   pipeline,
		Cache:    eng.cache,
		History:  history,
		Archive:  runArchive,
		Secret:   cfg.APIToken,
		Progress: progress,
		Logger:   logger,
	})

	logger.Info("counsel ready", "port", cfg.Port)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server error", "error", err)
		return err
	}

	logger.Info("shutting down")
	if proc != nil {
		hermesClient.Unsubscribe()
		waitFor(proc.Close, 30*time.Second, logger)
	}
	logger.Info("counsel stopped")
	return nil
}

// waitFor runs fn but gives up after d.
func waitFor(fn func(), d time.Duration, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		logger.Warn("gave up waiting for in-flight runs", "after", d)
	}
}
