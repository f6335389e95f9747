package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"videoserver/internal/activity"
	"videoserver/internal/config"
	"videoserver/internal/handlers"
	"videoserver/internal/jobs"
	"videoserver/internal/registry"
	"videoserver/internal/service"
	"videoserver/internal/storage"
	"videoserver/internal/transcode"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.Environment == "development" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	reg, cleanup, err := buildRegistry(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize registry")
	}
	defer cleanup()

	// Flags left set by a crash would block their projects forever.
	ctx := context.Background()
	if n, err := reg.ResetStaleProcessing(ctx); err != nil {
		log.WithError(err).Fatal("failed to reset stale processing flags")
	} else if n > 0 {
		log.WithField("count", n).Warn("reset stale processing flags from a previous run")
	}

	store, err := buildStorage(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage")
	}

	events := buildEvents(cfg, log)
	defer events.Close()

	editor := transcode.NewFFmpeg(cfg.FFmpegThreads, cfg.FFmpegPreset, log)
	runner := jobs.NewRunner(reg, cfg.MaxRetries, time.Second, log)
	pool := jobs.NewPool(cfg.Workers, cfg.QueueSize, runner, log)
	pool.Start(ctx)

	svc := service.New(reg, store, editor, pool, events, cfg, log)
	router := handlers.NewRouter(svc, cfg, log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	pool.Stop()
	log.Info("shutdown complete")
}

func buildRegistry(cfg *config.Config, log *logrus.Logger) (registry.Registry, func(), error) {
	switch cfg.RegistryBackend {
	case "memory":
		log.Warn("using in-memory registry, state will not survive restarts")
		return registry.NewMemory(), func() {}, nil
	case "postgres":
		migrator, err := registry.NewMigrator(cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		if err := migrator.Run(); err != nil {
			migrator.Close()
			return nil, nil, err
		}
		migrator.Close()

		pg, err := registry.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	}
	return nil, nil, errors.New("unknown registry backend " + cfg.RegistryBackend)
}

func buildStorage(cfg *config.Config, log *logrus.Logger) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case "fs":
		return storage.NewFS(cfg.FSStoragePath, log), nil
	case "supabase":
		return storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket, log), nil
	}
	return nil, errors.New("unknown storage backend " + cfg.StorageBackend)
}

func buildEvents(cfg *config.Config, log *logrus.Logger) activity.Publisher {
	if cfg.AMQPURL == "" {
		log.Info("no broker configured, activity events disabled")
		return activity.NewNoop()
	}
	pub, err := activity.NewAMQP(cfg.AMQPURL, cfg.ActivityQueue, log)
	if err != nil {
		log.WithError(err).Warn("failed to connect to broker, activity events disabled")
		return activity.NewNoop()
	}
	return pub
}
