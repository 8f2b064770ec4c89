package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-pipeline/internal/caption"
	"image-pipeline/internal/models"
	"image-pipeline/internal/pipeline"
	"image-pipeline/internal/queue"
	"image-pipeline/internal/server"
	"image-pipeline/internal/storage"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewStorage(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to init storage", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	captioner := caption.NewProvider(cfg.Caption, log)
	proc := pipeline.New(db, captioner, cfg.StoragePath, log)

	// Single background worker draining the in-process job queue
	jobs := queue.New()
	worker := queue.NewWorker(jobs, proc.Process, log)

	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(workerDone)
	}()

	srv := server.NewServer(cfg, db, jobs, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("failed to start server", "err", err)
			os.Exit(1)
		}
	}()
	log.Info("server started", "addr", cfg.ServerAddr)

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("server shutdown error", "err", err)
	}

	jobs.Close()
	<-workerDone
	cancel()
}
