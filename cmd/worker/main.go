package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/app"
	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/logger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/tasks"
)

// worker promotes elapsed appointments to completed on a ticker and, when the
// release queue is enabled, processes slot release retries.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("worker starting up", zap.String("env", cfg.Env), zap.Duration("interval", cfg.WorkerInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	var srv *asynq.Server
	if app.ReleaseQueueEnabled(cfg) {
		srv = tasks.NewServer(app.QueueRedisOpt(cfg), log)
		if err := srv.Start(tasks.NewServeMux(a.Service, log)); err != nil {
			log.Fatal("release queue server failed to start", zap.Error(err))
		}
		log.Info("release queue server started", zap.Int("db", cfg.ReleaseQueueDB))
	}

	// Run once at startup
	runOnce(rootCtx, a.Service, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping worker")
			if srv != nil {
				srv.Shutdown()
			}
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Service, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompleteElapsedAppointments(runCtx)
	if err != nil {
		log.Error("completion run error", zap.Error(err))
		return
	}
	log.Info("completion run complete", zap.Int("completed", n), zap.Duration("took", time.Since(start)))
}
