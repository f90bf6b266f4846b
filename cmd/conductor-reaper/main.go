// Conductor Reaper — фоновый сборщик просроченных выделений.
//
// Срок действия выделения сам по себе ничего не освобождает:
// reaper по расписанию переводит просроченные активные выделения
// обратно в AVAILABLE и параллельно сэмплирует системные метрики
// в историю.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Conductor/internal/resource"
	"github.com/shaiso/Conductor/internal/sysinfo"
	"github.com/shaiso/Conductor/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conductor-reaper")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Общий ledger обязателен: reaper имеет смысл только над
	// состоянием, которое видят остальные процессы.
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		logger.Error("REDIS_URL is required")
		os.Exit(1)
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	ledger := resource.NewRedisLedger(redis.NewClient(opts))

	var source sysinfo.Source
	if procfs, err := sysinfo.NewProcFS(sysinfo.ProcFSConfig{}); err == nil {
		source = procfs
	} else {
		logger.Warn("procfs not available, using static source", "error", err)
		source = sysinfo.NewStatic(sysinfo.Usage{})
	}

	manager, err := resource.NewManager(resource.Config{
		Source: source,
		Ledger: ledger,
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create resource manager", "error", err)
		os.Exit(1)
	}

	reaper := resource.NewReaper(ledger, logger)

	schedule := os.Getenv("REAPER_SCHEDULE")
	if schedule == "" {
		schedule = "@every 30s"
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(schedule, func() {
		reaped, err := reaper.Sweep(ctx)
		if err != nil {
			logger.Error("sweep failed", "error", err)
			return
		}
		if reaped > 0 {
			logger.Info("sweep complete", "reaped", reaped)
		}
	})
	if err != nil {
		logger.Error("invalid REAPER_SCHEDULE", "schedule", schedule, "error", err)
		os.Exit(1)
	}
	_, err = scheduler.AddFunc("@every 1m", func() {
		if _, err := manager.MonitorResources(ctx, 0, time.Second); err != nil && ctx.Err() == nil {
			logger.Warn("resource sampling failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("failed to schedule sampling", "error", err)
		os.Exit(1)
	}

	scheduler.Start()
	logger.Info("reaper scheduled", "schedule", schedule)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("REAPER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("conductor-reaper stopped")
}
