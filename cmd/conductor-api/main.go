package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Conductor/internal/api"
	"github.com/shaiso/Conductor/internal/broker"
	"github.com/shaiso/Conductor/internal/conductor"
	"github.com/shaiso/Conductor/internal/execution"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/resource"
	"github.com/shaiso/Conductor/internal/sysinfo"
	"github.com/shaiso/Conductor/internal/taskqueue"
	"github.com/shaiso/Conductor/internal/telemetry"
	"github.com/shaiso/Conductor/internal/worker"
	"github.com/shaiso/Conductor/internal/workflow"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conductor-api")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Источник системных метрик: /proc, либо фиксированные нули
	// в окружениях без procfs.
	var source sysinfo.Source
	if procfs, err := sysinfo.NewProcFS(sysinfo.ProcFSConfig{}); err == nil {
		source = procfs
	} else {
		logger.Warn("procfs not available, using static source", "error", err)
		source = sysinfo.NewStatic(sysinfo.Usage{})
	}

	// Ledger выделений: Redis для разделяемого состояния, иначе память.
	var ledger resource.Ledger
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		ledger = resource.NewRedisLedger(redis.NewClient(opts))
		logger.Info("using redis allocation ledger")
	}

	resources, err := resource.NewManager(resource.Config{
		Source:        source,
		Ledger:        ledger,
		EnforceLimits: os.Getenv("ENFORCE_LIMITS") == "true",
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to create resource manager", "error", err)
		os.Exit(1)
	}

	// Брокер задач: RabbitMQ, либо in-memory для разработки.
	var taskBroker broker.Broker
	if mqURL := os.Getenv("RABBITMQ_URL"); mqURL != "" {
		conn, err := mq.NewConnection(mqURL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn, []string{taskqueue.DefaultQueue}); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}

		amqpBroker := mq.NewAMQPBroker(conn, logger)
		go func() {
			if err := amqpBroker.ConsumeEvents(ctx); err != nil && ctx.Err() == nil {
				logger.Error("event consumer stopped", "error", err)
			}
		}()
		taskBroker = amqpBroker
		logger.Info("RabbitMQ connected")
	} else {
		logger.Warn("RABBITMQ_URL not set, using in-memory broker")
		taskBroker = broker.NewMemory()
	}

	registry := taskqueue.NewRegistry()
	worker.RegisterBuiltins(registry)

	tasks, err := taskqueue.New(taskqueue.Config{
		Broker:   taskBroker,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create task queue", "error", err)
		os.Exit(1)
	}

	// Граф-хранилище: PostgreSQL, либо память.
	var graphStore graph.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := graph.NewPG(pool)
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("failed to migrate graph schema", "error", err)
			os.Exit(1)
		}
		graphStore = pg
		logger.Info("connected to database")
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory graph store")
		graphStore = graph.NewMemory()
	}

	workflows := workflow.NewStore(workflow.Config{Graph: graphStore, Logger: logger})

	executions, err := execution.NewTracker(execution.Config{
		Workflows: workflows,
		Graph:     graphStore,
		Executor:  worker.NewNodeExecutor(registry),
		Async:     true,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create execution tracker", "error", err)
		os.Exit(1)
	}

	orchestrator, err := conductor.New(conductor.Config{
		Resources:  resources,
		Tasks:      tasks,
		Workflows:  workflows,
		Executions: executions,
		Sink:       telemetry.NewLogSink(logger),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create conductor", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(api.Config{
		Conductor:  orchestrator,
		Resources:  resources,
		Tasks:      tasks,
		Workflows:  workflows,
		Executions: executions,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := orchestrator.HealthCheck(r.Context())
		if health["healthy"] != true {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "uptime %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
