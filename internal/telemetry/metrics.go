package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики Conductor.
//
// Регистрируются в default registry и экспортируются
// через promhttp.Handler() в каждом бинарнике.
var (
	// OperationsTotal — количество операций композиционного сервиса.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "operations_total",
		Help:      "Total composition service operations by result.",
	}, []string{"operation", "result"})

	// ActiveAllocations — текущее количество активных выделений
	// ресурсов. Значение процесс-локальное: при общем Redis-ledger
	// его пересинхронизирует цикл Manager.MonitorResources.
	ActiveAllocations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conductor",
		Name:      "active_allocations",
		Help:      "Number of active resource allocations (ALLOCATED or RESERVED).",
	})

	// AllocationsTotal — количество запросов на выделение по исходу.
	AllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "allocations_total",
		Help:      "Resource allocation requests by outcome.",
	}, []string{"outcome"})

	// TasksSubmitted — количество задач, отправленных брокеру.
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "tasks_submitted_total",
		Help:      "Tasks submitted to the broker by queue.",
	}, []string{"queue"})

	// ExecutionsTotal — количество выполнений workflow по финальному статусу.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "workflow_executions_total",
		Help:      "Workflow executions by terminal status.",
	}, []string{"status"})

	// ExecutionDuration — длительность выполнения workflow.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conductor",
		Name:      "workflow_execution_duration_seconds",
		Help:      "Duration of workflow executions.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	// ReapedAllocations — количество выделений, возвращённых reaper'ом.
	ReapedAllocations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "reaped_allocations_total",
		Help:      "Expired allocations swept back to AVAILABLE.",
	})
)
