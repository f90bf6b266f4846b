package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// Event — событие платформенной операции.
type Event struct {
	// Operation — имя операции ("create_and_execute_task", ...).
	Operation string `json:"operation"`

	// Service — имя сервиса, породившего событие.
	Service string `json:"service"`

	// Success — исход операции.
	Success bool `json:"success"`

	// Fields — дополнительные атрибуты события.
	Fields map[string]any `json:"fields,omitempty"`

	// Timestamp — время события.
	Timestamp time.Time `json:"timestamp"`
}

// Sink — приёмник событий платформенных операций.
//
// Разрешается один раз при конструировании сервиса.
// Отсутствующий sink заменяется на Noop — сервис обязан
// корректно работать без телеметрии.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// Noop — sink, отбрасывающий события.
type Noop struct{}

// Record ничего не делает.
func (Noop) Record(context.Context, Event) {}

// LogSink пишет события в structured log и инкрементирует
// счётчик операций.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink создаёт LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record логирует событие и обновляет метрики.
func (s *LogSink) Record(ctx context.Context, event Event) {
	result := "success"
	if !event.Success {
		result = "failure"
	}
	OperationsTotal.WithLabelValues(event.Operation, result).Inc()

	s.logger.Debug("operation event",
		"operation", event.Operation,
		"service", event.Service,
		"success", event.Success,
		"fields", event.Fields,
	)
}
