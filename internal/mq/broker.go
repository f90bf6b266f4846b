package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conductor/internal/broker"
	"github.com/shaiso/Conductor/internal/domain"
)

// AMQPBroker — реализация broker.Broker поверх RabbitMQ.
//
// RabbitMQ не хранит результаты задач, поэтому брокер ведёт
// локальную карту состояний, питаемую статусными событиями из
// очереди conductor.events (запускается через ConsumeEvents).
// Приоритет — через x-max-priority, отложенный запуск — через
// очередь с per-message TTL, отзыв — fanout-команда воркерам.
type AMQPBroker struct {
	conn   *Connection
	pub    *Publisher
	logger *slog.Logger

	mu      sync.RWMutex
	results map[string]*broker.RawResult
	tasks   map[string]domain.TaskRequest
	workers map[string]broker.WorkerStat
}

// NewAMQPBroker создаёт брокер поверх установленного соединения.
// Топология должна быть объявлена заранее (SetupTopology).
func NewAMQPBroker(conn *Connection, logger *slog.Logger) *AMQPBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPBroker{
		conn:    conn,
		pub:     NewPublisher(conn, logger),
		logger:  logger.With("component", "amqp_broker"),
		results: make(map[string]*broker.RawResult),
		tasks:   make(map[string]domain.TaskRequest),
		workers: make(map[string]broker.WorkerStat),
	}
}

// Submit публикует задачу с приоритетом и отложенной доставкой.
func (b *AMQPBroker) Submit(ctx context.Context, req domain.TaskRequest) (string, error) {
	taskID := uuid.New().String()
	payload := TaskSubmitPayload{
		TaskID:     taskID,
		TaskName:   req.TaskName,
		Args:       req.Args,
		Kwargs:     req.Kwargs,
		Queue:      req.Queue,
		MaxRetries: req.MaxRetries,
		TimeoutSec: req.TimeoutSec,
		Metadata:   req.Metadata,
	}

	delay := submitDelay(req)
	var err error
	if delay > 0 {
		err = b.pub.PublishTaskDelayed(ctx, payload, req.Priority, delay)
	} else {
		err = b.pub.PublishTaskSubmit(ctx, payload, req.Priority)
	}
	if err != nil {
		return "", fmt.Errorf("submit task %s: %w", req.TaskName, err)
	}

	b.mu.Lock()
	b.tasks[taskID] = req
	b.results[taskID] = &broker.RawResult{
		TaskID: taskID,
		Status: domain.BrokerStatusPending,
	}
	b.mu.Unlock()

	return taskID, nil
}

func submitDelay(req domain.TaskRequest) time.Duration {
	if req.ETA != nil {
		if d := time.Until(*req.ETA); d > 0 {
			return d
		}
		return 0
	}
	if req.Countdown > 0 {
		return time.Duration(req.Countdown) * time.Second
	}
	return 0
}

// Status возвращает нативный статус задачи.
func (b *AMQPBroker) Status(_ context.Context, taskID string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result, ok := b.results[taskID]
	if !ok {
		return "", broker.ErrTaskNotFound
	}
	return result.Status, nil
}

// Result возвращает копию результата задачи.
func (b *AMQPBroker) Result(_ context.Context, taskID string) (*broker.RawResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result, ok := b.results[taskID]
	if !ok {
		return nil, broker.ErrTaskNotFound
	}
	cp := *result
	return &cp, nil
}

// Revoke рассылает команду отзыва и помечает задачу REVOKED.
// Best-effort: воркер, уже выполняющий тело задачи, останавливается
// только на своих контрольных точках.
func (b *AMQPBroker) Revoke(ctx context.Context, taskID string, terminate bool) error {
	if err := b.pub.PublishRevoke(ctx, RevokePayload{TaskID: taskID, Terminate: terminate}); err != nil {
		return fmt.Errorf("publish revoke for %s: %w", taskID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	result, ok := b.results[taskID]
	if !ok {
		return broker.ErrTaskNotFound
	}
	result.Status = domain.BrokerStatusRevoked
	now := time.Now()
	result.CompletedAt = &now
	return nil
}

// ActiveTasks возвращает задачи в статусе STARTED.
func (b *AMQPBroker) ActiveTasks(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []string
	for id, result := range b.results {
		if result.Status == domain.BrokerStatusStarted {
			out = append(out, id)
		}
	}
	return out, nil
}

// ScheduledTasks возвращает PENDING задачи с ETA/Countdown в будущем.
func (b *AMQPBroker) ScheduledTasks(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := time.Now()
	var out []string
	for id, result := range b.results {
		if result.Status != domain.BrokerStatusPending {
			continue
		}
		req := b.tasks[id]
		if req.ETA != nil && req.ETA.After(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

// WorkerStats возвращает последние heartbeat воркеров.
func (b *AMQPBroker) WorkerStats(_ context.Context) (map[string]broker.WorkerStat, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]broker.WorkerStat, len(b.workers))
	for name, stat := range b.workers {
		out[name] = stat
	}
	return out, nil
}

// QueueLength возвращает глубину рабочей очереди.
func (b *AMQPBroker) QueueLength(ctx context.Context, queue string) (int, error) {
	var length int
	err := b.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclarePassive(TaskQueueName(queue), true, false, false, false, amqp.Table{
			"x-max-priority":            int32(maxPriority),
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
		})
		if err != nil {
			return fmt.Errorf("inspect queue %s: %w", queue, err)
		}
		length = q.Messages
		return nil
	})
	return length, err
}

// Purge удаляет все ожидающие сообщения рабочей очереди.
func (b *AMQPBroker) Purge(ctx context.Context, queue string) (int, error) {
	var purged int
	err := b.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		n, err := ch.QueuePurge(TaskQueueName(queue), false)
		if err != nil {
			return fmt.Errorf("purge queue %s: %w", queue, err)
		}
		purged = n
		return nil
	})
	return purged, err
}

// ConsumeEvents запускает потребление статусных событий.
// Блокирует до отмены контекста.
func (b *AMQPBroker) ConsumeEvents(ctx context.Context) error {
	consumer := NewConsumer(b.conn, b.logger, ConsumerConfig{
		Queue:    QueueEvents,
		Handler:  b.handleEvent,
		Prefetch: 50,
	})
	return consumer.Start(ctx)
}

// handleEvent применяет статусное событие к локальному состоянию.
// Нечитаемые события отбрасываются с логом: у очереди событий нет
// DLQ, а requeue зациклил бы битое сообщение.
func (b *AMQPBroker) handleEvent(_ context.Context, msg *Message) error {
	switch msg.Type {
	case MessageTypeTaskEvent:
		payload, err := ParsePayload[TaskEventPayload](msg)
		if err != nil {
			b.logger.Error("malformed task event dropped", "message_id", msg.ID, "error", err)
			return nil
		}
		b.applyTaskEvent(payload, msg.Timestamp)

	case MessageTypeWorkerEvent:
		payload, err := ParsePayload[WorkerEventPayload](msg)
		if err != nil {
			b.logger.Error("malformed worker event dropped", "message_id", msg.ID, "error", err)
			return nil
		}
		b.mu.Lock()
		b.workers[payload.Worker] = broker.WorkerStat{
			Name:      payload.Worker,
			Active:    payload.Active,
			Processed: payload.Processed,
			Queues:    payload.Queues,
			SeenAt:    msg.Timestamp,
		}
		b.mu.Unlock()

	default:
		b.logger.Warn("unexpected event type", "type", msg.Type)
	}
	return nil
}

func (b *AMQPBroker) applyTaskEvent(payload TaskEventPayload, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result, ok := b.results[payload.TaskID]
	if !ok {
		result = &broker.RawResult{TaskID: payload.TaskID}
		b.results[payload.TaskID] = result
	}

	// Отозванная задача остаётся REVOKED, запоздалые события
	// воркера её не воскрешают.
	if result.Status == domain.BrokerStatusRevoked {
		return
	}

	result.Status = payload.Status
	result.RetryCount = payload.RetryCount
	switch payload.Status {
	case domain.BrokerStatusStarted:
		result.StartedAt = &at
	case domain.BrokerStatusSuccess, domain.BrokerStatusFailure:
		result.Result = payload.Result
		result.Error = payload.Error
		result.CompletedAt = &at
	}
}
