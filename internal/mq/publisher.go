package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conductor/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTaskSubmit  MessageType = "task.submit"
	MessageTypeTaskEvent   MessageType = "task.event"
	MessageTypeWorkerEvent MessageType = "worker.event"
	MessageTypeRevoke      MessageType = "task.revoke"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TaskSubmitPayload — задача, отправленная воркерам.
type TaskSubmitPayload struct {
	TaskID     string         `json:"task_id"`
	TaskName   string         `json:"task_name"`
	Args       []any          `json:"args,omitempty"`
	Kwargs     map[string]any `json:"kwargs,omitempty"`
	Queue      string         `json:"queue"`
	MaxRetries int            `json:"max_retries,omitempty"`
	TimeoutSec int            `json:"timeout_sec,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TaskEventPayload — статусное событие задачи от воркера.
// Status — нативный статус брокера (STARTED, SUCCESS, FAILURE, RETRY).
type TaskEventPayload struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	Worker     string `json:"worker"`
}

// WorkerEventPayload — heartbeat воркера.
type WorkerEventPayload struct {
	Worker    string   `json:"worker"`
	Active    int      `json:"active"`
	Processed int      `json:"processed"`
	Queues    []string `json:"queues"`
}

// RevokePayload — команда отзыва задачи.
type RevokePayload struct {
	TaskID    string `json:"task_id"`
	Terminate bool   `json:"terminate"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, opts ...PublishOption) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         body,
	}
	for _, opt := range opts {
		opt(&pub)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, pub)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishOption настраивает свойства публикуемого сообщения.
type PublishOption func(*amqp.Publishing)

// WithPriority выставляет AMQP приоритет сообщения.
func WithPriority(priority uint8) PublishOption {
	return func(pub *amqp.Publishing) {
		pub.Priority = priority
	}
}

// WithExpiration выставляет per-message TTL.
func WithExpiration(ttl time.Duration) PublishOption {
	return func(pub *amqp.Publishing) {
		pub.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}
}

// PublishTaskSubmit публикует задачу в рабочую очередь.
// Потребитель: Worker.
func (p *Publisher) PublishTaskSubmit(ctx context.Context, payload TaskSubmitPayload, priority domain.TaskPriority) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskSubmit,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKey(payload.Queue), msg,
		WithPriority(priority.AMQPPriority()))
}

// PublishTaskDelayed кладёт задачу в очередь отложенной доставки:
// по истечении delay сообщение dead-letter'ится в рабочую очередь.
func (p *Publisher) PublishTaskDelayed(ctx context.Context, payload TaskSubmitPayload, priority domain.TaskPriority, delay time.Duration) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskSubmit,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, "", DelayQueueName(payload.Queue), false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Priority:     priority.AMQPPriority(),
				Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish delayed to %s: %w", DelayQueueName(payload.Queue), err)
		}

		p.logger.Debug("published delayed task",
			"task_id", payload.TaskID,
			"queue", payload.Queue,
			"delay", delay,
		)

		return nil
	})
}

// PublishTaskEvent публикует статусное событие задачи.
// Потребитель: AMQPBroker.
func (p *Publisher) PublishTaskEvent(ctx context.Context, payload TaskEventPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskEvent,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyTaskEvent, msg)
}

// PublishWorkerEvent публикует heartbeat воркера.
// Потребитель: AMQPBroker.
func (p *Publisher) PublishWorkerEvent(ctx context.Context, payload WorkerEventPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeWorkerEvent,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyWorkerEvent, msg)
}

// PublishRevoke рассылает команду отзыва задачи всем воркерам.
func (p *Publisher) PublishRevoke(ctx context.Context, payload RevokePayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRevoke,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeControl, "", msg)
}
