package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/taskqueue"
)

const defaultHeartbeatInterval = 30 * time.Second

// Config — конфигурация воркера.
type Config struct {
	// Conn — подключение к RabbitMQ. Обязательно.
	Conn *mq.Connection

	// Registry — реестр handler'ов задач. Обязателен.
	Registry *taskqueue.Registry

	// Name — имя воркера. По умолчанию hostname + суффикс.
	Name string

	// Queues — логические очереди для потребления.
	// По умолчанию только очередь default.
	Queues []string

	// Concurrency — prefetch на очередь.
	Concurrency int

	// HeartbeatInterval — период heartbeat событий.
	HeartbeatInterval time.Duration

	Logger *slog.Logger
}

// Worker потребляет задачи из очередей tasks.<queue>, выполняет
// зарегистрированные handler'ы и публикует статусные события
// (STARTED, SUCCESS, FAILURE, RETRY) в conductor.events.
//
// Команды отзыва приходят через fanout conductor.control: уже
// выполняющаяся задача отменяется через контекст (best-effort),
// ещё не доставленная — пропускается при получении.
type Worker struct {
	conn     *mq.Connection
	pub      *mq.Publisher
	registry *taskqueue.Registry
	name     string
	queues   []string
	prefetch int
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	revoked map[string]bool

	active    atomic.Int64
	processed atomic.Int64
}

// New создаёт воркер.
func New(cfg Config) (*Worker, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("worker: Conn is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("worker: Registry is required")
	}
	if cfg.Name == "" {
		host, _ := os.Hostname()
		cfg.Name = fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{taskqueue.DefaultQueue}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	logger := cfg.Logger.With("component", "worker", "worker", cfg.Name)
	return &Worker{
		conn:     cfg.Conn,
		pub:      mq.NewPublisher(cfg.Conn, logger),
		registry: cfg.Registry,
		name:     cfg.Name,
		queues:   cfg.Queues,
		prefetch: cfg.Concurrency,
		interval: cfg.HeartbeatInterval,
		logger:   logger,
		running:  make(map[string]context.CancelFunc),
		revoked:  make(map[string]bool),
	}, nil
}

// Run объявляет топологию и запускает потребление задач,
// команд управления и цикл heartbeat. Блокируется до отмены ctx.
func (w *Worker) Run(ctx context.Context) error {
	if err := mq.SetupTopology(ctx, w.conn, w.queues); err != nil {
		return fmt.Errorf("setup topology: %w", err)
	}

	controlQueue, err := w.declareControlQueue(ctx)
	if err != nil {
		return fmt.Errorf("declare control queue: %w", err)
	}

	var wg sync.WaitGroup
	for _, queue := range w.queues {
		consumer := mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    mq.TaskQueueName(queue),
			Handler:  w.handleTask,
			Prefetch: w.prefetch,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("task consumer stopped", "error", err)
			}
		}()
	}

	control := mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:   controlQueue,
		Handler: w.handleControl,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := control.Start(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("control consumer stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.heartbeatLoop(ctx)
	}()

	w.logger.Info("worker started", "queues", w.queues, "concurrency", w.prefetch)
	wg.Wait()
	return ctx.Err()
}

// declareControlQueue создаёт персональную auto-delete очередь
// воркера и привязывает её к fanout обменнику управления.
func (w *Worker) declareControlQueue(ctx context.Context) (string, error) {
	name := "control." + w.name
	err := w.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(name, false, true, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
		if err := ch.QueueBind(name, "", string(mq.ExchangeControl), false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", name, err)
		}
		return nil
	})
	return name, err
}

// handleTask обрабатывает одно задание из рабочей очереди.
//
// Ошибки handler'а задачи не возвращаются consumer'у: повторная
// доставка управляется здесь через RETRY события и повторную
// публикацию, иначе nack зациклил бы сообщение. Нечитаемый payload —
// единственный случай mq.ErrReject: такое сообщение уходит в DLQ.
func (w *Worker) handleTask(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.TaskSubmitPayload](msg)
	if err != nil {
		w.logger.Error("malformed task payload", "message_id", msg.ID, "error", err)
		return fmt.Errorf("%w: %v", mq.ErrReject, err)
	}

	if w.consumeRevocation(payload.TaskID) {
		w.logger.Info("skipping revoked task", "task_id", payload.TaskID)
		return nil
	}

	w.active.Add(1)
	defer w.active.Add(-1)
	defer w.processed.Add(1)

	retryCount := retryCountOf(payload)
	w.publishEvent(ctx, mq.TaskEventPayload{
		TaskID:     payload.TaskID,
		Status:     domain.BrokerStatusStarted,
		RetryCount: retryCount,
		Worker:     w.name,
	})

	result, execErr := w.invoke(ctx, payload)
	if execErr == nil {
		w.publishEvent(ctx, mq.TaskEventPayload{
			TaskID:     payload.TaskID,
			Status:     domain.BrokerStatusSuccess,
			Result:     result,
			RetryCount: retryCount,
			Worker:     w.name,
		})
		return nil
	}

	if ctx.Err() != nil || w.consumeRevocation(payload.TaskID) {
		// Отозвана во время выполнения: статус уже выставлен
		// брокером, событие не публикуем.
		w.logger.Info("task terminated", "task_id", payload.TaskID)
		return nil
	}

	if retryCount < payload.MaxRetries {
		w.publishEvent(ctx, mq.TaskEventPayload{
			TaskID:     payload.TaskID,
			Status:     domain.BrokerStatusRetry,
			Error:      execErr.Error(),
			RetryCount: retryCount + 1,
			Worker:     w.name,
		})
		return w.requeue(ctx, payload, retryCount+1)
	}

	w.publishEvent(ctx, mq.TaskEventPayload{
		TaskID:     payload.TaskID,
		Status:     domain.BrokerStatusFailure,
		Error:      execErr.Error(),
		RetryCount: retryCount,
		Worker:     w.name,
	})
	return nil
}

// invoke выполняет handler задачи с учётом таймаута и отмены.
func (w *Worker) invoke(ctx context.Context, payload mq.TaskSubmitPayload) (any, error) {
	handler, ok := w.registry.Resolve(payload.TaskName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", taskqueue.ErrHandlerNotFound, payload.TaskName)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	if payload.TimeoutSec > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, time.Duration(payload.TimeoutSec)*time.Second)
	}
	defer cancel()

	w.trackRunning(payload.TaskID, cancel)
	defer w.untrackRunning(payload.TaskID)

	return handler(taskCtx, payload.Args, payload.Kwargs)
}

// requeue публикует задачу заново с увеличенным счётчиком попыток.
func (w *Worker) requeue(ctx context.Context, payload mq.TaskSubmitPayload, retryCount int) error {
	if payload.Metadata == nil {
		payload.Metadata = make(map[string]any)
	}
	payload.Metadata["retry_count"] = retryCount

	if err := w.pub.PublishTaskSubmit(ctx, payload, domain.TaskPriorityNormal); err != nil {
		return fmt.Errorf("requeue task %s: %w", payload.TaskID, err)
	}
	return nil
}

// handleControl обрабатывает команду отзыва. Некорректные команды
// отбрасываются с логом: у контрольной очереди нет DLQ, а requeue
// зациклил бы сообщение.
func (w *Worker) handleControl(_ context.Context, msg *mq.Message) error {
	if msg.Type != mq.MessageTypeRevoke {
		return nil
	}
	payload, err := mq.ParsePayload[mq.RevokePayload](msg)
	if err != nil {
		w.logger.Error("malformed revoke payload", "message_id", msg.ID, "error", err)
		return nil
	}

	w.revoke(payload.TaskID, payload.Terminate)
	return nil
}

// revoke отменяет выполняющуюся задачу (при terminate) либо
// помечает ещё не доставленную как отозванную.
func (w *Worker) revoke(taskID string, terminate bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cancel, ok := w.running[taskID]; ok {
		if terminate {
			// Пометка до cancel: handleTask отличит прерывание
			// от обычной ошибки handler'а.
			w.revoked[taskID] = true
			cancel()
			w.logger.Info("terminating running task", "task_id", taskID)
		}
		return
	}
	w.revoked[taskID] = true
}

// consumeRevocation возвращает true и снимает пометку, если задача
// была отозвана до доставки.
func (w *Worker) consumeRevocation(taskID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.revoked[taskID] {
		delete(w.revoked, taskID)
		return true
	}
	return false
}

func (w *Worker) trackRunning(taskID string, cancel context.CancelFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running[taskID] = cancel
}

func (w *Worker) untrackRunning(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.running, taskID)
}

// heartbeatLoop периодически публикует heartbeat воркера.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.publishHeartbeat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.publishHeartbeat(ctx)
		}
	}
}

func (w *Worker) publishHeartbeat(ctx context.Context) {
	err := w.pub.PublishWorkerEvent(ctx, mq.WorkerEventPayload{
		Worker:    w.name,
		Active:    int(w.active.Load()),
		Processed: int(w.processed.Load()),
		Queues:    w.queues,
	})
	if err != nil {
		w.logger.Warn("heartbeat publish failed", "error", err)
	}
}

func (w *Worker) publishEvent(ctx context.Context, payload mq.TaskEventPayload) {
	if err := w.pub.PublishTaskEvent(ctx, payload); err != nil {
		w.logger.Error("task event publish failed",
			"task_id", payload.TaskID, "status", payload.Status, "error", err)
	}
}

// retryCountOf извлекает счётчик попыток из метаданных задачи.
func retryCountOf(payload mq.TaskSubmitPayload) int {
	switch v := payload.Metadata["retry_count"].(type) {
	case int:
		return v
	case float64: // после JSON round-trip числа приходят как float64
		return int(v)
	default:
		return 0
	}
}
