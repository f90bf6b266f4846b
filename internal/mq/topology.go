package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeTasks — отправка задач воркерам, routing key = имя очереди.
	ExchangeTasks Exchange = "conductor.tasks"

	// ExchangeEvents — статусные события задач и heartbeat воркеров.
	ExchangeEvents Exchange = "conductor.events"

	// ExchangeControl — fanout управляющих команд (revoke) всем воркерам.
	ExchangeControl Exchange = "conductor.control"

	// ExchangeDLQ — dead letter exchange.
	ExchangeDLQ Exchange = "conductor.dlq"
)

// Routing keys обменника событий.
const (
	RoutingKeyTaskEvent   RoutingKey = "task"
	RoutingKeyWorkerEvent RoutingKey = "worker"
	RoutingKeyDLQTasks    RoutingKey = "tasks"
)

// Имена служебных очередей.
const (
	QueueEvents = "conductor.events"
	QueueDLQ    = "dlq.tasks"
)

// Максимальный приоритет сообщений в очередях задач.
const maxPriority = 9

// TaskQueueName возвращает имя AMQP очереди для логической очереди задач.
func TaskQueueName(queue string) string {
	return "tasks." + queue
}

// DelayQueueName возвращает имя очереди отложенной доставки.
//
// Отложенные задачи публикуются сюда с per-message TTL; по истечении
// TTL брокер dead-letter'ит сообщение в рабочую очередь задач.
func DelayQueueName(queue string) string {
	return "tasks." + queue + ".delayed"
}

// SetupTopology объявляет обменники, служебные очереди и очереди
// задач для перечисленных логических очередей.
func SetupTopology(ctx context.Context, conn *Connection, taskQueues []string) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareServiceQueues(ch); err != nil {
			return err
		}
		for _, queue := range taskQueues {
			if err := DeclareTaskQueue(ch, queue); err != nil {
				return err
			}
		}
		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTasks, "direct"},
		{ExchangeEvents, "direct"},
		{ExchangeControl, "fanout"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareServiceQueues создаёт очередь событий и DLQ.
func declareServiceQueues(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(QueueEvents, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueEvents, err)
	}
	if err := ch.QueueBind(QueueEvents, string(RoutingKeyTaskEvent), string(ExchangeEvents), false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", QueueEvents, err)
	}
	if err := ch.QueueBind(QueueEvents, string(RoutingKeyWorkerEvent), string(ExchangeEvents), false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", QueueEvents, err)
	}

	if _, err := ch.QueueDeclare(QueueDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueDLQ, err)
	}
	if err := ch.QueueBind(QueueDLQ, string(RoutingKeyDLQTasks), string(ExchangeDLQ), false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", QueueDLQ, err)
	}

	return nil
}

// DeclareTaskQueue объявляет рабочую и отложенную очереди
// одной логической очереди задач.
//
// Рабочая очередь приоритетная (x-max-priority) с DLQ; отложенная
// очередь dead-letter'ит истёкшие сообщения в рабочую.
func DeclareTaskQueue(ch *amqp.Channel, queue string) error {
	name := TaskQueueName(queue)

	workArgs := amqp.Table{
		"x-max-priority":            int32(maxPriority),
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, workArgs); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, queue, string(ExchangeTasks), false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", name, err)
	}

	delayArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeTasks),
		"x-dead-letter-routing-key": queue,
	}
	delayName := DelayQueueName(queue)
	if _, err := ch.QueueDeclare(delayName, true, false, false, false, delayArgs); err != nil {
		return fmt.Errorf("declare queue %s: %w", delayName, err)
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conductor RabbitMQ Topology:

    conductor.tasks (direct)
    └── tasks.<queue> [routing: <queue>, x-max-priority]
            Consumer: Worker
            DLQ: dlq.tasks
        tasks.<queue>.delayed [per-message TTL → conductor.tasks]

    conductor.events (direct)
    └── conductor.events [routing: task, worker]
            Consumer: AMQPBroker state tracker

    conductor.control (fanout)
    └── <worker-exclusive queues>
            Revocations, best-effort terminate

    conductor.dlq (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing
  `
}
