// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//   - broker.go     — AMQPBroker, реализация broker.Broker
//
// Типы сообщений:
//   - task.submit   — задача для воркера
//   - task.event    — статусное событие задачи от воркера
//   - worker.event  — heartbeat воркера
//   - task.revoke   — команда отзыва задачи
//
// Exchanges:
//   - conductor.tasks    — отправка задач (direct, routing = очередь)
//   - conductor.events   — статусные события (direct)
//   - conductor.control  — команды воркерам (fanout)
//   - conductor.dlq      — dead letter queue
package mq
