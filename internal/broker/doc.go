// Package broker — интерфейс внешнего брокера задач и его
// реализация в памяти. Боевая реализация поверх RabbitMQ
// живёт в пакете mq.
package broker
