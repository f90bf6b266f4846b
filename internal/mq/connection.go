package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	redialBaseDelay = time.Second
	redialMaxDelay  = 30 * time.Second
	dialHeartbeat   = 10 * time.Second
)

// Connection — обёртка над AMQP соединением с автоматическим
// восстановлением.
//
// Соединение и канал наблюдаются по отдельности: брокер закрывает
// канал без соединения при protocol error (например, 406 на
// повторном подтверждении доставки), и тогда переоткрывается только
// канал. Разрыв соединения запускает redial с экспоненциальной
// задержкой. Подписчики узнают о восстановлении через
// ReconnectNotify.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	closedCh    chan struct{}
	reconnectCh chan struct{}
}

// NewConnection устанавливает соединение с RabbitMQ и запускает
// наблюдателя.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		url:         url,
		logger:      logger,
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.dial(); err != nil {
		return nil, err
	}

	go c.supervise()

	return c, nil
}

// dial открывает соединение и канал.
func (c *Connection) dial() error {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName("conductor")

	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat:  dialHeartbeat,
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ")
	return nil
}

// supervise наблюдает за соединением и каналом и восстанавливает
// упавшую часть.
func (c *Connection) supervise() {
	for {
		c.mu.RLock()
		closed, conn, ch := c.closed, c.conn, c.channel
		c.mu.RUnlock()

		if closed {
			return
		}
		if conn == nil || ch == nil {
			time.Sleep(redialBaseDelay)
			continue
		}

		connErrs := conn.NotifyClose(make(chan *amqp.Error, 1))
		chanErrs := ch.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return

		case err := <-connErrs:
			if err != nil {
				c.logger.Warn("connection lost", "error", err)
			}
			c.redial()

		case err := <-chanErrs:
			if conn.IsClosed() {
				// Канал умер вместе с соединением, ждём connErrs
				// на следующей итерации либо redial сразу.
				c.redial()
				continue
			}
			if err != nil {
				c.logger.Warn("channel closed by broker", "error", err)
			}
			if rErr := c.reopenChannel(); rErr != nil {
				c.logger.Warn("channel reopen failed, redialing", "error", rErr)
				c.redial()
			}
		}
	}
}

// reopenChannel открывает новый канал на живом соединении.
func (c *Connection) reopenChannel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection is closed")
	}
	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("no live connection")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	c.channel = ch

	c.logger.Info("channel reopened")
	c.notifyReconnect()
	return nil
}

// redial восстанавливает соединение с экспоненциальной задержкой.
func (c *Connection) redial() {
	delay := redialBaseDelay

	for {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		c.logger.Info("redialing RabbitMQ", "delay", delay)
		select {
		case <-c.closedCh:
			return
		case <-time.After(delay):
		}

		if err := c.dial(); err != nil {
			c.logger.Warn("redial failed", "error", err)
			delay = min(delay*2, redialMaxDelay)
			continue
		}

		c.notifyReconnect()
		return
	}
}

func (c *Connection) notifyReconnect() {
	select {
	case c.reconnectCh <- struct{}{}:
	default:
	}
}

// Channel возвращает текущий AMQP канал.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// WithChannel выполняет функцию с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return fn(ch)
}

// ReconnectNotify возвращает канал уведомлений о восстановлении
// соединения или канала.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Close закрывает соединение. Повторный вызов — no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close channel: %w", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close connection: %w", err)
		}
	}

	if firstErr != nil {
		return firstErr
	}
	c.logger.Info("connection closed")
	return nil
}

// IsConnected проверяет, установлено ли соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}
