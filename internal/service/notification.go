package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/exchange-settlement/internal/metrics"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// CategoryP2P is the category of P2P trade notifications
const CategoryP2P = "p2p"

var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// Notification is a message for one user
type Notification struct {
	UserID   uint      `json:"user_id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Category string    `json:"category"`
	SentAt   time.Time `json:"sent_at"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NATSNotifier publishes notifications as JSON on <prefix>.<category>
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSNotifier connects to NATS and returns a notifier publishing under prefix
func NewNATSNotifier(url, prefix string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("exchange-settlement"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSNotifier{conn: conn, prefix: prefix}, nil
}

// Notify implements Notifier
func (n *NATSNotifier) Notify(ctx context.Context, notification Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return n.conn.Publish(n.prefix+"."+notification.Category, data)
}

// Close drains and closes the connection
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

// Dispatcher hands notifications to a Notifier on background workers.
// Notify never blocks; when the buffer is full the notification is dropped.
type Dispatcher struct {
	notifier Notifier
	queue    chan Notification
	workers  int
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(notifier Notifier, workers, buffer int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		notifier: notifier,
		queue:    make(chan Notification, buffer),
		workers:  workers,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// Start launches the delivery workers
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	d.logger.Info("notification dispatcher started", zap.Int("workers", d.workers))
}

// Stop stops accepting notifications and waits for queued ones to be delivered
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

// Notify implements Notifier by enqueueing the notification
func (d *Dispatcher) Notify(_ context.Context, n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}

	select {
	case d.queue <- n:
		return nil
	default:
		metrics.Notifications.WithLabelValues(n.Category, "dropped").Inc()
		return fmt.Errorf("notification queue full, dropped %s notification for user %d", n.Category, n.UserID)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.notifier.Notify(ctx, n)
		cancel()

		if err != nil {
			metrics.Notifications.WithLabelValues(n.Category, "failed").Inc()
			d.logger.Warn("notification delivery failed",
				zap.Uint("user_id", n.UserID),
				zap.String("category", n.Category),
				zap.Error(err))
			continue
		}
		metrics.Notifications.WithLabelValues(n.Category, "sent").Inc()
	}
}

// LogNotifier writes notifications to the log. Used when no NATS server is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.logger.Info("notification",
		zap.Uint("user_id", notification.UserID),
		zap.String("category", notification.Category),
		zap.String("title", notification.Title),
		zap.String("message", notification.Message))
	return nil
}
