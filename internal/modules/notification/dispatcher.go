package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"library/internal/pkg/metrics"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("notification dispatcher stopped")
)

// Channel is a named delivery target.
type Channel struct {
	Name   string
	Sender Sender
}

// Dispatcher fans notifications out to every channel from a single background
// worker. Callers never wait on delivery; when the queue is full the message
// is dropped and logged.
type Dispatcher struct {
	queue    chan string
	channels []Channel
	logger   zerolog.Logger
	metrics  *metrics.Collector
	timeout  time.Duration

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(queueSize int, logger zerolog.Logger, m *metrics.Collector, channels ...Channel) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		queue:    make(chan string, queueSize),
		channels: channels,
		logger:   logger,
		metrics:  m,
		timeout:  15 * time.Second,
	}
}

// Notify enqueues text and returns immediately.
func (d *Dispatcher) Notify(text string) {
	if err := d.Send(context.Background(), text); err != nil {
		d.logger.Warn().Err(err).Msg("notification dropped")
	}
}

// Send enqueues text. It implements Sender so the overdue sweep can run
// through the same queue as request-path notifications.
func (d *Dispatcher) Send(_ context.Context, text string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- text:
		return nil
	default:
		if d.metrics != nil {
			d.metrics.NotificationsDropped.Inc()
		}
		return ErrQueueFull
	}
}

func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for text := range d.queue {
			d.deliver(text)
		}
	}()
	d.logger.Info().Int("channels", len(d.channels)).Int("queue_size", cap(d.queue)).Msg("notification dispatcher started")
}

// Stop rejects new messages, drains the queue and waits for the worker.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info().Msg("notification dispatcher stopped")
}

func (d *Dispatcher) deliver(text string) {
	for _, ch := range d.channels {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := ch.Sender.Send(ctx, text)
		cancel()

		result := "ok"
		switch {
		case errors.Is(err, ErrNotConfigured):
			result = "skipped"
		case err != nil:
			result = "error"
			d.logger.Error().Err(err).Str("channel", ch.Name).Msg("notification delivery failed")
		}
		if d.metrics != nil {
			d.metrics.NotificationsSent.WithLabelValues(ch.Name, result).Inc()
		}
	}
}
