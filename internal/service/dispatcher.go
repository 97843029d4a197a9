package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marketplace-orders/internal/config"
)

// Task is a side effect that runs off the request path.
type Task struct {
	Name    string
	OrderID string
	Run     func(ctx context.Context) error
}

// Dispatcher runs tasks on a fixed worker pool with bounded retries. A full
// queue drops the task with an error log rather than blocking the request.
type Dispatcher struct {
	queue       chan Task
	workers     int
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg config.Dispatch, log *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queue:       make(chan Task, cfg.QueueSize),
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for task := range d.queue {
				d.run(task)
			}
		}()
	}
}

// Submit enqueues task and reports whether it was accepted.
func (d *Dispatcher) Submit(task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Error("dispatcher closed, dropping task",
			slog.String("task", task.Name), slog.String("order_id", task.OrderID))
		return false
	}

	select {
	case d.queue <- task:
		return true
	default:
		d.log.Error("dispatch queue full, dropping task",
			slog.String("task", task.Name), slog.String("order_id", task.OrderID))
		return false
	}
}

func (d *Dispatcher) run(task Task) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err := task.Run(d.ctx)
		if err == nil {
			return
		}

		d.log.Warn("task failed",
			slog.String("task", task.Name),
			slog.String("order_id", task.OrderID),
			slog.Int("attempt", attempt),
			slog.Any("err", err))

		if attempt == d.maxAttempts {
			break
		}

		select {
		case <-d.ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * d.backoff):
		}
	}

	d.log.Error("task gave up, needs manual retry",
		slog.String("task", task.Name), slog.String("order_id", task.OrderID))
}

// Close stops accepting tasks and waits for queued ones until ctx expires,
// after which in-flight retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
