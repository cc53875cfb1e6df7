// Package sink decouples activity consumers (Redis mirror, Kafka, NATS) from
// the dispatcher. Publish never blocks: each sink drains its own bounded
// queue on a background goroutine and drops activity when the queue is full.
package sink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mahaj/room-relay/pkg/model"
)

// Handler delivers one activity to an external system.
type Handler func(ctx context.Context, a model.Activity) error

type Async struct {
	name    string
	handler Handler
	timeout time.Duration
	logger  *slog.Logger

	queue   chan model.Activity
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

type Option func(*Async)

func WithLogger(l *slog.Logger) Option { return func(a *Async) { a.logger = l } }

// WithTimeout bounds each handler call.
func WithTimeout(d time.Duration) Option { return func(a *Async) { a.timeout = d } }

func NewAsync(name string, buffer int, h Handler, opts ...Option) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		name:    name,
		handler: h,
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		queue:   make(chan model.Activity, buffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run()
	return a
}

func (a *Async) Publish(act model.Activity) {
	a.closeMu.RLock()
	defer a.closeMu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- act:
	default:
		n := a.dropped.Add(1)
		a.logger.Warn("sink queue full, dropping activity", "sink", a.name, "kind", act.Kind, "dropped", n)
	}
}

func (a *Async) Dropped() int64 { return a.dropped.Load() }

func (a *Async) run() {
	defer close(a.done)
	for act := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.handler(ctx, act); err != nil {
			a.logger.Error("sink delivery failed", "sink", a.name, "kind", act.Kind, "room", act.Room, "error", err)
		}
		cancel()
	}
}

// Close stops accepting activity and waits for the queue to drain or ctx to
// expire.
func (a *Async) Close(ctx context.Context) error {
	a.closeMu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.closeMu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
