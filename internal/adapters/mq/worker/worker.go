// Package worker drains the broadcast queue into the fan-out sink.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/fightcard/ringside/internal/adapters/mq/queue"
	"github.com/fightcard/ringside/pkg/logger"
)

// Sink receives messages ready for delivery to subscribers.
type Sink interface {
	Publish(ctx context.Context, m queue.Message)
}

// Queue defines how dispatchers receive messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Message
}

// Dispatcher moves messages from the queue to the sink until stopped.
type Dispatcher struct {
	queue Queue
	sink  Sink
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher with configuration options.
func NewDispatcher(q Queue, sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:    q,
		sink:     sink,
		name:     "dispatcher",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts the dispatch loop until ctx is canceled or the queue closes.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	messages := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			d.sink.Publish(ctx, m)
		}
	}
}

// Shutdown gracefully stops the dispatcher.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	close(d.shutdown)
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "dispatcher shutdown timed out")
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

// Pool runs several dispatchers over one queue.
type Pool struct {
	dispatchers []*Dispatcher
	wg          sync.WaitGroup
	logger      logger.Logger
}

// NewPool creates count dispatchers over q delivering to sink.
func NewPool(count int, q Queue, sink Sink) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{logger: logger.Get().Named("dispatch-pool")}
	for i := 0; i < count; i++ {
		p.dispatchers = append(p.dispatchers, NewDispatcher(q, sink, WithName(fmt.Sprintf("dispatcher-%d", i))))
	}
	return p
}

// Start launches all dispatchers.
func (p *Pool) Start(ctx context.Context) {
	for _, d := range p.dispatchers {
		p.wg.Add(1)
		go func(d *Dispatcher) {
			defer p.wg.Done()
			d.Run(ctx)
		}(d)
	}
	p.logger.Info(ctx, "dispatch pool started", logger.Int("dispatchers", len(p.dispatchers)))
}

// Stop shuts all dispatchers down and waits for them to drain.
func (p *Pool) Stop(ctx context.Context) {
	for _, d := range p.dispatchers {
		_ = d.Shutdown(ctx)
	}
	p.wg.Wait()
}
