// Package ws implements the per-bout real-time fan-out over websockets.
package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fightcard/ringside/internal/adapters/mq/queue"
	"github.com/fightcard/ringside/pkg/logger"
	"github.com/fightcard/ringside/pkg/metrics"
)

// Default per-subscriber buffer. A subscriber that cannot keep up is
// dropped rather than allowed to block the dispatch path.
const defaultSendBuffer = 256

// Subscriber is one attached viewer of a bout topic.
type Subscriber struct {
	boutID string
	send   chan queue.Message
	once   sync.Once
}

// C returns the subscriber's delivery channel. Closed on Unsubscribe or
// when the hub drops a slow subscriber.
func (s *Subscriber) C() <-chan queue.Message { return s.send }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub routes broadcast messages to the subscribers of each bout topic.
// It implements the dispatch sink: Publish never blocks event ingestion.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
	buffer int
	logger logger.Logger
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-subscriber buffer size.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		topics: make(map[string]map[*Subscriber]struct{}),
		buffer: defaultSendBuffer,
		logger: logger.Get().Named("ws"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe attaches a new subscriber to the bout topic.
func (h *Hub) Subscribe(boutID string) *Subscriber {
	sub := &Subscriber{
		boutID: boutID,
		send:   make(chan queue.Message, h.buffer),
	}
	h.mu.Lock()
	subs, ok := h.topics[boutID]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.topics[boutID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	metrics.IncWSSubscribers()
	return sub
}

// Unsubscribe detaches a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if subs, ok := h.topics[sub.boutID]; ok {
		if _, present := subs[sub]; present {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, sub.boutID)
			}
			metrics.DecWSSubscribers()
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Publish delivers a message to every subscriber of its bout topic.
// Best-effort: a subscriber with a full buffer is dropped.
func (h *Hub) Publish(ctx context.Context, m queue.Message) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.topics[m.BoutID]))
	for sub := range h.topics[m.BoutID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.send <- m:
			metrics.RecordWSDelivery()
		default:
			metrics.RecordWSDeliveryError()
			h.logger.Warn(ctx, "dropping slow subscriber", logger.String("boutID", m.BoutID))
			h.Unsubscribe(sub)
		}
	}
}

// SubscriberCount returns the number of subscribers on one bout topic.
func (h *Hub) SubscriberCount(boutID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[boutID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Arena kiosks and broadcast overlays connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotFunc produces the initial messages a fresh subscriber receives,
// mirroring what the polling endpoints would return.
type SnapshotFunc func(ctx context.Context, boutID string) []queue.Message

// ServeWS upgrades the request and pumps bout topic messages to the client
// until either side disconnects. Disconnecting simply drops the
// subscription; nothing the client initiated is rolled back.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, boutID string, snapshot SnapshotFunc) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	sub := h.Subscribe(boutID)
	ctx := r.Context()

	if snapshot != nil {
		for _, m := range snapshot(ctx, boutID) {
			if err := conn.WriteJSON(m); err != nil {
				h.Unsubscribe(sub)
				_ = conn.Close()
				return
			}
		}
	}

	// Write pump.
	go func() {
		defer func() { _ = conn.Close() }()
		for m := range sub.C() {
			if err := conn.WriteJSON(m); err != nil {
				h.Unsubscribe(sub)
				return
			}
		}
	}()

	// Read loop: clients do not send payloads; reading surfaces close
	// frames and connection loss.
	go func() {
		defer func() {
			h.Unsubscribe(sub)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
