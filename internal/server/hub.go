package server

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/models"
)

// Subscriber receives every broadcast event as an encoded `{type, data}` payload.
//
// Send is closed when the hub drops the subscriber, either on unsubscribe or because it
// fell too far behind.
type Subscriber struct {
	Send chan []byte
	name string
}

// Hub fans stream events out to SSE and WebSocket clients.
type Hub struct {
	clients map[*Subscriber]bool

	broadcast  chan []byte
	register   chan *Subscriber
	unregister chan *Subscriber
	done       chan struct{}

	mu     sync.RWMutex
	logger *log.Logger
}

// NewHub creates a hub. Nothing is delivered until [Hub.Run] is started.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Subscriber]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		done:       make(chan struct{}),
		logger:     logger.With("component", "hub"),
	}
}

// Run is the hub's event loop. It closes every subscriber when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for s := range h.clients {
			delete(h.clients, s)
			close(s.Send)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.mu.Lock()
			h.clients[s] = true
			h.mu.Unlock()
			h.logger.Info("client connected", "client", s.name)

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[s]; ok {
				delete(h.clients, s)
				close(s.Send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "client", s.name)

		case payload := <-h.broadcast:
			h.mu.Lock()
			for s := range h.clients {
				select {
				case s.Send <- payload:
				default:
					h.logger.Warn("dropping slow client", "client", s.name)
					delete(h.clients, s)
					close(s.Send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribe registers a new subscriber. It returns nil once the hub has stopped.
func (h *Hub) Subscribe(name string) *Subscriber {
	s := &Subscriber{Send: make(chan []byte, 64), name: name}
	select {
	case h.register <- s:
		return s
	case <-h.done:
		return nil
	}
}

// Unsubscribe removes s from the hub.
func (h *Hub) Unsubscribe(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Broadcast encodes ev and queues it for every subscriber. Events are dropped when the
// queue is full.
func (h *Hub) Broadcast(ev models.Event) {
	payload, err := models.MarshalEvent(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "error", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "type", ev.Kind(), "id", ev.EntryID())
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
