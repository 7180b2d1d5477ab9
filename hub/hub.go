package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"screenmirror-signaling-server/domain"
	"screenmirror-signaling-server/metrics"
)

// Hub is the connection registry: it maps connection ids to their live
// transport handles and delivers routing effects to them. Room membership
// lives in the room store, not here.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]domain.Connection
	metrics *metrics.Metrics
}

func New(m *metrics.Metrics) *Hub {
	return &Hub{
		conns:   make(map[string]domain.Connection),
		metrics: m,
	}
}

func (h *Hub) Register(conn domain.Connection) {
	h.mu.Lock()
	h.conns[conn.ID()] = conn
	count := len(h.conns)
	h.mu.Unlock()

	slog.Info("client connected", "connId", conn.ID(), "connections", count)
}

func (h *Hub) Unregister(conn domain.Connection) {
	h.mu.Lock()
	current, ok := h.conns[conn.ID()]
	removed := ok && current == conn
	if removed {
		delete(h.conns, conn.ID())
	}
	count := len(h.conns)
	h.mu.Unlock()

	if removed {
		slog.Info("client disconnected", "connId", conn.ID(), "connections", count)
	}
}

func (h *Hub) Get(connID string) (domain.Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.conns[connID]
	return conn, ok
}

// Deliver sends each effect to its target. A target that has disconnected
// is dropped silently; the sender will learn about the peer through its own
// disconnect-derived cleanup if it matters.
func (h *Hub) Deliver(effects []domain.Outbound) {
	for _, e := range effects {
		conn, ok := h.Get(e.Target)
		if !ok {
			slog.Debug("dropping message for stale target", "target", e.Target, "type", e.Message.Type)
			h.metrics.Inc(metrics.EventStaleTargetDrop)
			continue
		}

		data, err := json.Marshal(e.Message)
		if err != nil {
			slog.Warn("marshal error", "target", e.Target, "error", err)
			continue
		}

		if err := conn.Send(data); err != nil {
			slog.Warn("send failed", "target", e.Target, "error", err)
			h.metrics.Inc(metrics.EventSendFailure)
			go func(c domain.Connection) {
				h.Unregister(c)
				c.Close()
			}(conn)
			continue
		}
		h.metrics.Inc(metrics.EventMessageDelivered)
	}
}

func (h *Hub) Stats() (connections int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}
