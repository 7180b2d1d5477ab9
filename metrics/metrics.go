package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Event names counted by the server.
const (
	EventStreamStarted    = "stream_started"
	EventStreamRejected   = "stream_rejected"
	EventViewerJoined     = "viewer_joined"
	EventRoomNotFound     = "room_not_found"
	EventStreamStopped    = "stream_stopped"
	EventSignalForwarded  = "signal_forwarded"
	EventStaleTargetDrop  = "stale_target_dropped"
	EventInvalidMessage   = "invalid_message"
	EventUnknownMessage   = "unknown_message_type"
	EventDisconnectSweep  = "disconnect_sweep"
	EventMessageDelivered = "message_delivered"
	EventSendFailure      = "send_failure"
)

// Metrics is a minimal, concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

// Handler exposes the registry in Prometheus' text exposition format as a
// single counter with an `event` label.
func Handler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprintln(w, "# HELP signaling_events_total Signaling server event counters.")
		fmt.Fprintln(w, "# TYPE signaling_events_total counter")
		for _, k := range keys {
			escaped := strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n").Replace(k)
			fmt.Fprintf(w, "signaling_events_total{event=\"%s\"} %d\n", escaped, snap[k])
		}
	})
}
