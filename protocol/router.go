package protocol

import (
	"encoding/json"
	"errors"
	"log/slog"

	"screenmirror-signaling-server/domain"
	"screenmirror-signaling-server/metrics"
	"screenmirror-signaling-server/room"
)

// Router is the single entry point for inbound signaling messages. Route
// validates a message against current room state, applies the resulting
// store mutations, and returns the addressed outbound effects. It never
// sends anything itself, which keeps it testable without a live transport.
type Router struct {
	store   *room.Store
	metrics *metrics.Metrics
}

func NewRouter(store *room.Store, m *metrics.Metrics) *Router {
	return &Router{store: store, metrics: m}
}

func (r *Router) Route(senderID string, data []byte) []domain.Outbound {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid message", "connId", senderID, "error", err)
		r.metrics.Inc(metrics.EventInvalidMessage)
		return []domain.Outbound{errorTo(senderID, "invalid message")}
	}

	switch msg.Type {
	case domain.TypeStartStream:
		return r.startStream(senderID, msg)
	case domain.TypeJoinStream:
		return r.joinStream(senderID, msg)
	case domain.TypeStopStream:
		return r.stopStream(senderID, msg)
	case domain.TypeOffer, domain.TypeAnswer, domain.TypeICECandidate, domain.TypeWebRTCSignal:
		return r.forward(senderID, msg)
	default:
		slog.Warn("unknown message type", "connId", senderID, "type", msg.Type)
		r.metrics.Inc(metrics.EventUnknownMessage)
		return nil
	}
}

func (r *Router) startStream(senderID string, msg domain.Message) []domain.Outbound {
	if msg.RoomID == "" {
		return []domain.Outbound{errorTo(senderID, "roomId required")}
	}

	if _, err := r.store.Create(msg.RoomID, senderID); err != nil {
		if errors.Is(err, room.ErrExists) {
			slog.Warn("stream rejected, room id taken", "roomId", msg.RoomID, "connId", senderID)
			r.metrics.Inc(metrics.EventStreamRejected)
			return []domain.Outbound{errorTo(senderID, "room already exists")}
		}
		return []domain.Outbound{errorTo(senderID, err.Error())}
	}

	slog.Info("stream started", "roomId", msg.RoomID, "broadcasterId", senderID)
	r.metrics.Inc(metrics.EventStreamStarted)
	return []domain.Outbound{{
		Target:  senderID,
		Message: domain.Message{Type: domain.TypeStreamStarted, RoomID: msg.RoomID},
	}}
}

func (r *Router) joinStream(senderID string, msg domain.Message) []domain.Outbound {
	broadcasterID, err := r.store.AddViewer(msg.RoomID, senderID)
	if err != nil {
		slog.Info("join failed, room not found", "roomId", msg.RoomID, "connId", senderID)
		r.metrics.Inc(metrics.EventRoomNotFound)
		return []domain.Outbound{{
			Target:  senderID,
			Message: domain.Message{Type: domain.TypeRoomNotFound, RoomID: msg.RoomID},
		}}
	}

	slog.Info("viewer joined", "roomId", msg.RoomID, "viewerId", senderID)
	r.metrics.Inc(metrics.EventViewerJoined)
	return []domain.Outbound{
		{
			Target:  broadcasterID,
			Message: domain.Message{Type: domain.TypeViewerJoined, RoomID: msg.RoomID, ViewerID: senderID},
		},
		{
			Target:  senderID,
			Message: domain.Message{Type: domain.TypeStreamJoined, RoomID: msg.RoomID, BroadcasterID: broadcasterID},
		},
	}
}

// stopStream tears the room down only for its broadcaster. Anything else
// (missing room, sender is not the owner) is ignored without a reply. The
// remove-and-snapshot is a single store operation: any viewer whose join
// was serialized before it is in the effect list, any later join gets
// room-not-found.
func (r *Router) stopStream(senderID string, msg domain.Message) []domain.Outbound {
	rm, ok := r.store.RemoveIfBroadcaster(msg.RoomID, senderID)
	if !ok {
		return nil
	}

	out := make([]domain.Outbound, 0, len(rm.Viewers)+1)
	for viewerID := range rm.Viewers {
		out = append(out, domain.Outbound{
			Target:  viewerID,
			Message: domain.Message{Type: domain.TypeStreamEnded, RoomID: msg.RoomID},
		})
	}
	out = append(out, domain.Outbound{
		Target:  senderID,
		Message: domain.Message{Type: domain.TypeStreamEnded, RoomID: msg.RoomID},
	})

	slog.Info("stream stopped", "roomId", msg.RoomID, "broadcasterId", senderID)
	r.metrics.Inc(metrics.EventStreamStopped)
	return out
}

// forward relays an offer/answer/ice-candidate/webrtc-signal payload to its
// target, stamped with the sender id. Delivery is best-effort: a target that
// has since disconnected is dropped by the registry, not reported here.
func (r *Router) forward(senderID string, msg domain.Message) []domain.Outbound {
	if msg.Target == "" {
		return nil
	}

	r.metrics.Inc(metrics.EventSignalForwarded)
	return []domain.Outbound{{
		Target: msg.Target,
		Message: domain.Message{
			Type:       msg.Type,
			Sender:     senderID,
			SDP:        msg.SDP,
			Candidate:  msg.Candidate,
			Signal:     msg.Signal,
			SignalType: msg.SignalType,
		},
	}}
}

func errorTo(connID, reason string) domain.Outbound {
	return domain.Outbound{
		Target:  connID,
		Message: domain.Message{Type: domain.TypeError, Error: reason},
	}
}
