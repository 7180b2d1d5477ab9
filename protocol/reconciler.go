package protocol

import (
	"log/slog"

	"screenmirror-signaling-server/domain"
	"screenmirror-signaling-server/metrics"
	"screenmirror-signaling-server/room"
)

// Reconciler handles transport-level disconnects. Aside from an explicit
// stop-stream it is the only path by which a room disappears or shrinks.
type Reconciler struct {
	store   *room.Store
	metrics *metrics.Metrics
}

func NewReconciler(store *room.Store, m *metrics.Metrics) *Reconciler {
	return &Reconciler{store: store, metrics: m}
}

// Disconnect sweeps the store for rooms involving connID. Rooms it
// broadcast are torn down with one streamer-disconnected per viewer; rooms
// it watched lose the viewer and the broadcaster is told. Calling it for a
// connection in no rooms, or calling it twice, is a no-op.
func (rc *Reconciler) Disconnect(connID string) []domain.Outbound {
	var out []domain.Outbound

	// Remove-and-snapshot in one store operation, so a join racing this
	// sweep is either in the returned membership or got room-not-found.
	for _, rm := range rc.store.RemoveByBroadcaster(connID) {
		for viewerID := range rm.Viewers {
			out = append(out, domain.Outbound{
				Target:  viewerID,
				Message: domain.Message{Type: domain.TypeStreamerDisconnected, RoomID: rm.ID},
			})
		}
		slog.Info("room removed, broadcaster disconnected", "roomId", rm.ID, "broadcasterId", connID)
	}

	for _, rm := range rc.store.RemoveViewerFromAll(connID) {
		out = append(out, domain.Outbound{
			Target:  rm.Broadcaster,
			Message: domain.Message{Type: domain.TypeViewerLeft, RoomID: rm.ID, ViewerID: connID},
		})
		slog.Info("viewer left", "roomId", rm.ID, "viewerId", connID)
	}

	if len(out) > 0 {
		rc.metrics.Inc(metrics.EventDisconnectSweep)
	}
	return out
}
