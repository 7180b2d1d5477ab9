package protocol

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenmirror-signaling-server/domain"
	"screenmirror-signaling-server/metrics"
	"screenmirror-signaling-server/room"
)

func newReconciler() (*Reconciler, *room.Store) {
	store := room.NewStore()
	return NewReconciler(store, metrics.New()), store
}

func TestReconciler_BroadcasterDisconnect(t *testing.T) {
	rec, store := newReconciler()
	store.Create("r1", "b1")
	store.AddViewer("r1", "v1")
	store.AddViewer("r1", "v2")

	out := rec.Disconnect("b1")

	require.Len(t, out, 2)
	targets := make([]string, 0, len(out))
	for _, e := range out {
		assert.Equal(t, domain.TypeStreamerDisconnected, e.Message.Type)
		assert.Equal(t, "r1", e.Message.RoomID)
		targets = append(targets, e.Target)
	}
	assert.ElementsMatch(t, []string{"v1", "v2"}, targets)

	_, ok := store.Get("r1")
	assert.False(t, ok)
}

func TestReconciler_ViewerDisconnect(t *testing.T) {
	rec, store := newReconciler()
	store.Create("r1", "b1")
	store.AddViewer("r1", "v1")

	out := rec.Disconnect("v1")

	require.Len(t, out, 1)
	assert.Equal(t, "b1", out[0].Target)
	assert.Equal(t, domain.TypeViewerLeft, out[0].Message.Type)
	assert.Equal(t, "v1", out[0].Message.ViewerID)

	// The room survives its viewers.
	r, ok := store.Get("r1")
	require.True(t, ok)
	assert.Empty(t, r.Viewers)
}

func TestReconciler_ViewerInMultipleRooms(t *testing.T) {
	rec, store := newReconciler()
	store.Create("r1", "b1")
	store.Create("r2", "b2")
	store.AddViewer("r1", "v1")
	store.AddViewer("r2", "v1")

	out := rec.Disconnect("v1")

	require.Len(t, out, 2)
	targets := []string{out[0].Target, out[1].Target}
	assert.ElementsMatch(t, []string{"b1", "b2"}, targets)
	assert.Empty(t, store.FindByViewer("v1"))
}

func TestReconciler_UnknownConnection(t *testing.T) {
	rec, store := newReconciler()
	store.Create("r1", "b1")

	out := rec.Disconnect("stranger")

	assert.Empty(t, out)
	_, ok := store.Get("r1")
	assert.True(t, ok)
}

// Same resolution requirement as the stop race, on the disconnect path.
func TestReconciler_JoinDisconnectRace(t *testing.T) {
	join := mustJSON(t, domain.Message{Type: domain.TypeJoinStream, RoomID: "ABCD"})

	for i := 0; i < 200; i++ {
		store := room.NewStore()
		m := metrics.New()
		router := NewRouter(store, m)
		rec := NewReconciler(store, m)
		store.Create("ABCD", "B")

		var joinOut, sweepOut []domain.Outbound
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			joinOut = router.Route("V", join)
		}()
		go func() {
			defer wg.Done()
			sweepOut = rec.Disconnect("B")
		}()
		wg.Wait()

		_, ok := store.Get("ABCD")
		require.False(t, ok)

		notifiedV := false
		for _, e := range sweepOut {
			if e.Target == "V" && e.Message.Type == domain.TypeStreamerDisconnected {
				notifiedV = true
			}
		}

		require.NotEmpty(t, joinOut, "iteration %d", i)
		if len(joinOut) == 2 {
			assert.True(t, notifiedV, "iteration %d: joined viewer missed streamer-disconnected", i)
		} else {
			assert.Equal(t, domain.TypeRoomNotFound, joinOut[0].Message.Type)
			assert.False(t, notifiedV, "iteration %d: unjoined viewer got streamer-disconnected", i)
		}
	}
}

func TestReconciler_Idempotent(t *testing.T) {
	rec, store := newReconciler()
	store.Create("r1", "b1")
	store.AddViewer("r1", "v1")

	first := rec.Disconnect("b1")
	second := rec.Disconnect("b1")

	assert.Len(t, first, 1)
	assert.Empty(t, second)
}
