package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenmirror-signaling-server/domain"
	"screenmirror-signaling-server/metrics"
)

type mockConn struct {
	id       string
	received [][]byte
	closed   bool
	sendErr  error
	mu       sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func TestHub_Deliver(t *testing.T) {
	h := New(metrics.New())
	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}
	h.Register(c1)
	h.Register(c2)

	h.Deliver([]domain.Outbound{
		{Target: "c1", Message: domain.Message{Type: domain.TypeStreamStarted, RoomID: "r1"}},
		{Target: "c2", Message: domain.Message{Type: domain.TypeStreamEnded, RoomID: "r1"}},
	})

	require.Len(t, c1.getReceived(), 1)
	require.Len(t, c2.getReceived(), 1)

	var msg domain.Message
	require.NoError(t, json.Unmarshal(c1.getReceived()[0], &msg))
	assert.Equal(t, domain.TypeStreamStarted, msg.Type)
	assert.Equal(t, "r1", msg.RoomID)
}

func TestHub_DeliverStaleTarget(t *testing.T) {
	m := metrics.New()
	h := New(m)
	c1 := &mockConn{id: "c1"}
	h.Register(c1)

	h.Deliver([]domain.Outbound{
		{Target: "ghost", Message: domain.Message{Type: domain.TypeOffer}},
		{Target: "c1", Message: domain.Message{Type: domain.TypeOffer}},
	})

	assert.Len(t, c1.getReceived(), 1)
	assert.Equal(t, uint64(1), m.Get(metrics.EventStaleTargetDrop))
}

func TestHub_DeliverSendFailure(t *testing.T) {
	h := New(metrics.New())
	bad := &mockConn{id: "bad", sendErr: errors.New("buffer full")}
	h.Register(bad)

	h.Deliver([]domain.Outbound{
		{Target: "bad", Message: domain.Message{Type: domain.TypeOffer}},
	})

	assert.Eventually(t, func() bool {
		_, ok := h.Get("bad")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestHub_UnregisterOnlySameInstance(t *testing.T) {
	h := New(metrics.New())
	old := &mockConn{id: "c1"}
	h.Register(old)

	// A reconnect under the same id must not be removed by the old
	// connection's teardown.
	fresh := &mockConn{id: "c1"}
	h.Register(fresh)
	h.Unregister(old)

	got, ok := h.Get("c1")
	require.True(t, ok)
	assert.Same(t, fresh, got.(*mockConn))
}

func TestHub_Stats(t *testing.T) {
	h := New(metrics.New())
	assert.Zero(t, h.Stats())

	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}
	h.Register(c1)
	h.Register(c2)
	assert.Equal(t, 2, h.Stats())

	h.Unregister(c1)
	assert.Equal(t, 1, h.Stats())
}
