package room

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("room not found")
	ErrExists   = errors.New("room already exists")
)

// Room groups one broadcaster and its viewers under an application-chosen id.
type Room struct {
	ID          string
	Broadcaster string
	Viewers     map[string]struct{}
	CreatedAt   time.Time
}

func (r *Room) snapshot() *Room {
	viewers := make(map[string]struct{}, len(r.Viewers))
	for v := range r.Viewers {
		viewers[v] = struct{}{}
	}
	return &Room{
		ID:          r.ID,
		Broadcaster: r.Broadcaster,
		Viewers:     viewers,
		CreatedAt:   r.CreatedAt,
	}
}

// Store is the exclusive owner of the roomId -> Room table. Every method is
// atomic with respect to the others; lookups return snapshots so callers
// never iterate shared state without the lock.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
	}
}

// Create registers a new room owned by broadcasterID. A colliding id is
// rejected with ErrExists; the existing room is left untouched.
func (s *Store) Create(id, broadcasterID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[id]; exists {
		return nil, ErrExists
	}

	r := &Room{
		ID:          id,
		Broadcaster: broadcasterID,
		Viewers:     make(map[string]struct{}),
		CreatedAt:   time.Now(),
	}
	s.rooms[id] = r
	return r.snapshot(), nil
}

func (s *Store) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	return r.snapshot(), true
}

// AddViewer inserts viewerID and returns the room's broadcaster in one
// atomic step, so a join racing a teardown resolves to either the room or
// ErrNotFound. Re-adding a viewer that already joined is a no-op.
func (s *Store) AddViewer(id, viewerID string) (broadcasterID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return "", ErrNotFound
	}
	r.Viewers[viewerID] = struct{}{}
	return r.Broadcaster, nil
}

func (s *Store) RemoveViewer(id, viewerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[id]; ok {
		delete(r.Viewers, viewerID)
	}
}

// RemoveIfBroadcaster deletes the room and returns its final membership in
// one atomic step, provided connID owns it. A join serialized before the
// removal is always in the returned room; one serialized after gets
// ErrNotFound from AddViewer. The returned room is detached from the table,
// so the caller may read it freely.
func (s *Store) RemoveIfBroadcaster(id, connID string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok || r.Broadcaster != connID {
		return nil, false
	}
	delete(s.rooms, id)
	return r, true
}

// RemoveByBroadcaster deletes every room owned by connID and returns them,
// with the same atomicity as RemoveIfBroadcaster.
func (s *Store) RemoveByBroadcaster(connID string) []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Room
	for id, r := range s.rooms {
		if r.Broadcaster == connID {
			delete(s.rooms, id)
			out = append(out, r)
		}
	}
	return out
}

// RemoveViewerFromAll removes connID from every room it joined and returns
// a snapshot of each affected room.
func (s *Store) RemoveViewerFromAll(connID string) []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Room
	for _, r := range s.rooms {
		if _, ok := r.Viewers[connID]; ok {
			delete(r.Viewers, connID)
			out = append(out, r.snapshot())
		}
	}
	return out
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, id)
}

// FindByBroadcaster returns every room owned by connID. At most one room
// under normal operation, but the contract allows zero or more.
func (s *Store) FindByBroadcaster(connID string) []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Room
	for _, r := range s.rooms {
		if r.Broadcaster == connID {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// FindByViewer returns every room connID has joined as a viewer. A
// connection may be in several rooms at once; that is not prevented.
func (s *Store) FindByViewer(connID string) []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Room
	for _, r := range s.rooms {
		if _, ok := r.Viewers[connID]; ok {
			out = append(out, r.snapshot())
		}
	}
	return out
}

func (s *Store) Stats() (rooms, viewers int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms = len(s.rooms)
	for _, r := range s.rooms {
		viewers += len(r.Viewers)
	}
	return rooms, viewers
}
