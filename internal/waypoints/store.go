package waypoints

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"iter-viae/internal/models"
)

// ErrRejected marks a mutation refused because it would break an invariant
// (duplicate id, reorder while editing, index out of range). Callers treat it as a no-op.
var ErrRejected = errors.New("waypoint mutation rejected")

// Snapshot is an immutable view of the collection at a given version
type Snapshot struct {
	Version   uint64
	Waypoints []models.Waypoint
}

// Routable returns the snapshot's waypoints that take part in routing
func (s Snapshot) Routable() []models.Waypoint {
	return Routable(s.Waypoints)
}

// Find returns the waypoint with id
func (s Snapshot) Find(id string) (models.Waypoint, bool) {
	idx := IndexOf(s.Waypoints, id)
	if idx < 0 {
		return models.Waypoint{}, false
	}
	return s.Waypoints[idx], true
}

// Listener receives every published snapshot, in version order.
// Listeners must not call Update synchronously.
type Listener func(Snapshot)

// Store is the single source of truth for the ordered waypoint collection.
// Every mutation is one read-compute-publish step under the lock.
type Store struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	items     []models.Waypoint
	version   uint64
	listeners []Listener
}

// NewStore creates a store seeded with initial (which is copied)
func NewStore(initial []models.Waypoint) *Store {
	s := &Store{}
	for _, w := range initial {
		if next, ok := Append(s.items, w); ok {
			s.items = next
		}
	}
	return s
}

// NewID returns a fresh, never reused waypoint id
func NewID() string {
	return uuid.NewString()
}

// Snapshot returns the current collection
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]models.Waypoint, len(s.items))
	for i, w := range s.items {
		items[i] = w.Clone()
	}
	return Snapshot{Version: s.version, Waypoints: items}
}

// Subscribe registers a listener for future snapshots
func (s *Store) Subscribe(l Listener) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Update applies fn to the current collection and publishes the result.
// fn reports whether it changed anything; an unchanged result is not published.
// Returns the resulting snapshot and whether a new version was published.
func (s *Store) Update(fn func([]models.Waypoint) ([]models.Waypoint, bool)) (Snapshot, bool) {
	s.mu.Lock()
	next, changed := fn(s.items)
	if !changed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}
	s.items = next
	s.version++
	snap := s.snapshotLocked()

	// Take the notify lock before releasing the data lock so listeners see
	// snapshots in the order they were published.
	s.notifyMu.Lock()
	s.mu.Unlock()
	listeners := s.listeners
	for _, l := range listeners {
		l(snap)
	}
	s.notifyMu.Unlock()

	return snap, true
}

// Append adds wp at the end
func (s *Store) Append(wp models.Waypoint) (Snapshot, bool) {
	return s.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		return Append(list, wp)
	})
}

// Remove deletes id; unknown ids are a no-op
func (s *Store) Remove(id string) (Snapshot, bool) {
	return s.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		return Remove(list, id)
	})
}

// Replace swaps the waypoint with id for wp
func (s *Store) Replace(id string, wp models.Waypoint) (Snapshot, bool) {
	return s.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		return Replace(list, id, wp)
	})
}

// Move relocates the element at from to position to
func (s *Store) Move(from, to int) (Snapshot, bool) {
	return s.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		return Move(list, from, to)
	})
}

// InsertAfter places wp immediately after index
func (s *Store) InsertAfter(index int, wp models.Waypoint) (Snapshot, bool) {
	return s.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		return InsertAfter(list, index, wp)
	})
}

// SetCoordinate writes a new coordinate for id, leaving other attributes alone
func (s *Store) SetCoordinate(id string, coord models.Coordinates) (Snapshot, bool) {
	return s.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		return SetCoordinate(list, id, coord)
	})
}
