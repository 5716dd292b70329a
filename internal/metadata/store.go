package metadata

import (
	"sync"
	"sync/atomic"
	"time"
)

// store is a copy-on-write snapshot holder. Readers load the current
// pointer without locking; writers serialize on mu and publish a new map.
type store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Snapshot]
	// generation is bumped by every wholesale write (replace, set). A
	// single-board write that began under an older generation is dropped.
	generation uint64
}

func newStore() *store {
	s := &store{}
	s.cur.Store(&Snapshot{Boards: map[string]Board{}})
	return s
}

func (s *store) load() *Snapshot { return s.cur.Load() }

func (s *store) board(id string) (Board, bool) {
	b, ok := s.load().Boards[id]
	return b, ok
}

// begin records the generation a single-board fetch starts under.
func (s *store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// superseded reports whether a write for id that started at start under
// gen would overwrite newer data. Callers hold mu.
func (s *store) superseded(old *Snapshot, id string, gen uint64, start time.Time) bool {
	if s.generation != gen {
		return true
	}
	existing, ok := old.Boards[id]
	return ok && existing.SyncedAt.After(start)
}

// put installs one board fetched from start under gen, keeping every other
// entry. It reports false, and installs nothing, when a newer write for the
// board landed while the fetch was in flight.
func (s *store) put(b Board, gen uint64) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.load()
	if s.superseded(old, b.ID, gen, b.SyncedAt) {
		return old, false
	}
	next := &Snapshot{Boards: make(map[string]Board, len(old.Boards)+1), LastFullSync: old.LastFullSync}
	for id, existing := range old.Boards {
		next.Boards[id] = existing
	}
	next.Boards[b.ID] = b
	s.cur.Store(next)
	return next, true
}

// remove drops one board unless it was rewritten after start.
func (s *store) remove(id string, gen uint64, start time.Time) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.load()
	if _, ok := old.Boards[id]; !ok || s.superseded(old, id, gen, start) {
		return old
	}
	next := &Snapshot{Boards: make(map[string]Board, len(old.Boards)), LastFullSync: old.LastFullSync}
	for bid, existing := range old.Boards {
		if bid != id {
			next.Boards[bid] = existing
		}
	}
	s.cur.Store(next)
	return next
}

// replace swaps in a whole new board set.
func (s *store) replace(boards []Board, at time.Time) *Snapshot {
	next := &Snapshot{Boards: make(map[string]Board, len(boards)), LastFullSync: at}
	for _, b := range boards {
		next.Boards[b.ID] = b
	}
	s.mu.Lock()
	s.generation++
	s.cur.Store(next)
	s.mu.Unlock()
	return next
}

// set installs snap as loaded from persistence.
func (s *store) set(snap Snapshot) {
	c := snap.Clone()
	s.mu.Lock()
	s.generation++
	s.cur.Store(&c)
	s.mu.Unlock()
}
