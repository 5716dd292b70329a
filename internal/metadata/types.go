package metadata

import (
	"context"
	"sort"
	"time"
)

// Column describes one field of a board.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Board is the cached metadata of one board. Columns is only ever replaced
// wholesale.
type Board struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Columns  []Column  `json:"columns"`
	SyncedAt time.Time `json:"syncedAt"`
}

// ColumnIDs returns the ids of b's columns in order.
func (b Board) ColumnIDs() []string {
	ids := make([]string, len(b.Columns))
	for i, col := range b.Columns {
		ids[i] = col.ID
	}
	return ids
}

func (b Board) clone() Board {
	out := b
	if b.Columns != nil {
		out.Columns = make([]Column, len(b.Columns))
		copy(out.Columns, b.Columns)
	}
	return out
}

// Snapshot is the whole metadata store. A missing key means the board was
// never synced; a present key with no columns means it was synced empty.
type Snapshot struct {
	Boards       map[string]Board `json:"boards"`
	LastFullSync time.Time        `json:"lastFullSync,omitempty"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Boards: make(map[string]Board, len(s.Boards)), LastFullSync: s.LastFullSync}
	for id, b := range s.Boards {
		out.Boards[id] = b.clone()
	}
	return out
}

// BoardIDs returns the known board ids, sorted.
func (s Snapshot) BoardIDs() []string {
	ids := make([]string, 0, len(s.Boards))
	for id := range s.Boards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ColumnCount is the total number of columns across all boards.
func (s Snapshot) ColumnCount() int {
	n := 0
	for _, b := range s.Boards {
		n += len(b.Columns)
	}
	return n
}

// SyncResult reports a completed full sync.
type SyncResult struct {
	Duration     time.Duration
	BoardCount   int
	ColumnCount  int
	LastFullSync time.Time
}

// Fetcher reads board metadata from the remote API.
type Fetcher interface {
	// FetchBoard returns one board or *ResourceNotFoundError.
	FetchBoard(ctx context.Context, boardID string) (Board, error)
	// FetchBoards returns the given boards. A nil ids slice lists every
	// board visible to the caller.
	FetchBoards(ctx context.Context, ids []string) ([]Board, error)
}

// Persister stores snapshots across restarts. Load returns nil when
// nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}
