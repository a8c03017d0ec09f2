// Package docstate keeps per-document symbol state and schedules debounced
// extraction passes for it. Every exported method of Store and Tracker must be
// called on the UI context; workers only hand results back through it.
package docstate

import (
	"errors"
	"sort"
	"time"

	"github.com/lexcodex/yamlnav/framework/symbols"
)

// ErrDocumentClosed reports that a pass outlived its document.
var ErrDocumentClosed = errors.New("document closed")

// DocumentID identifies an open document, e.g. an LSP URI or a file path.
type DocumentID string

// Phase is the scheduling state of one document.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScheduled
	PhaseRecomputing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScheduled:
		return "scheduled"
	case PhaseRecomputing:
		return "recomputing"
	default:
		return "unknown"
	}
}

// DocumentState is everything the tracker remembers about one document.
type DocumentState struct {
	ID         DocumentID
	Generation uint64

	Symbols  symbols.List
	Lines    *symbols.LineIndex
	Computed bool

	Active    symbols.Symbol
	HasActive bool

	Phase    Phase
	LastEdit time.Time
	// Edits counts edit events; a pass remembers the value it started at to
	// notice edits that raced it.
	Edits uint64

	passEdits uint64
	timer     Timer
}

func (s *DocumentState) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Store maps document IDs to their state.
type Store struct {
	docs    map[DocumentID]*DocumentState
	nextGen uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{docs: make(map[DocumentID]*DocumentState)}
}

// Get returns the state for id without creating it.
func (s *Store) Get(id DocumentID) (*DocumentState, bool) {
	st, ok := s.docs[id]
	return st, ok
}

// Ensure returns the state for id, creating an empty one on first access.
// Every created state gets a fresh generation so results computed for an
// earlier incarnation of the same ID can be told apart.
func (s *Store) Ensure(id DocumentID) (*DocumentState, bool) {
	if st, ok := s.docs[id]; ok {
		return st, false
	}
	s.nextGen++
	st := &DocumentState{
		ID:         id,
		Generation: s.nextGen,
		Symbols:    symbols.List{},
		Lines:      symbols.NewLineIndex(""),
	}
	s.docs[id] = st
	return st, true
}

// Delete drops the state for id and stops its timer.
func (s *Store) Delete(id DocumentID) bool {
	st, ok := s.docs[id]
	if !ok {
		return false
	}
	st.stopTimer()
	delete(s.docs, id)
	return true
}

// Len returns the number of tracked documents.
func (s *Store) Len() int { return len(s.docs) }

// IDs returns the tracked document IDs sorted.
func (s *Store) IDs() []DocumentID {
	ids := make([]DocumentID, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
