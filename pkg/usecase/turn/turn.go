// Package turn orchestrates one chat turn: reference resolution against
// the session's conversation state, hybrid search, and observation of the
// outgoing results so the next turn's references resolve.
package turn

import (
	"sync"

	"github.com/whippetlabs/whippet/pkg/adapter"
	"github.com/whippetlabs/whippet/pkg/conversation"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/search"
)

// UseCase processes chat turns for sessions of one deployment
type UseCase struct {
	store        adapter.SessionStore
	orchestrator *search.Orchestrator
	storage      adapter.Storage
	window       int

	// Per-session mutexes serialize the read-modify-write of conversation
	// state; two concurrent turns for the same session must never race.
	// Entries are never removed: the map is bounded by sessions active in
	// this process lifetime.
	locks sync.Map
}

// NewInput contains dependencies for creating a turn UseCase
type NewInput struct {
	Store        adapter.SessionStore
	Orchestrator *search.Orchestrator

	// Storage is optional; without it Archive returns an error
	Storage adapter.Storage

	// RecencyWindow overrides the alias-resolution window in turns
	RecencyWindow int
}

// New creates a turn UseCase
func New(input NewInput) *UseCase {
	window := input.RecencyWindow
	if window <= 0 {
		window = conversation.DefaultRecencyWindow
	}
	return &UseCase{
		store:        input.Store,
		orchestrator: input.Orchestrator,
		storage:      input.Storage,
		window:       window,
	}
}

func (u *UseCase) lock(id model.SessionID) func() {
	v, _ := u.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
