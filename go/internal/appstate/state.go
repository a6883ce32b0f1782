// Package appstate holds the client's process-wide application state: the
// current game snapshot and the active negotiation. It is created once and
// injected into the components that read or mutate it.
package appstate

import (
	"sync"

	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

// State is safe for concurrent use.
type State struct {
	mu                sync.RWMutex
	game              *models.GameSnapshot
	activeNegotiation *models.NegotiationSession
}

func New() *State {
	return &State{}
}

// CurrentGame returns a copy of the current snapshot, or nil.
func (s *State) CurrentGame() *models.GameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.game == nil {
		return nil
	}
	g := *s.game
	return &g
}

// SetGame replaces the current snapshot.
func (s *State) SetGame(game *models.GameSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if game == nil {
		s.game = nil
		return
	}
	g := *game
	s.game = &g
}

// ActiveNegotiation returns a copy of the active negotiation, or nil.
func (s *State) ActiveNegotiation() *models.NegotiationSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeNegotiation == nil {
		return nil
	}
	n := *s.activeNegotiation
	return &n
}

// SetActiveNegotiation records the active negotiation.
func (s *State) SetActiveNegotiation(session *models.NegotiationSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.activeNegotiation = nil
		return
	}
	n := *session
	s.activeNegotiation = &n
}

// ClearActiveNegotiation clears the active negotiation if it is sessionID.
// It returns false when a different (or no) session is recorded.
func (s *State) ClearActiveNegotiation(sessionID models.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeNegotiation == nil || s.activeNegotiation.ID != sessionID {
		return false
	}
	s.activeNegotiation = nil
	return true
}
