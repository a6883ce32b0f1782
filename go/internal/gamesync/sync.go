// Package gamesync refetches the authoritative game snapshot after a
// confirmed mutation and propagates it to dependent views.
package gamesync

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/huanshanxiaoyao/governor-game/go/internal/appstate"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

// ActionKind names the kind of confirmed mutation that requires a sync.
type ActionKind string

const (
	ActionTaxChange           ActionKind = "tax_change"
	ActionInvestment          ActionKind = "investment"
	ActionTurnAdvance         ActionKind = "turn_advance"
	ActionNegotiationResolved ActionKind = "negotiation_resolved"
	ActionNegotiationClosed   ActionKind = "negotiation_closed"
	ActionStaleSession        ActionKind = "stale_session"
)

// Action identifies one confirmed mutation. Every trigger that stems from the
// same mutation must carry the same Action.
type Action struct {
	ID   string
	Kind ActionKind
}

// NewAction creates an action with a fresh id.
func NewAction(kind ActionKind) Action {
	return Action{ID: uuid.New().String(), Kind: kind}
}

// SnapshotFetcher defines what the syncer needs from the game client.
type SnapshotFetcher interface {
	GetGame(ctx context.Context, gameID models.ID) (*models.GameSnapshot, error)
}

// Listener receives every freshly synced snapshot.
type Listener interface {
	SnapshotUpdated(gameID models.ID, snapshot *models.GameSnapshot)
}

// maxRemembered bounds the set of already-synced action ids.
const maxRemembered = 512

type Syncer struct {
	fetcher   SnapshotFetcher
	state     *appstate.State
	listeners []Listener
	group     singleflight.Group

	mu     sync.Mutex
	synced map[string]struct{}
	order  []string
}

// NewSyncer creates a syncer that writes into state and notifies listeners.
func NewSyncer(fetcher SnapshotFetcher, state *appstate.State, listeners ...Listener) *Syncer {
	return &Syncer{
		fetcher:   fetcher,
		state:     state,
		listeners: listeners,
		synced:    make(map[string]struct{}),
	}
}

// AddListener registers another snapshot listener. Not safe to call
// concurrently with Sync.
func (s *Syncer) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Sync fetches the snapshot for gameID on behalf of action. Concurrent calls
// for the same action share a single fetch, and an action that already synced
// successfully is not synced again.
func (s *Syncer) Sync(ctx context.Context, gameID models.ID, action Action) error {
	if s.alreadySynced(action.ID) {
		log.Debug().
			Str("game_id", gameID.String()).
			Str("action_id", action.ID).
			Str("action", string(action.Kind)).
			Msg("skipping duplicate sync")
		return nil
	}

	_, err, shared := s.group.Do(action.ID, func() (any, error) {
		if s.alreadySynced(action.ID) {
			return nil, nil
		}

		snapshot, err := s.fetcher.GetGame(ctx, gameID)
		if err != nil {
			return nil, err
		}

		s.markSynced(action.ID)
		s.state.SetGame(snapshot)
		for _, l := range s.listeners {
			l.SnapshotUpdated(gameID, snapshot)
		}
		return snapshot, nil
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("game_id", gameID.String()).
			Str("action", string(action.Kind)).
			Msg("game state sync failed")
		return fmt.Errorf("failed to sync game state: %w", err)
	}

	log.Debug().
		Str("game_id", gameID.String()).
		Str("action_id", action.ID).
		Str("action", string(action.Kind)).
		Bool("shared", shared).
		Msg("game state synced")
	return nil
}

func (s *Syncer) alreadySynced(actionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.synced[actionID]
	return ok
}

func (s *Syncer) markSynced(actionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[actionID] = struct{}{}
	s.order = append(s.order, actionID)
	if len(s.order) > maxRemembered {
		delete(s.synced, s.order[0])
		s.order = s.order[1:]
	}
}
