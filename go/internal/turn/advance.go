// Package turn drives the end-of-month turn advance: settle the month on the
// server, resync the game, then kick off neighbor precompute and surface any
// negotiation the settlement raised.
package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/huanshanxiaoyao/governor-game/go/internal/events"
	"github.com/huanshanxiaoyao/governor-game/go/internal/gamesync"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

// ErrAdvanceInFlight is returned while a turn advance for the same game is pending.
var ErrAdvanceInFlight = errors.New("turn advance already in progress")

// API defines what the advancer needs from the game client
type API interface {
	AdvanceTurn(ctx context.Context, gameID models.ID) (*models.AdvanceReport, error)
}

// Syncer defines what the advancer needs from game state sync
type Syncer interface {
	Sync(ctx context.Context, gameID models.ID, action gamesync.Action) error
}

// Precompute defines what the advancer needs from the precompute scheduler
type Precompute interface {
	Trigger(ctx context.Context, gameID models.ID)
}

// Negotiations defines what the advancer needs from the negotiation client
type Negotiations interface {
	CheckActive(ctx context.Context, gameID models.ID) (*models.NegotiationSession, error)
}

type Advancer struct {
	api          API
	syncer       Syncer
	precompute   Precompute
	negotiations Negotiations
	publisher    events.Publisher

	mu       sync.Mutex
	inFlight map[models.ID]struct{}
}

func NewAdvancer(api API, syncer Syncer, precompute Precompute, negotiations Negotiations, publisher events.Publisher) *Advancer {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Advancer{
		api:          api,
		syncer:       syncer,
		precompute:   precompute,
		negotiations: negotiations,
		publisher:    publisher,
		inFlight:     make(map[models.ID]struct{}),
	}
}

// Advance settles the current month. Nothing is synced when the server call
// fails. Sync and follow-up failures after a confirmed advance are logged and
// do not fail the advance.
func (a *Advancer) Advance(ctx context.Context, gameID models.ID) (*models.AdvanceReport, error) {
	if !a.acquire(gameID) {
		return nil, ErrAdvanceInFlight
	}
	defer a.release(gameID)

	log.Info().Str("game_id", gameID.String()).Msg("advancing turn")

	report, err := a.api.AdvanceTurn(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("turn advance failed")
		return nil, fmt.Errorf("failed to advance turn: %w", err)
	}

	a.publisher.Publish(events.New(gameID, events.TypeTurnAdvanced, events.TurnAdvancedPayload{
		Season:   report.Season,
		GameOver: report.GameOver,
		Report:   report.Raw,
	}))

	if err := a.syncer.Sync(ctx, gameID, gamesync.NewAction(gamesync.ActionTurnAdvance)); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("sync after turn advance failed")
	}

	if report.GameOver {
		log.Info().Str("game_id", gameID.String()).Int("season", report.Season).Msg("term complete")
		return report, nil
	}

	a.precompute.Trigger(ctx, gameID)

	if _, err := a.negotiations.CheckActive(ctx, gameID); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to check negotiations after advance")
	}

	return report, nil
}

func (a *Advancer) acquire(gameID models.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[gameID]; busy {
		return false
	}
	a.inFlight[gameID] = struct{}{}
	return true
}

func (a *Advancer) release(gameID models.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, gameID)
}
