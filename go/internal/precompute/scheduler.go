package precompute

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/huanshanxiaoyao/governor-game/go/internal/events"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

/*
Scheduler reports progress of the server's neighbor AI precompute.

LIFECYCLE:
Stopped → Start → Polling → (status done | poll failure | idle | Stop) → Stopped

Each Start owns a fresh task: its own ticker, its own seen set and a
cancel func. Starting while polling cancels the prior task first, so a
client never holds more than one ticker. A poll result that arrives after
its task was superseded is dropped, and a stopped task emits no further
notifications.

The engine reports "idle" when nothing is computing and nothing finished,
which is also what a failed trigger leaves behind. IdleLimit consecutive
idle polls without new neighbors end the lifecycle quietly.
*/

// DefaultInterval is how often precompute status is polled.
const DefaultInterval = 3000 * time.Millisecond

// IdleLimit is how many consecutive idle polls end a lifecycle.
const IdleLimit = 3

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// API defines what the scheduler needs from the game client
type API interface {
	TriggerPrecompute(ctx context.Context, gameID models.ID) error
	GetPrecomputeStatus(ctx context.Context, gameID models.ID) (*models.PrecomputeStatus, error)
}

// Notifier receives progress notifications. Implementations must not call
// back into the Scheduler.
type Notifier interface {
	NeighborCompleted(gameID models.ID, neighbor models.CompletedNeighbor)
	AllComplete(gameID models.ID, completed int)
}

type task struct {
	gameID     models.ID
	generation uint64
	ticker     clockwork.Ticker
	cancel     context.CancelFunc
	seen       map[int64]struct{}
	idlePolls  int
	stopOnce   sync.Once

	// notifyMu guards stopped; notifications are emitted while holding it.
	notifyMu sync.Mutex
	stopped  bool
}

// stop is idempotent. It waits for notifications already being emitted.
func (t *task) stop() {
	t.stopOnce.Do(func() {
		t.cancel()
		t.ticker.Stop()
		t.notifyMu.Lock()
		t.stopped = true
		t.notifyMu.Unlock()
	})
}

type Scheduler struct {
	api      API
	notifier Notifier
	clock    Clock
	interval time.Duration

	mu         sync.Mutex
	current    *task
	generation uint64
}

// NewScheduler creates a stopped scheduler polling every interval.
func NewScheduler(api API, notifier Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		api:      api,
		notifier: notifier,
		clock:    clockwork.NewRealClock(),
		interval: interval,
	}
}

// WithClock replaces the scheduler's clock. Must be called before Start.
func (s *Scheduler) WithClock(clock Clock) *Scheduler {
	s.clock = clock
	return s
}

// Start begins a fresh polling lifecycle for gameID. Any running lifecycle is
// cancelled first and the seen set starts empty. Polling outlives ctx's
// cancellation; use Stop to end it.
func (s *Scheduler) Start(ctx context.Context, gameID models.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		log.Debug().
			Str("game_id", s.current.gameID.String()).
			Uint64("generation", s.current.generation).
			Msg("cancelling previous precompute poller")
		s.current.stop()
		s.current = nil
	}

	s.generation++
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &task{
		gameID:     gameID,
		generation: s.generation,
		ticker:     s.clock.NewTicker(s.interval),
		cancel:     cancel,
		seen:       make(map[int64]struct{}),
	}
	s.current = t

	log.Info().
		Str("game_id", gameID.String()).
		Uint64("generation", t.generation).
		Dur("interval", s.interval).
		Msg("started precompute poller")

	go s.run(taskCtx, t)
}

// Trigger asks the server to begin precomputing and starts polling. A failed
// trigger is logged; polling starts regardless since the server may already
// be computing.
func (s *Scheduler) Trigger(ctx context.Context, gameID models.ID) {
	if err := s.api.TriggerPrecompute(ctx, gameID); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to trigger neighbor precompute")
	}
	s.Start(ctx, gameID)
}

// Stop ends the current lifecycle. Safe to call when already stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	log.Debug().Str("game_id", s.current.gameID.String()).Msg("stopped precompute poller")
	s.current.stop()
	s.current = nil
}

// Running reports whether a lifecycle is polling.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.ticker.Chan():
			if !s.poll(ctx, t) {
				s.finish(t)
				return
			}
		}
	}
}

// poll fetches status once. It returns false when the lifecycle is over.
func (s *Scheduler) poll(ctx context.Context, t *task) bool {
	status, err := s.api.GetPrecomputeStatus(ctx, t.gameID)
	if err != nil {
		// Progress reporting is best effort; a failed poll ends the lifecycle quietly.
		log.Debug().Err(err).Str("game_id", t.gameID.String()).Msg("precompute poll failed, stopping")
		return false
	}

	s.mu.Lock()
	if s.current != t || ctx.Err() != nil {
		s.mu.Unlock()
		log.Debug().Str("game_id", t.gameID.String()).Uint64("generation", t.generation).Msg("dropping superseded precompute status")
		return false
	}
	var fresh []models.CompletedNeighbor
	for _, n := range status.Completed {
		if _, ok := t.seen[n.NeighborID]; ok {
			continue
		}
		t.seen[n.NeighborID] = struct{}{}
		fresh = append(fresh, n)
	}
	seen := len(t.seen)
	if status.Status.Idle() && len(fresh) == 0 {
		t.idlePolls++
	} else {
		t.idlePolls = 0
	}
	idlePolls := t.idlePolls
	s.mu.Unlock()

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	if t.stopped {
		return false
	}

	for _, n := range fresh {
		s.notifier.NeighborCompleted(t.gameID, n)
	}

	if status.Status.Done() {
		log.Info().Str("game_id", t.gameID.String()).Int("completed", seen).Msg("neighbor precompute done")
		s.notifier.AllComplete(t.gameID, seen)
		return false
	}
	if idlePolls >= IdleLimit {
		log.Info().Str("game_id", t.gameID.String()).Int("completed", seen).Msg("neighbor precompute idle, stopping")
		return false
	}
	return true
}

func (s *Scheduler) finish(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.stop()
	if s.current == t {
		s.current = nil
	}
}

// EventNotifier turns progress notifications into view events.
type EventNotifier struct {
	Publisher events.Publisher
}

func (n EventNotifier) NeighborCompleted(gameID models.ID, neighbor models.CompletedNeighbor) {
	n.Publisher.Publish(events.New(gameID, events.TypeNeighborCompleted, events.NeighborCompletedPayload{
		Neighbor: neighbor,
	}))
}

func (n EventNotifier) AllComplete(gameID models.ID, completed int) {
	n.Publisher.Publish(events.New(gameID, events.TypePrecomputeDone, events.PrecomputeDonePayload{
		Completed: completed,
	}))
}
