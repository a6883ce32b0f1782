package precompute

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huanshanxiaoyao/governor-game/go/internal/events"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

const (
	interval = 3 * time.Second
	timeout  = time.Second
	tick     = 5 * time.Millisecond
)

// fakeAPI returns statuses in order, repeating the last one.
type fakeAPI struct {
	mu         sync.Mutex
	statuses   []*models.PrecomputeStatus
	err        error
	fetches    int
	triggers   int
	triggerErr error
}

func (f *fakeAPI) TriggerPrecompute(ctx context.Context, gameID models.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return f.triggerErr
}

func (f *fakeAPI) GetPrecomputeStatus(ctx context.Context, gameID models.ID) (*models.PrecomputeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	i := f.fetches - 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type recordingNotifier struct {
	mu        sync.Mutex
	neighbors []int64
	done      []int
}

func (n *recordingNotifier) NeighborCompleted(gameID models.ID, neighbor models.CompletedNeighbor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.neighbors = append(n.neighbors, neighbor.NeighborID)
}

func (n *recordingNotifier) AllComplete(gameID models.ID, completed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.done = append(n.done, completed)
}

func (n *recordingNotifier) neighborIDs() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.neighbors...)
}

func (n *recordingNotifier) doneCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.done)
}

func neighbor(id int64) models.CompletedNeighbor {
	return models.CompletedNeighbor{NeighborID: id, CountyName: "邻县", GovernorName: "某知县"}
}

func pending(ids ...int64) *models.PrecomputeStatus {
	s := &models.PrecomputeStatus{Status: models.PrecomputeStatePending}
	for _, id := range ids {
		s.Completed = append(s.Completed, neighbor(id))
	}
	return s
}

func done(ids ...int64) *models.PrecomputeStatus {
	s := pending(ids...)
	s.Status = models.PrecomputeStateDone
	return s
}

func idle() *models.PrecomputeStatus {
	return &models.PrecomputeStatus{Status: models.PrecomputeStateIdle}
}

func newTestScheduler(api *fakeAPI) (*Scheduler, *recordingNotifier, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	notifier := &recordingNotifier{}
	return NewScheduler(api, notifier, interval).WithClock(clock), notifier, clock
}

func waitForTickers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestEachNeighborIsReportedOnce(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{pending(7), pending(7, 9)}}
	scheduler, notifier, clock := newTestScheduler(api)

	scheduler.Start(context.Background(), "g1")
	defer scheduler.Stop()
	waitForTickers(t, clock, 1)

	clock.Advance(interval)
	require.Eventually(t, func() bool { return len(notifier.neighborIDs()) == 1 }, timeout, tick)
	assert.Equal(t, []int64{7}, notifier.neighborIDs())

	clock.Advance(interval)
	require.Eventually(t, func() bool { return api.fetchCount() == 2 }, timeout, tick)
	require.Eventually(t, func() bool { return len(notifier.neighborIDs()) == 2 }, timeout, tick)
	assert.Equal(t, []int64{7, 9}, notifier.neighborIDs())
	assert.Equal(t, 0, notifier.doneCount())
	assert.True(t, scheduler.Running())
}

func TestDoneStopsAndRestartBeginsFreshLifecycle(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{done(7, 9)}}
	scheduler, notifier, clock := newTestScheduler(api)

	scheduler.Start(context.Background(), "g1")
	waitForTickers(t, clock, 1)
	clock.Advance(interval)

	require.Eventually(t, func() bool { return notifier.doneCount() == 1 }, timeout, tick)
	require.Eventually(t, func() bool { return !scheduler.Running() }, timeout, tick)
	assert.Equal(t, []int64{7, 9}, notifier.neighborIDs())
	waitForTickers(t, clock, 0)

	clock.Advance(interval)
	assert.Equal(t, 1, api.fetchCount())

	scheduler.Start(context.Background(), "g1")
	defer scheduler.Stop()
	waitForTickers(t, clock, 1)
	clock.Advance(interval)

	require.Eventually(t, func() bool { return notifier.doneCount() == 2 }, timeout, tick)
	assert.Equal(t, []int64{7, 9, 7, 9}, notifier.neighborIDs())
}

func TestRestartKeepsSingleTicker(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{pending(3)}}
	scheduler, notifier, clock := newTestScheduler(api)

	scheduler.Start(context.Background(), "g1")
	scheduler.Start(context.Background(), "g1")
	defer scheduler.Stop()
	waitForTickers(t, clock, 1)

	clock.Advance(interval)
	require.Eventually(t, func() bool { return api.fetchCount() == 1 }, timeout, tick)
	require.Eventually(t, func() bool { return len(notifier.neighborIDs()) == 1 }, timeout, tick)
	assert.Never(t, func() bool { return api.fetchCount() > 1 }, 50*time.Millisecond, tick)
}

func TestPollFailureStopsSilently(t *testing.T) {
	api := &fakeAPI{err: errors.New("connection refused")}
	scheduler, notifier, clock := newTestScheduler(api)

	scheduler.Start(context.Background(), "g1")
	waitForTickers(t, clock, 1)
	clock.Advance(interval)

	require.Eventually(t, func() bool { return !scheduler.Running() }, timeout, tick)
	waitForTickers(t, clock, 0)
	assert.Empty(t, notifier.neighborIDs())
	assert.Equal(t, 0, notifier.doneCount())
	assert.Equal(t, 1, api.fetchCount())
}

func TestStopIsIdempotent(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{pending()}}
	scheduler, _, clock := newTestScheduler(api)

	scheduler.Stop()
	scheduler.Start(context.Background(), "g1")
	waitForTickers(t, clock, 1)

	scheduler.Stop()
	scheduler.Stop()
	assert.False(t, scheduler.Running())
	waitForTickers(t, clock, 0)

	clock.Advance(interval)
	assert.Equal(t, 0, api.fetchCount())
}

func TestPollingOutlivesStartContext(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{pending(1)}}
	scheduler, notifier, clock := newTestScheduler(api)

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx, "g1")
	defer scheduler.Stop()
	cancel()

	waitForTickers(t, clock, 1)
	clock.Advance(interval)
	require.Eventually(t, func() bool { return len(notifier.neighborIDs()) == 1 }, timeout, tick)
}

func TestTriggerStartsPollingEvenWhenTriggerFails(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{pending()}, triggerErr: errors.New("busy")}
	scheduler, _, clock := newTestScheduler(api)

	scheduler.Trigger(context.Background(), "g1")
	defer scheduler.Stop()

	assert.Equal(t, 1, api.triggers)
	assert.True(t, scheduler.Running())
	waitForTickers(t, clock, 1)
}

func TestIdleEngineEndsLifecycle(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{idle()}}
	scheduler, notifier, clock := newTestScheduler(api)

	scheduler.Trigger(context.Background(), "g1")
	waitForTickers(t, clock, 1)

	for i := 1; i <= IdleLimit; i++ {
		clock.Advance(interval)
		require.Eventually(t, func() bool { return api.fetchCount() == i }, timeout, tick)
	}

	require.Eventually(t, func() bool { return !scheduler.Running() }, timeout, tick)
	waitForTickers(t, clock, 0)
	assert.Equal(t, 0, notifier.doneCount())
}

func TestProgressResetsIdleCount(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{idle(), idle(), pending(4), idle(), idle(), pending(4)}}
	scheduler, notifier, clock := newTestScheduler(api)

	scheduler.Start(context.Background(), "g1")
	defer scheduler.Stop()
	waitForTickers(t, clock, 1)

	for i := 1; i <= 6; i++ {
		clock.Advance(interval)
		require.Eventually(t, func() bool { return api.fetchCount() == i }, timeout, tick)
	}

	assert.Equal(t, []int64{4}, notifier.neighborIDs())
	assert.True(t, scheduler.Running())
}

func TestStoppedTaskEmitsNothing(t *testing.T) {
	api := &fakeAPI{statuses: []*models.PrecomputeStatus{done(5)}}
	scheduler, notifier, _ := newTestScheduler(api)

	scheduler.Start(context.Background(), "g1")
	defer scheduler.Stop()

	scheduler.mu.Lock()
	current := scheduler.current
	scheduler.mu.Unlock()
	current.stop()

	assert.False(t, scheduler.poll(context.Background(), current))
	assert.Empty(t, notifier.neighborIDs())
	assert.Equal(t, 0, notifier.doneCount())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(event *events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func TestEventNotifierPublishesViewEvents(t *testing.T) {
	pub := &recordingPublisher{}
	n := EventNotifier{Publisher: pub}

	n.NeighborCompleted("g1", neighbor(7))
	n.AllComplete("g1", 1)

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.TypeNeighborCompleted, pub.events[0].Type)
	assert.JSONEq(t, `{"neighbor":{"neighbor_id":7,"county_name":"邻县","governor_name":"某知县"}}`, string(pub.events[0].Data))
	assert.Equal(t, events.TypePrecomputeDone, pub.events[1].Type)
	assert.Equal(t, "g1", pub.events[1].GameID)
}
