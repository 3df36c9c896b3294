package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mess/internal/apperr"
	"mess/internal/attendance"
	"mess/internal/digest"
	"mess/internal/meal"
	"mess/internal/roster"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type dispatched struct {
	title string
	body  string
	meta  map[string]string
}

type fakeTransport struct {
	mu          sync.Mutex
	granted     bool
	permErr     error
	dispatchErr error
	sent        []dispatched
	cancels     int
}

func (t *fakeTransport) RequestPermission(context.Context) (bool, error) {
	return t.granted, t.permErr
}

func (t *fakeTransport) Dispatch(_ context.Context, title, body string, meta map[string]string) (string, error) {
	if t.dispatchErr != nil {
		return "", t.dispatchErr
	}
	t.mu.Lock()
	t.sent = append(t.sent, dispatched{title: title, body: body, meta: meta})
	t.mu.Unlock()
	return "n-1", nil
}

func (t *fakeTransport) CancelAll(context.Context) error {
	t.mu.Lock()
	t.cancels++
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

// failingStore simulates a transient outage that heals.
type failingStore struct {
	attendance.Store
	mu      sync.Mutex
	failing bool
}

func (s *failingStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *failingStore) QueryUpdatedBetween(ctx context.Context, day, from, to time.Time) ([]attendance.Record, error) {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return nil, apperr.Transient(errors.New("connection refused"), "attendance window query failed")
	}
	return s.Store.QueryUpdatedBetween(ctx, day, from, to)
}

// breakfastAt is 08:05 on a fixed day, inside the default breakfast
// window.
var breakfastAt = time.Date(2024, 3, 12, 8, 5, 0, 0, time.UTC)

type fixture struct {
	clock     *fakeClock
	store     *failingStore
	dir       *roster.InMemoryDirectory
	settings  *MemorySettings
	transport *fakeTransport
	sched     *Scheduler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clock := &fakeClock{now: breakfastAt}
	store := &failingStore{Store: attendance.NewInMemoryStore()}
	join := breakfastAt.AddDate(0, -1, 0)
	end := breakfastAt.AddDate(0, 1, 0)
	dir := roster.NewInMemoryDirectory(
		roster.Student{ID: "s1", Name: "Aisha", RollNumber: "101", PlanID: "p-full",
			PlanMeals: "Breakfast, Lunch, Dinner", IsActive: true, JoinDate: join, EndDate: end},
		roster.Student{ID: "s2", Name: "Rahul", RollNumber: "102", PlanID: "p-full",
			PlanMeals: "Breakfast, Lunch, Dinner", IsActive: true, JoinDate: join, EndDate: end},
	)
	dig := digest.NewService(store, dir, meal.NewResolver()).
		WithNow(clock.Now)
	settings := NewMemorySettings(cfg)
	transport := &fakeTransport{granted: true}
	return &fixture{
		clock:     clock,
		store:     store,
		dir:       dir,
		settings:  settings,
		transport: transport,
		sched:     NewScheduler(dig, settings, transport, clock),
	}
}

func (f *fixture) markBreakfast(t *testing.T, studentID string, at time.Time) {
	t.Helper()
	_, err := f.store.Upsert(context.Background(), studentID, at, attendance.Marks{meal.Breakfast: true}, at)
	require.NoError(t, err)
}

func enabledConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.FrequencyMinutes = 10
	return cfg
}

func TestTickDispatchesBreakfastDigest(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	require.NoError(t, f.sched.Enable(ctx))

	f.markBreakfast(t, "s1", breakfastAt.Add(-7*time.Minute))
	f.markBreakfast(t, "s2", breakfastAt.Add(-2*time.Minute))

	f.sched.Tick(ctx)

	require.Equal(t, 1, f.transport.sentCount())
	sent := f.transport.sent[0]
	assert.Contains(t, sent.body, "Breakfast: 2 students marked")
	assert.Contains(t, sent.body, "Aisha")
	assert.Contains(t, sent.body, "Rahul")
	assert.Contains(t, sent.body, "Today: 2/2 (100%)")
	assert.Contains(t, sent.title, "Mess Attendance")
	assert.NotEmpty(t, sent.meta["window_start"])
}

func TestTickSkipsOutsideActiveHours(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	require.NoError(t, f.sched.Enable(ctx))

	// 11:30 sits between breakfast and lunch windows; pending activity
	// must not leak out.
	f.clock.Advance(3*time.Hour + 25*time.Minute)
	f.markBreakfast(t, "s1", f.clock.Now().Add(-time.Minute))

	f.sched.Tick(ctx)
	assert.Equal(t, 0, f.transport.sentCount())
}

func TestTickQuietWindowSkipsDispatch(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	require.NoError(t, f.sched.Enable(ctx))

	f.sched.Tick(ctx)
	assert.Equal(t, 0, f.transport.sentCount(), "sentinel pair must not be dispatched")

	// The quiet window still advances; the next due tick starts there.
	assert.Equal(t, breakfastAt, f.sched.lastWindowEnd)
}

func TestTickHonoursFrequency(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	require.NoError(t, f.sched.Enable(ctx))

	f.markBreakfast(t, "s1", breakfastAt.Add(-time.Minute))
	f.sched.Tick(ctx)
	require.Equal(t, 1, f.transport.sentCount())

	// One minute later: not due yet.
	f.clock.Advance(time.Minute)
	f.markBreakfast(t, "s2", f.clock.Now())
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.transport.sentCount())

	// Ten minutes past the first fire: due again, window picks up s2.
	f.clock.Advance(9 * time.Minute)
	f.sched.Tick(ctx)
	require.Equal(t, 2, f.transport.sentCount())
	assert.Contains(t, f.transport.sent[1].body, "Rahul")
}

func TestTickSurvivesStoreFailure(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	require.NoError(t, f.sched.Enable(ctx))

	f.markBreakfast(t, "s1", breakfastAt.Add(-time.Minute))
	f.store.setFailing(true)
	f.sched.Tick(ctx)
	assert.Equal(t, 0, f.transport.sentCount())

	// The outage heals; the next tick covers the same span and fires.
	f.store.setFailing(false)
	f.clock.Advance(time.Minute)
	f.sched.Tick(ctx)
	require.Equal(t, 1, f.transport.sentCount())
	assert.Contains(t, f.transport.sent[0].body, "Aisha")
}

func TestTickSurvivesDispatchFailure(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	require.NoError(t, f.sched.Enable(ctx))

	f.markBreakfast(t, "s1", breakfastAt.Add(-time.Minute))
	f.transport.dispatchErr = errors.New("push gateway down")
	f.sched.Tick(ctx)
	assert.Equal(t, 0, f.transport.sentCount())

	// Still alive on the next due tick.
	f.transport.dispatchErr = nil
	f.clock.Advance(10 * time.Minute)
	f.markBreakfast(t, "s2", f.clock.Now().Add(-time.Minute))
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.transport.sentCount())
}

func TestDisabledConfigIsAbsorbing(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.markBreakfast(t, "s1", breakfastAt.Add(-time.Minute))
	f.sched.Tick(ctx)
	f.clock.Advance(10 * time.Minute)
	f.sched.Tick(ctx)
	assert.Equal(t, 0, f.transport.sentCount())
}

func TestEnableDeniedPermissionBlocksRunning(t *testing.T) {
	f := newFixture(t, enabledConfig())
	f.transport.granted = false
	ctx := context.Background()

	err := f.sched.Enable(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsPermission(err))

	f.markBreakfast(t, "s1", breakfastAt.Add(-time.Minute))
	f.sched.Tick(ctx)
	assert.Equal(t, 0, f.transport.sentCount())
}

func TestDisableCancelsAndReEnableStartsFresh(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	require.NoError(t, f.sched.Enable(ctx))

	f.markBreakfast(t, "s1", breakfastAt.Add(-time.Minute))
	f.sched.Tick(ctx)
	require.Equal(t, 1, f.transport.sentCount())

	require.NoError(t, f.sched.Disable(ctx))
	assert.Equal(t, 1, f.transport.cancels)

	cfg, err := f.settings.Load(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	// Disabled: nothing fires even when due.
	f.clock.Advance(20 * time.Minute)
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.transport.sentCount())

	// Re-enable starts a fresh cycle, no replay of the missed window.
	require.NoError(t, f.sched.Enable(ctx))
	assert.True(t, f.sched.lastWindowEnd.IsZero())
}

func TestSchedulerPicksUpEnableFromSettings(t *testing.T) {
	// The api process flips the flag in shared settings; the notifier's
	// scheduler re-requests permission on its next tick.
	cfg := enabledConfig()
	cfg.Enabled = false
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.sched.Tick(ctx)
	assert.Equal(t, 0, f.transport.sentCount())

	cfg.Enabled = true
	require.NoError(t, f.settings.Save(ctx, cfg))
	f.markBreakfast(t, "s1", breakfastAt.Add(-time.Minute))
	f.sched.Tick(ctx)
	assert.Equal(t, 1, f.transport.sentCount())
}
