package idle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlegate/internal/broadcast"
	"idlegate/internal/clock"
	"idlegate/internal/constants"
	"idlegate/internal/storage"
)

var t0 = time.Date(2025, 9, 14, 8, 30, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		IdleMax:       15 * time.Second,
		Warning:       5 * time.Second,
		ExemptRoute:   "/login",
		TouchOnSignIn: true,
	}
}

type testTab struct {
	*Coordinator

	mu        sync.Mutex
	signOuts  int
	navigated []string
	states    []State
}

func (tt *testTab) SignOuts() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.signOuts
}

func (tt *testTab) Navigated() []string {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return append([]string(nil), tt.navigated...)
}

func (tt *testTab) States() []State {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return append([]State(nil), tt.states...)
}

type tabOptions struct {
	cfg        Config
	store      storage.Store
	channel    broadcast.Channel
	signOutErr error
}

func newTestTab(t *testing.T, clk clock.Clock, opts tabOptions) *testTab {
	t.Helper()

	tt := &testTab{}
	c, err := New(opts.cfg, Deps{
		ID:      t.Name(),
		Store:   opts.store,
		Channel: opts.channel,
		Clock:   clk,
		Auth: AuthFunc(func(context.Context) error {
			tt.mu.Lock()
			tt.signOuts++
			tt.mu.Unlock()
			return opts.signOutErr
		}),
		Navigator: NavigatorFunc(func(route string) {
			tt.mu.Lock()
			tt.navigated = append(tt.navigated, route)
			tt.mu.Unlock()
		}),
		OnChange: func(s State) {
			tt.mu.Lock()
			tt.states = append(tt.states, s)
			tt.mu.Unlock()
		},
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	tt.Coordinator = c
	return tt
}

func signIn(tab *testTab) {
	tab.SetRoute("/dashboard")
	tab.SetUser("alice")
}

// silentStore stores values but never notifies watchers, like storage whose
// change events are lost.
type silentStore struct {
	*storage.MemoryStore
}

func (silentStore) Watch(func(storage.Change)) func() { return func() {} }

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := []Config{
		{IdleMax: 0, Warning: time.Second},
		{IdleMax: time.Minute, Warning: 0},
		{IdleMax: time.Minute, Warning: time.Minute},
		{IdleMax: time.Minute, Warning: 2 * time.Minute},
	}
	for _, cfg := range cases {
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", cfg)
	}

	_, err := New(Config{IdleMax: time.Second, Warning: time.Minute}, Deps{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 15*time.Minute, cfg.IdleMax)
	assert.Equal(t, 60*time.Second, cfg.Warning)
	assert.Equal(t, "/login", cfg.ExemptRoute)
}

func TestParseActivityKind(t *testing.T) {
	k, ok := ParseActivityKind("mousemove")
	assert.True(t, ok)
	assert.Equal(t, ActivityMouseMove, k)

	_, ok = ParseActivityKind("resize")
	assert.False(t, ok)
}

func TestCoordinator_InactiveUntilSignedInOffExemptRoute(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.NewMemoryStore()})

	tab.SetRoute("/login")
	tab.SetUser("alice")
	assert.False(t, tab.State().Active)
	assert.Zero(t, clk.Pending())

	tab.Touch()
	assert.False(t, tab.Activity(ActivityClick))

	tab.SetRoute("/activities")
	assert.True(t, tab.State().Active)
	assert.Equal(t, PhaseActive, tab.State().Phase)
	assert.Equal(t, t0.Add(15*time.Second), tab.State().LogoutAt)
}

// Scenario A: warning at 10s with 5 seconds left, forced logout at 15s.
func TestCoordinator_WarningThenLogout(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.NewMemoryStore()})
	signIn(tab)
	tab.Touch()

	clk.Advance(9800 * time.Millisecond)
	assert.Equal(t, PhaseActive, tab.State().Phase)

	clk.Advance(200 * time.Millisecond)
	st := tab.State()
	assert.Equal(t, PhaseWarning, st.Phase)
	assert.Equal(t, 5, st.SecondsLeft)

	clk.Advance(4900 * time.Millisecond)
	assert.Equal(t, PhaseWarning, tab.State().Phase)
	assert.Equal(t, 1, tab.State().SecondsLeft)
	assert.Zero(t, tab.SignOuts())

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, PhaseLoggedOut, tab.State().Phase)
	assert.Equal(t, 1, tab.SignOuts())
	assert.Equal(t, []string{"/login"}, tab.Navigated())
	assert.Zero(t, clk.Pending())
}

// With no touch, the countdown only goes down and logout never comes
// before the budget is spent.
func TestCoordinator_CountdownIsMonotonic(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.NewMemoryStore()})
	signIn(tab)

	var seen []int
	for elapsed := time.Duration(0); elapsed < 15*time.Second; elapsed += 250 * time.Millisecond {
		require.NotEqual(t, PhaseLoggedOut, tab.State().Phase, "logged out early at %s", elapsed)
		if st := tab.State(); st.Phase == PhaseWarning {
			if len(seen) == 0 || seen[len(seen)-1] != st.SecondsLeft {
				seen = append(seen, st.SecondsLeft)
			}
		}
		clk.Advance(250 * time.Millisecond)
	}

	assert.Equal(t, []int{5, 4, 3, 2, 1}, seen)
	assert.Equal(t, PhaseLoggedOut, tab.State().Phase)

	prev := 1 << 30
	for _, s := range tab.States() {
		if s.Phase != PhaseWarning {
			continue
		}
		assert.LessOrEqual(t, s.SecondsLeft, prev)
		prev = s.SecondsLeft
	}
}

// Touching mid-warning returns to active with the full budget.
func TestCoordinator_TouchDuringWarningRestartsBudget(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.NewMemoryStore()})
	signIn(tab)

	clk.Advance(12 * time.Second)
	require.Equal(t, PhaseWarning, tab.State().Phase)

	tab.Touch()
	st := tab.State()
	assert.Equal(t, PhaseActive, st.Phase)
	assert.Zero(t, st.SecondsLeft)
	assert.Equal(t, clk.Now().Add(15*time.Second), st.LogoutAt)

	clk.Advance(14 * time.Second)
	assert.Equal(t, PhaseWarning, tab.State().Phase)
	assert.Zero(t, tab.SignOuts())
}

// Scenario B: extending at 11s moves the next warning to 21s.
func TestCoordinator_ExtendSession(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.NewMemoryStore()})
	signIn(tab)
	tab.Touch()

	clk.Advance(11 * time.Second)
	require.Equal(t, PhaseWarning, tab.State().Phase)

	tab.ExtendSession()
	assert.Equal(t, PhaseActive, tab.State().Phase)

	clk.Advance(9900 * time.Millisecond)
	assert.Equal(t, PhaseActive, tab.State().Phase)

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, PhaseWarning, tab.State().Phase)
	assert.Equal(t, 5, tab.State().SecondsLeft)
}

func TestCoordinator_HiddenTabIgnoresActivity(t *testing.T) {
	clk := clock.NewFake(t0)
	store := storage.NewMemoryStore()
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store})
	signIn(tab)

	tab.SetHidden(true)
	clk.Advance(4 * time.Second)
	assert.False(t, tab.Activity(ActivityMouseMove))
	assert.Equal(t, t0.Add(15*time.Second), tab.State().LogoutAt)

	clk.Advance(2 * time.Second)
	tab.SetHidden(false)
	assert.Equal(t, t0.Add(21*time.Second), tab.State().LogoutAt)

	clk.Advance(time.Second)
	assert.True(t, tab.Activity(ActivityKeyDown))
	assert.Equal(t, t0.Add(22*time.Second), tab.State().LogoutAt)

	assert.False(t, tab.Activity(ActivityKind("resize")))
}

// Scenario C: a tab with no local interaction follows the shared schedule.
func TestCoordinator_SiblingFollowsSharedClock(t *testing.T) {
	clk := clock.NewFake(t0)
	store := storage.NewMemoryStore()
	hub := broadcast.NewHub()

	passive := testConfig()
	passive.TouchOnSignIn = false

	tab1 := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store, channel: hub.Join("idle")})
	tab2 := newTestTab(t, clk, tabOptions{cfg: passive, store: store, channel: hub.Join("idle")})

	signIn(tab1)
	tab1.Touch()
	signIn(tab2)

	clk.Advance(9900 * time.Millisecond)
	assert.Equal(t, PhaseActive, tab2.State().Phase)

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, PhaseWarning, tab1.State().Phase)
	assert.Equal(t, PhaseWarning, tab2.State().Phase)

	clk.Advance(5 * time.Second)
	assert.Equal(t, PhaseLoggedOut, tab1.State().Phase)
	assert.Equal(t, PhaseLoggedOut, tab2.State().Phase)
	assert.Equal(t, 1, tab1.SignOuts())
	assert.Equal(t, 1, tab2.SignOuts())
}

// A sibling's touch moves this tab's schedule, through storage events,
// through broadcasts alone, or through neither.
func TestCoordinator_SiblingTouchReschedules(t *testing.T) {
	cases := []struct {
		name      string
		store     func() storage.Store
		broadcast bool
	}{
		{"storage events", func() storage.Store { return storage.NewMemoryStore() }, false},
		{"broadcast only", func() storage.Store { return silentStore{storage.NewMemoryStore()} }, true},
		{"no signals", func() storage.Store { return silentStore{storage.NewMemoryStore()} }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clk := clock.NewFake(t0)
			store := tc.store()
			var ch1, ch2 broadcast.Channel
			if tc.broadcast {
				hub := broadcast.NewHub()
				ch1, ch2 = hub.Join("idle"), hub.Join("idle")
			}

			tab1 := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store, channel: ch1})
			tab2 := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store, channel: ch2})
			signIn(tab1)
			signIn(tab2)

			clk.Advance(5 * time.Second)
			tab1.Touch()

			clk.Advance(6 * time.Second)
			assert.Equal(t, PhaseActive, tab2.State().Phase, "warning must follow the shared clock")

			clk.Advance(4 * time.Second)
			assert.Equal(t, PhaseWarning, tab2.State().Phase)
			assert.Equal(t, 5, tab2.State().SecondsLeft)

			clk.Advance(5 * time.Second)
			assert.Equal(t, PhaseLoggedOut, tab2.State().Phase)
		})
	}
}

// The first tab to log out takes its siblings along immediately.
func TestCoordinator_ForceLogoutPropagates(t *testing.T) {
	cases := []struct {
		name      string
		silent    bool
		broadcast bool
	}{
		{"storage events", false, false},
		{"broadcast only", true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clk := clock.NewFake(t0)
			var store storage.Store = storage.NewMemoryStore()
			if tc.silent {
				store = silentStore{storage.NewMemoryStore()}
			}
			var ch1, ch2 broadcast.Channel
			if tc.broadcast {
				hub := broadcast.NewHub()
				ch1, ch2 = hub.Join("idle"), hub.Join("idle")
			}

			short := testConfig()
			short.IdleMax = 8 * time.Second
			short.Warning = 2 * time.Second

			// tab1 runs a shorter budget, so it decides first.
			tab1 := newTestTab(t, clk, tabOptions{cfg: short, store: store, channel: ch1})
			tab2 := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store, channel: ch2})
			signIn(tab1)
			signIn(tab2)

			clk.Advance(8 * time.Second)
			assert.Equal(t, PhaseLoggedOut, tab1.State().Phase)
			assert.Equal(t, PhaseLoggedOut, tab2.State().Phase)
			assert.Equal(t, 1, tab2.SignOuts())
			assert.Equal(t, []string{"/login"}, tab2.Navigated())
			assert.Zero(t, clk.Pending())
		})
	}
}

// Leaving for the exempt route and coming back keeps the countdown.
func TestCoordinator_SuspensionKeepsClock(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.NewMemoryStore()})
	signIn(tab)

	clk.Advance(4 * time.Second)
	tab.SetRoute("/login")
	st := tab.State()
	assert.False(t, st.Active)
	assert.Equal(t, PhaseActive, st.Phase)
	assert.Zero(t, st.SecondsLeft)
	assert.Zero(t, clk.Pending())

	clk.Advance(7 * time.Second)
	tab.SetRoute("/dashboard")
	st = tab.State()
	assert.True(t, st.Active)
	assert.Equal(t, PhaseWarning, st.Phase)
	assert.Equal(t, 4, st.SecondsLeft)
	assert.Equal(t, t0.Add(15*time.Second), st.LogoutAt)
}

func TestCoordinator_SignInStartsFreshClock(t *testing.T) {
	clk := clock.NewFake(t0)
	store := storage.NewMemoryStore()
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store})
	signIn(tab)

	clk.Advance(15 * time.Second)
	require.Equal(t, PhaseLoggedOut, tab.State().Phase)

	tab.SetUser("")
	tab.SetRoute("/login")
	clk.Advance(time.Hour)

	signIn(tab)
	assert.Equal(t, PhaseActive, tab.State().Phase)
	assert.Equal(t, clk.Now().Add(15*time.Second), tab.State().LogoutAt)
}

func TestCoordinator_StaleClockLogsOutWithoutSignInTouch(t *testing.T) {
	clk := clock.NewFake(t0)
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), constants.KeyLastActiveAt, formatMillis(t0.Add(-time.Hour))))

	cfg := testConfig()
	cfg.TouchOnSignIn = false
	tab := newTestTab(t, clk, tabOptions{cfg: cfg, store: store})
	signIn(tab)

	assert.Equal(t, PhaseLoggedOut, tab.State().Phase)
	assert.Equal(t, 1, tab.SignOuts())
}

func TestCoordinator_DeactivationCancelsTimers(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.NewMemoryStore()})
	signIn(tab)

	tab.SetUser("")
	assert.Zero(t, clk.Pending())

	clk.Advance(time.Minute)
	assert.Zero(t, tab.SignOuts())
	assert.Equal(t, PhaseActive, tab.State().Phase)
}

func TestCoordinator_CloseStopsEverything(t *testing.T) {
	clk := clock.NewFake(t0)
	store := storage.NewMemoryStore()
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store})
	signIn(tab)

	tab.Close()
	tab.Close()
	assert.Zero(t, clk.Pending())

	require.NoError(t, store.Set(context.Background(), constants.KeyForceLogout, "1"))
	clk.Advance(time.Minute)
	assert.Zero(t, tab.SignOuts())
}

func TestCoordinator_StorageUnavailableStillLogsOut(t *testing.T) {
	clk := clock.NewFake(t0)
	hub := broadcast.NewHub()
	tab1 := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.Unavailable(), channel: hub.Join("idle")})
	tab2 := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.Unavailable(), channel: hub.Join("idle")})
	signIn(tab1)
	signIn(tab2)

	clk.Advance(5 * time.Second)
	tab1.Touch()

	// Without storage the sibling cannot learn the new time, only its own.
	clk.Advance(10 * time.Second)
	assert.Equal(t, PhaseLoggedOut, tab2.State().Phase)
	assert.Equal(t, PhaseLoggedOut, tab1.State().Phase)
}

func TestCoordinator_LocalOnlyWithoutDeps(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig()})
	signIn(tab)

	clk.Advance(10 * time.Second)
	assert.Equal(t, PhaseWarning, tab.State().Phase)
	clk.Advance(5 * time.Second)
	assert.Equal(t, PhaseLoggedOut, tab.State().Phase)
}

func TestCoordinator_SignOutFailureStillNavigates(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{
		cfg:        testConfig(),
		store:      storage.NewMemoryStore(),
		signOutErr: errors.New("auth backend down"),
	})
	signIn(tab)

	clk.Advance(15 * time.Second)
	assert.Equal(t, 1, tab.SignOuts())
	assert.Equal(t, []string{"/login"}, tab.Navigated())
}

func TestCoordinator_ForceLogoutFlagFromStorage(t *testing.T) {
	clk := clock.NewFake(t0)
	store := storage.NewMemoryStore()
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store})
	signIn(tab)

	require.NoError(t, store.Set(context.Background(), constants.KeyForceLogout, formatMillis(t0)))
	assert.Equal(t, PhaseLoggedOut, tab.State().Phase)
	assert.Equal(t, 1, tab.SignOuts())

	// Further signals are ignored once logged out.
	require.NoError(t, store.Set(context.Background(), constants.KeyForceLogout, formatMillis(t0)))
	assert.Equal(t, 1, tab.SignOuts())
}

func TestCoordinator_RealClock(t *testing.T) {
	cfg := Config{IdleMax: 300 * time.Millisecond, Warning: 100 * time.Millisecond, ExemptRoute: "/login"}

	store := storage.NewMemoryStore()
	hub := broadcast.NewHub()
	tab1 := newTestTab(t, clock.Real(), tabOptions{cfg: cfg, store: store, channel: hub.Join("idle")})
	tab2 := newTestTab(t, clock.Real(), tabOptions{cfg: cfg, store: store, channel: hub.Join("idle")})
	signIn(tab1)
	signIn(tab2)

	require.Eventually(t, func() bool {
		return tab1.State().Phase == PhaseLoggedOut && tab2.State().Phase == PhaseLoggedOut
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, tab1.SignOuts())
	assert.Equal(t, 1, tab2.SignOuts())
}

// touchingStore runs hook once, inside the next read of the shared clock,
// before the reader gets the (now stale) value back.
type touchingStore struct {
	*storage.MemoryStore

	mu   sync.Mutex
	hook func()
}

func (s *touchingStore) arm(fn func()) {
	s.mu.Lock()
	s.hook = fn
	s.mu.Unlock()
}

func (s *touchingStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, ok, err := s.MemoryStore.Get(ctx, key)

	s.mu.Lock()
	hook := s.hook
	if key != constants.KeyLastActiveAt {
		hook = nil
	}
	if hook != nil {
		s.hook = nil
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return val, ok, err
}

func TestCoordinator_TouchDuringDeadlineReadKeepsSession(t *testing.T) {
	clk := clock.NewFake(t0)
	store := &touchingStore{MemoryStore: storage.NewMemoryStore()}
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: store})
	signIn(tab)

	clk.Advance(14 * time.Second)
	require.Equal(t, PhaseWarning, tab.State().Phase)

	// the user interacts exactly while the logout timer reads the clock
	store.arm(func() { tab.Touch() })
	clk.Advance(time.Second)

	st := tab.State()
	assert.Equal(t, PhaseActive, st.Phase)
	assert.Equal(t, t0.Add(30*time.Second), st.LogoutAt)
	assert.Zero(t, tab.SignOuts())
	assert.Empty(t, tab.Navigated())
}

func TestCoordinator_StateReportsMsBeforeLogout(t *testing.T) {
	clk := clock.NewFake(t0)
	tab := newTestTab(t, clk, tabOptions{cfg: testConfig(), store: storage.NewMemoryStore()})
	assert.Zero(t, tab.State().MsBeforeLogout)

	signIn(tab)
	assert.EqualValues(t, 15000, tab.State().MsBeforeLogout)

	clk.Advance(11500 * time.Millisecond)
	st := tab.State()
	assert.Equal(t, PhaseWarning, st.Phase)
	assert.EqualValues(t, 3500, st.MsBeforeLogout)
	assert.Equal(t, 4, st.SecondsLeft)

	tab.SetRoute("/login")
	assert.Zero(t, tab.State().MsBeforeLogout)
}
