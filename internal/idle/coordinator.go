// Package idle signs a user out of every open tab after a period of
// inactivity.
//
// Each tab runs one Coordinator. Coordinators of the same session share a
// clock (the last activity timestamp in storage) and a broadcast channel.
// The stored timestamp is authoritative: every signal, local or remote,
// re-derives both timers from it. Broadcasts only make siblings react
// sooner and are never required for correctness.
package idle

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"idlegate/internal/broadcast"
	"idlegate/internal/clock"
	"idlegate/internal/constants"
	"idlegate/internal/storage"
)

type Auth interface {
	SignOut(ctx context.Context) error
}

type Navigator interface {
	Navigate(route string)
}

type AuthFunc func(ctx context.Context) error

func (f AuthFunc) SignOut(ctx context.Context) error { return f(ctx) }

type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Deps are the collaborators of a Coordinator. Store and Channel are not
// closed by the coordinator. Nil Store means no shared storage, nil Channel
// means no broadcast, nil Clock means the real clock.
type Deps struct {
	ID        string
	Store     storage.Store
	Channel   broadcast.Channel
	Clock     clock.Clock
	Auth      Auth
	Navigator Navigator
	OnChange  func(State)
}

type Coordinator struct {
	cfg      Config
	id       string
	store    storage.Store
	channel  broadcast.Channel
	clock    clock.Clock
	auth     Auth
	nav      Navigator
	onChange func(State)

	mu            sync.Mutex
	user          string
	route         string
	hidden        bool
	active        bool
	pendingSignIn bool
	closed        bool
	phase         Phase
	secondsLeft   int
	localLast     time.Time
	logoutAt      time.Time
	gen           uint64
	timers        []clock.Timer

	emitMu      sync.Mutex
	unwatch     func()
	unsubscribe func()
}

func New(cfg Config, deps Deps) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:      cfg,
		id:       deps.ID,
		store:    deps.Store,
		channel:  deps.Channel,
		clock:    deps.Clock,
		auth:     deps.Auth,
		nav:      deps.Navigator,
		onChange: deps.OnChange,
		route:    constants.DefaultRoute,
		phase:    PhaseActive,
	}
	if c.store == nil {
		c.store = storage.Unavailable()
	}
	if c.channel == nil {
		c.channel = broadcast.Noop()
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.id == "" {
		c.id = "tab"
	}

	c.unwatch = c.store.Watch(c.handleChange)
	c.unsubscribe = c.channel.OnMessage(c.handleMessage)
	return c, nil
}

// SetUser updates the signed-in user; empty means signed out.
func (c *Coordinator) SetUser(userID string) {
	c.mu.Lock()
	if userID != "" && c.user == "" {
		c.pendingSignIn = true
	}
	if userID == "" {
		c.pendingSignIn = false
	}
	c.user = userID
	c.mu.Unlock()

	c.evaluate()
}

// SetRoute updates the route the tab is showing.
func (c *Coordinator) SetRoute(route string) {
	c.mu.Lock()
	c.route = route
	c.mu.Unlock()

	c.evaluate()
}

// SetHidden records whether the tab is backgrounded. Becoming visible
// counts as activity.
func (c *Coordinator) SetHidden(hidden bool) {
	c.mu.Lock()
	wasHidden := c.hidden
	c.hidden = hidden
	c.mu.Unlock()

	if wasHidden == hidden {
		return
	}
	c.emit()
	if !hidden {
		c.Touch()
	}
}

// Activity reports a user interaction. Interactions from a hidden tab are
// ignored. It reports whether the interaction reset the clock.
func (c *Coordinator) Activity(kind ActivityKind) bool {
	if !activityKinds[kind] {
		return false
	}

	c.mu.Lock()
	ignored := c.hidden || !c.active || c.closed
	c.mu.Unlock()
	if ignored {
		return false
	}

	c.Touch()
	return true
}

// Touch records that the user is active now: it writes the shared clock,
// pings sibling tabs and restarts this tab's timers.
func (c *Coordinator) Touch() {
	now := c.clock.Now()

	c.mu.Lock()
	if !c.active || c.closed || c.phase == PhaseLoggedOut {
		c.mu.Unlock()
		return
	}
	c.localLast = now
	c.mu.Unlock()

	c.writeClock(now)
	c.rearm()
}

// ExtendSession is the "stay signed in" action of the warning prompt.
func (c *Coordinator) ExtendSession() {
	c.mu.Lock()
	changed := false
	if c.active && c.phase == PhaseWarning {
		c.phase = PhaseActive
		c.secondsLeft = 0
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.emit()
	}
	c.Touch()
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close cancels every timer and detaches from storage and broadcast.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.active = false
	c.cancelTimersLocked()
	c.mu.Unlock()

	c.unwatch()
	c.unsubscribe()
}

func (c *Coordinator) stateLocked() State {
	s := State{
		Phase:   c.phase,
		Active:  c.active,
		Hidden:  c.hidden,
		IdleMax: c.cfg.IdleMax.Milliseconds(),
	}
	if c.phase == PhaseWarning {
		s.SecondsLeft = c.secondsLeft
	}
	if c.active && !c.logoutAt.IsZero() {
		s.LogoutAt = c.logoutAt
		if left := c.logoutAt.Sub(c.clock.Now()); left > 0 {
			s.MsBeforeLogout = left.Milliseconds()
		}
	}
	return s
}

func (c *Coordinator) emit() {
	if c.onChange == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.onChange(c.State())
}

// evaluate activates or suspends the coordinator from the current user and
// route.
func (c *Coordinator) evaluate() {
	c.mu.Lock()
	want := c.user != "" && c.route != c.cfg.ExemptRoute && !c.closed

	switch {
	case want && !c.active:
		c.active = true
		c.phase = PhaseActive
		c.secondsLeft = 0
		signIn := c.pendingSignIn && c.cfg.TouchOnSignIn
		c.pendingSignIn = false
		c.mu.Unlock()

		log.Printf("👀 Idle watch started: %s", c.id)
		if signIn {
			c.Touch()
			return
		}
		c.initClock()
		c.rearm()

	case !want && c.active:
		c.active = false
		c.phase = PhaseActive
		c.secondsLeft = 0
		c.logoutAt = time.Time{}
		c.cancelTimersLocked()
		c.mu.Unlock()

		log.Printf("💤 Idle watch suspended: %s", c.id)
		c.emit()

	default:
		c.mu.Unlock()
	}
}

// initClock seeds the shared clock when no tab has written it yet.
func (c *Coordinator) initClock() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
	defer cancel()

	_, ok, err := c.store.Get(ctx, constants.KeyLastActiveAt)
	if err == nil && ok {
		return
	}

	now := c.clock.Now()
	c.mu.Lock()
	if c.localLast.IsZero() {
		c.localLast = now
	}
	c.mu.Unlock()

	if err != nil {
		return
	}
	if err := c.store.Set(ctx, constants.KeyLastActiveAt, formatMillis(now)); err != nil {
		log.Printf("Idle clock not shared (%s): %v", c.id, err)
	}
}

func (c *Coordinator) writeClock(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
	defer cancel()

	stamp := formatMillis(now)
	if err := c.store.Set(ctx, constants.KeyLastActiveAt, stamp); err == nil {
		_ = c.store.Set(ctx, constants.KeyReset, stamp)
	}
	_ = c.channel.Post(ctx, broadcast.Message{Type: broadcast.TypeReset})
}

// sharedLast reads the shared clock. Zero means storage had nothing usable.
func (c *Coordinator) sharedLast() time.Time {
	ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
	defer cancel()

	val, ok, err := c.store.Get(ctx, constants.KeyLastActiveAt)
	if err != nil || !ok {
		return time.Time{}
	}
	t, err := parseMillis(val)
	if err != nil {
		return time.Time{}
	}
	return t
}

// lastActiveLocked folds the shared clock into this tab's own record and
// returns the freshest of the two.
func (c *Coordinator) lastActiveLocked(shared time.Time) time.Time {
	if shared.After(c.localLast) {
		c.localLast = shared
	}
	if c.localLast.IsZero() {
		c.localLast = c.clock.Now()
	}
	return c.localLast
}

// rearm cancels all pending timers and re-derives the phase and the next
// wake-up from the shared clock. Every timer callback lands here too, so a
// tab that missed every sibling signal still honours their activity.
func (c *Coordinator) rearm() {
	c.mu.Lock()
	if !c.active || c.closed || c.phase == PhaseLoggedOut {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	shared := c.sharedLast()

	c.mu.Lock()
	if !c.active || c.closed || c.phase == PhaseLoggedOut {
		c.mu.Unlock()
		return
	}

	// Merged under the same lock that derives the deadline, so a Touch that
	// lands while storage is being read is never lost.
	last := c.lastActiveLocked(shared)

	c.cancelTimersLocked()
	gen := c.gen
	prev := c.phase

	now := c.clock.Now()
	elapsed := now.Sub(last)
	if elapsed < 0 {
		elapsed = 0
	}
	untilLogout := c.cfg.IdleMax - elapsed
	if untilLogout <= 0 {
		c.mu.Unlock()
		c.forceLogout(true, "idle timeout", gen)
		return
	}
	untilWarning := untilLogout - c.cfg.Warning

	c.logoutAt = now.Add(untilLogout)
	wake := func() { c.wake(gen) }

	if untilWarning > 0 {
		c.phase = PhaseActive
		c.secondsLeft = 0
		c.timers = append(c.timers, c.clock.AfterFunc(untilWarning, wake))
	} else {
		c.phase = PhaseWarning
		c.secondsLeft = int(math.Ceil(untilLogout.Seconds()))
		next := constants.CountdownInterval
		if untilLogout < next {
			next = untilLogout
		}
		c.timers = append(c.timers, c.clock.AfterFunc(next, wake))
	}
	left := c.secondsLeft
	c.mu.Unlock()

	if prev != PhaseWarning && left > 0 {
		log.Printf("⏳ Idle warning: %s signs out in %ds", c.id, left)
	}
	c.emit()
}

// wake is the single timer callback. Stale generations are dropped.
func (c *Coordinator) wake(gen uint64) {
	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}
	c.rearm()
}

func (c *Coordinator) cancelTimersLocked() {
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.gen++
}

func (c *Coordinator) handleChange(ch storage.Change) {
	if ch.Value == "" {
		return
	}
	switch ch.Key {
	case constants.KeyForceLogout:
		c.forceLogout(false, "sibling tab signed out", anyGen)
	case constants.KeyReset, constants.KeyLastActiveAt:
		c.rearm()
	}
}

func (c *Coordinator) handleMessage(msg broadcast.Message) {
	switch msg.Type {
	case broadcast.TypeForceLogout:
		c.forceLogout(false, "sibling tab signed out", anyGen)
	case broadcast.TypeReset:
		c.rearm()
	}
}

// anyGen makes forceLogout skip the timer generation check.
const anyGen = 0

// forceLogout signs the tab out. The deciding tab tells its siblings;
// followers do not decide again. A non-zero gen ties the call to the timers
// armed with it, so a logout timer that lost a race with rearm is dropped.
func (c *Coordinator) forceLogout(decide bool, reason string, gen uint64) {
	c.mu.Lock()
	if gen != anyGen && gen != c.gen {
		c.mu.Unlock()
		return
	}
	if !c.active || c.closed || c.phase == PhaseLoggedOut {
		c.mu.Unlock()
		return
	}
	c.cancelTimersLocked()
	c.phase = PhaseLoggedOut
	c.secondsLeft = 0
	c.mu.Unlock()

	log.Printf("🔒 Forced logout: %s (%s)", c.id, reason)
	c.emit()

	if decide {
		ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
		_ = c.store.Set(ctx, constants.KeyForceLogout, formatMillis(c.clock.Now()))
		_ = c.channel.Post(ctx, broadcast.Message{Type: broadcast.TypeForceLogout})
		cancel()
	}

	if c.auth != nil {
		ctx, cancel := context.WithTimeout(context.Background(), constants.SignOutTimeout)
		if err := c.auth.SignOut(ctx); err != nil {
			log.Printf("Sign-out failed for %s, leaving anyway: %v", c.id, err)
		}
		cancel()
	}
	if c.nav != nil {
		c.nav.Navigate(c.cfg.ExemptRoute)
	}
}

// SeedClock records t as the last activity of the session behind st, the
// way a sign-in does.
func SeedClock(ctx context.Context, st storage.Store, t time.Time) error {
	return st.Set(ctx, constants.KeyLastActiveAt, formatMillis(t))
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("idle: bad timestamp %q: %w", s, err)
	}
	return time.UnixMilli(ms), nil
}
