package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/learnlink-client/auth"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/token"
	"github.com/jrsteele09/learnlink-client/users"
	"github.com/rs/zerolog"
)

const DefaultRefreshLead = 60 * time.Second

// AuthAPI is the subset of the /auth client the session manager drives
type AuthAPI interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error)
	LoginWithGoogle(ctx context.Context, credential string) (*auth.TokenResponse, error)
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.TokenResponse, error)
	RegisterChild(ctx context.Context, req auth.RegisterChildRequest) (*auth.ChildAccount, error)
	Logout(ctx context.Context) error
}

// Refresher is the single-flight refresh shared with the HTTP transport
type Refresher interface {
	Refresh(ctx context.Context, stale string) (string, error)
	SetHooks(onRefreshed func(*token.Claims), onFailed func(error))
}

// Timer is the subset of *time.Timer the manager needs
type Timer interface {
	Stop() bool
}

// Manager owns the session: the token store, the current user, and the
// single silent-refresh timer. Tokens obtained by login, by the silent
// timer, or by the transport's reactive refresh all pass through
// handleAuthSuccess, so the user record and the timer always follow the
// latest token.
type Manager struct {
	api       AuthAPI
	store     *token.Store
	refresher Refresher
	lead      time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration, func()) Timer
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	status      Status
	user        *users.User
	loading     int
	timer       Timer
	timerGen    uint64
	changed     chan struct{}
	subscribers map[int]func(State)
	nextSubID   int
}

type ManagerOption func(*Manager)

func WithRefreshLead(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.lead = d
		}
	}
}

func WithNowFunc(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = fn
	}
}

func WithAfterFunc(fn func(time.Duration, func()) Timer) ManagerOption {
	return func(m *Manager) {
		m.afterFunc = fn
	}
}

func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager wires itself into refresher's hooks. The session starts
// unknown and loading until Restore or a login resolves it.
func NewManager(api AuthAPI, store *token.Store, refresher Refresher, options ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		api:       api,
		store:     store,
		refresher: refresher,
		lead:      DefaultRefreshLead,
		nowFunc:   time.Now,
		afterFunc: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
		log:         zerolog.Nop(),
		ctx:         ctx,
		cancel:      cancel,
		status:      StatusUnknown,
		changed:     make(chan struct{}),
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(m)
	}
	refresher.SetHooks(m.handleAuthSuccess, m.handleRefreshFailed)
	return m
}

// State returns the current session view
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) User() *users.User {
	return m.State().User
}

func (m *Manager) Loading() bool {
	return m.State().Loading
}

// Subscribe calls fn after every state change until the returned function
// is called.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Restore attempts one silent refresh using the refresh cookie. Failure
// lands in the anonymous state and is not returned.
func (m *Manager) Restore(ctx context.Context) {
	m.mu.Lock()
	if m.status != StatusUnknown {
		m.mu.Unlock()
		return
	}
	m.setStatusLocked(StatusRestoring)
	m.loading++
	m.mu.Unlock()
	m.notify()

	defer m.endLoading()
	if _, err := m.refresher.Refresh(ctx, ""); err != nil {
		m.log.Debug().Err(err).Msg("no session to restore")
		// The hook has already moved the session on unless the wait was cut short.
		m.mu.Lock()
		if m.status == StatusRestoring {
			m.setStatusLocked(StatusAnonymous)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) Login(ctx context.Context, req auth.LoginRequest) error {
	defer m.beginLoading()()
	resp, err := m.api.Login(ctx, req)
	if err != nil {
		return err
	}
	return m.authenticate(resp.AccessToken)
}

// LoginWithGoogle signs in with a Google ID token
func (m *Manager) LoginWithGoogle(ctx context.Context, credential string) error {
	defer m.beginLoading()()
	resp, err := m.api.LoginWithGoogle(ctx, credential)
	if err != nil {
		return err
	}
	return m.authenticate(resp.AccessToken)
}

// Register creates a parent account. When the backend returns a token the
// session is authenticated straight away; otherwise it stays anonymous.
func (m *Manager) Register(ctx context.Context, req auth.RegisterRequest) error {
	defer m.beginLoading()()
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return nil
	}
	return m.authenticate(resp.AccessToken)
}

// RegisterChild creates a child account for the logged in parent. The
// parent's own session is not touched.
func (m *Manager) RegisterChild(ctx context.Context, req auth.RegisterChildRequest) (*auth.ChildAccount, error) {
	state := m.State()
	if !state.Authenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	if !state.User.IsParent() {
		return nil, fmt.Errorf("[sessions RegisterChild] %w: %s", apperrors.ErrForbidden, state.User.Role)
	}

	defer m.beginLoading()()
	return m.api.RegisterChild(ctx, req)
}

// Logout revokes the refresh cookie and always ends the local session,
// even when the server call fails.
func (m *Manager) Logout(ctx context.Context) {
	defer m.beginLoading()()
	if err := m.api.Logout(ctx); err != nil {
		m.log.Warn().Err(err).Msg("server logout failed, clearing local session")
	}
	m.endSession(nil)
}

// Close cancels the silent refresh timer
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
}

func (m *Manager) authenticate(raw string) error {
	claims, err := m.store.Set(raw)
	if err != nil {
		return fmt.Errorf("[sessions authenticate] %w", err)
	}
	m.handleAuthSuccess(claims)
	return nil
}

// handleAuthSuccess is the single entry point for a new token
func (m *Manager) handleAuthSuccess(claims *token.Claims) {
	m.mu.Lock()
	// endSession clears the store before taking mu; an empty store here
	// means a logout overtook this token.
	if m.store.AccessToken() == "" {
		m.mu.Unlock()
		return
	}
	m.user = claims.User()
	if m.status != StatusAuthenticated {
		m.setStatusLocked(StatusAuthenticated)
	}
	m.scheduleLocked(claims)
	m.mu.Unlock()

	m.log.Debug().Str("user_id", claims.ID).Str("role", claims.Role.String()).Msg("session authenticated")
	m.notify()
}

func (m *Manager) handleRefreshFailed(err error) {
	m.endSession(err)
}

func (m *Manager) endSession(cause error) {
	m.store.Clear()

	m.mu.Lock()
	wasAuthenticated := m.status == StatusAuthenticated
	m.stopTimerLocked()
	m.user = nil
	if m.status.CanTransitionTo(StatusAnonymous) {
		m.setStatusLocked(StatusAnonymous)
	}
	m.mu.Unlock()

	if cause != nil && wasAuthenticated {
		m.log.Info().Err(cause).Msg("session expired, logged out")
	}
	m.notify()
}

// scheduleLocked replaces any pending timer with one firing lead before
// expiry. Tokens shorter-lived than lead are refreshed at half their
// remaining life; expired tokens are left to the transport's 401 handling.
func (m *Manager) scheduleLocked(claims *token.Claims) {
	m.stopTimerLocked()

	remaining := claims.Remaining(m.nowFunc())
	if remaining <= 0 {
		return
	}
	delay := remaining - m.lead
	if delay <= 0 {
		delay = remaining / 2
	}

	gen := m.timerGen
	raw := m.store.AccessToken()
	m.timer = m.afterFunc(delay, func() { m.silentRefresh(gen, raw) })
	m.log.Debug().Dur("in", delay).Msg("silent refresh scheduled")
}

func (m *Manager) stopTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) silentRefresh(gen uint64, stale string) {
	m.mu.Lock()
	current := gen == m.timerGen
	if current {
		m.timer = nil
	}
	m.mu.Unlock()
	if !current || m.ctx.Err() != nil {
		return
	}

	// Success and failure both arrive through the refresher's hooks.
	if _, err := m.refresher.Refresh(m.ctx, stale); err != nil {
		m.log.Debug().Err(err).Msg("silent refresh failed")
	}
}

func (m *Manager) beginLoading() func() {
	m.mu.Lock()
	m.loading++
	m.mu.Unlock()
	m.notify()
	return m.endLoading
}

func (m *Manager) endLoading() {
	m.mu.Lock()
	m.loading--
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setStatusLocked(next Status) {
	if !m.status.CanTransitionTo(next) {
		m.log.Warn().Stringer("from", m.status).Stringer("to", next).Msg("ignoring invalid session transition")
		return
	}
	m.status = next
}

func (m *Manager) stateLocked() State {
	var user *users.User
	if m.user != nil {
		u := *m.user
		user = &u
	}
	return State{
		Status: m.status,
		User:   user,
		// nothing is settled before the first restore or login
		Loading: m.loading > 0 || !m.status.Resolved(),
	}
}

// changedCh returns a channel closed at the next state change
func (m *Manager) changedCh() (State, <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(), m.changed
}

func (m *Manager) notify() {
	m.mu.Lock()
	close(m.changed)
	m.changed = make(chan struct{})
	state := m.stateLocked()
	subs := make([]func(State), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
