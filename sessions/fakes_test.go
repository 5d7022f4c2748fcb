package sessions_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/learnlink-client/auth"
	"github.com/jrsteele09/learnlink-client/sessions"
	"github.com/jrsteele09/learnlink-client/token"
	"github.com/jrsteele09/learnlink-client/token/refresh"
	"github.com/jrsteele09/learnlink-client/token/tokenfake"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (f *fakeTimer) Stop() bool {
	wasActive := !f.stopped && !f.fired
	f.stopped = true
	return wasActive
}

// fakeClock fires timers synchronously from Advance
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: t0}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) sessions.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the fire times of timers that are neither stopped nor fired
func (c *fakeClock) Pending() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Time
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at)
		}
	}
	return out
}

type fakeAuth struct {
	mu          sync.Mutex
	loginToken  string
	loginErr    error
	logoutErr   error
	block       chan struct{}
	logoutCalls int
	childReqs   []auth.RegisterChildRequest
}

func (f *fakeAuth) wait(ctx context.Context) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAuth) tokenResponse() (*auth.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &auth.TokenResponse{AccessToken: f.loginToken}, nil
}

func (f *fakeAuth) Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.tokenResponse()
}

func (f *fakeAuth) LoginWithGoogle(ctx context.Context, credential string) (*auth.TokenResponse, error) {
	return f.tokenResponse()
}

func (f *fakeAuth) Register(ctx context.Context, req auth.RegisterRequest) (*auth.TokenResponse, error) {
	return f.tokenResponse()
}

func (f *fakeAuth) RegisterChild(ctx context.Context, req auth.RegisterChildRequest) (*auth.ChildAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.childReqs = append(f.childReqs, req)
	return &auth.ChildAccount{ID: "child-2", Name: req.Name, Email: req.Email}, nil
}

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAuth) setLogin(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginToken = raw
	f.loginErr = nil
}

type testFixture struct {
	clock        *fakeClock
	api          *fakeAuth
	store        *token.Store
	refresher    *refresh.Manager
	sessions     *sessions.Manager
	refreshCalls atomic.Int32
	refreshMu    sync.Mutex
	refreshNext  func() (string, error)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		clock: newFakeClock(),
		api:   &fakeAuth{},
		store: token.NewStore(),
	}
	f.refreshNext = func() (string, error) { return "", errors.New("refresh cookie missing") }
	f.refresher = refresh.NewManager(f.store, func(ctx context.Context) (string, error) {
		f.refreshCalls.Add(1)
		f.refreshMu.Lock()
		next := f.refreshNext
		f.refreshMu.Unlock()
		return next()
	})
	f.sessions = sessions.NewManager(f.api, f.store, f.refresher,
		sessions.WithNowFunc(f.clock.Now),
		sessions.WithAfterFunc(f.clock.AfterFunc),
	)
	t.Cleanup(f.sessions.Close)
	return f
}

// refreshReturns makes the next refresh calls issue a token for id valid for ttl
func (f *testFixture) refreshReturns(id tokenfake.Identity, ttl time.Duration) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()
	f.refreshNext = func() (string, error) {
		return tokenfake.Mint(id, f.clock.Now().Add(ttl)), nil
	}
}

func (f *testFixture) refreshFails(err error) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()
	f.refreshNext = func() (string, error) { return "", err }
}

func (f *testFixture) login(t *testing.T, id tokenfake.Identity, ttl time.Duration) string {
	t.Helper()
	raw := tokenfake.Mint(id, f.clock.Now().Add(ttl))
	f.api.setLogin(raw)
	require.NoError(t, f.sessions.Login(context.Background(), auth.LoginRequest{Email: id.Email, Password: "Secret123"}))
	return raw
}
