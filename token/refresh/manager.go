package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/token"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	singleFlightKey       = "refresh"
	defaultRefreshTimeout = 30 * time.Second
)

// Func performs the refresh call (POST /auth/refresh with the HttpOnly
// cookie) and returns the new raw access token.
type Func func(ctx context.Context) (string, error)

// Metrics records refresh outcomes
type Metrics interface {
	RecordRefresh(success bool)
}

// Manager serialises token refreshes. However many callers ask for a
// refresh at once, one refresh call is made and every caller receives its
// result.
type Manager struct {
	store       *token.Store
	refresh     Func
	group       singleflight.Group
	timeout     time.Duration
	hookMu      sync.RWMutex
	onRefreshed func(*token.Claims)
	onFailed    func(error)
	metrics     Metrics
	log         zerolog.Logger
}

type ManagerOption func(*Manager)

// WithOnRefreshed registers a hook run after the store is updated and before
// any waiter is released.
func WithOnRefreshed(fn func(*token.Claims)) ManagerOption {
	return func(m *Manager) {
		m.onRefreshed = fn
	}
}

// WithOnFailed registers a hook run after a failed refresh has cleared the
// store and before any waiter is released.
func WithOnFailed(fn func(error)) ManagerOption {
	return func(m *Manager) {
		m.onFailed = fn
	}
}

func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = d
	}
}

func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a refresh manager writing into store
func NewManager(store *token.Store, refresh Func, options ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		refresh: refresh,
		timeout: defaultRefreshTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// SetHooks replaces both hooks. It exists for owners that must construct the
// manager before the hook targets exist.
func (m *Manager) SetHooks(onRefreshed func(*token.Claims), onFailed func(error)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onRefreshed = onRefreshed
	m.onFailed = onFailed
}

func (m *Manager) hooks() (func(*token.Claims), func(error)) {
	m.hookMu.RLock()
	defer m.hookMu.RUnlock()
	return m.onRefreshed, m.onFailed
}

// Current returns the access token currently held
func (m *Manager) Current() string {
	return m.store.AccessToken()
}

// Refresh returns a fresh access token. stale is the token the caller last
// used ("" if it had none):
//   - if the store already holds a different non-empty token, some other
//     caller refreshed in the meantime and that token is returned without a
//     network call;
//   - if the caller had a token and the store is now empty, the session
//     ended (logout or a failed refresh) and ErrSessionExpired is returned;
//   - otherwise the caller joins the in-flight refresh, or starts one.
//
// The shared refresh runs detached from ctx so one impatient caller cannot
// cancel it for the others; ctx only bounds how long this caller waits.
func (m *Manager) Refresh(ctx context.Context, stale string) (string, error) {
	current := m.store.AccessToken()
	if current != "" && current != stale {
		return current, nil
	}
	if current == "" && stale != "" {
		return "", fmt.Errorf("[refresh Manager] %w", apperrors.ErrSessionExpired)
	}

	ch := m.group.DoChan(singleFlightKey, func() (interface{}, error) {
		return m.doRefresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// A clear while the call is out (logout, or a session ended elsewhere)
	// wins over whatever the call returns.
	epoch := m.store.Epoch()
	onRefreshed, onFailed := m.hooks()

	m.log.Debug().Msg("refreshing access token")
	raw, err := m.refresh(ctx)
	if err == nil {
		var claims *token.Claims
		claims, err = m.store.SetIfEpoch(raw, epoch)
		if err == nil {
			m.recordRefresh(true)
			m.log.Debug().Str("user_id", claims.ID).Time("expires_at", claims.ExpiresAt).Msg("access token refreshed")
			if onRefreshed != nil {
				onRefreshed(claims)
			}
			return raw, nil
		}
		if apperrors.Is(err, apperrors.ErrSessionExpired) {
			m.log.Debug().Msg("session ended during refresh, discarding token")
			return "", fmt.Errorf("[refresh Manager] %w", err)
		}
	}

	if m.store.Epoch() != epoch {
		m.log.Debug().Err(err).Msg("session ended during failed refresh")
		return "", fmt.Errorf("[refresh Manager] %w: %w", apperrors.ErrSessionExpired, err)
	}
	m.store.Clear()
	m.recordRefresh(false)
	failure := fmt.Errorf("[refresh Manager] %w: %w", apperrors.ErrRefreshFailed, err)
	m.log.Info().Err(err).Msg("access token refresh failed")
	if onFailed != nil {
		onFailed(failure)
	}
	return "", failure
}

func (m *Manager) recordRefresh(success bool) {
	if m.metrics != nil {
		m.metrics.RecordRefresh(success)
	}
}
