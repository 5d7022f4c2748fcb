package sessions

import (
	"context"

	"github.com/jrsteele09/learnlink-client/users"
)

const (
	DefaultLoginPath    = "/login"
	DefaultFallbackPath = "/"
)

// Decision is the guard's verdict. While auth is still resolving neither
// Ready nor Redirect is set.
type Decision struct {
	Ready    bool
	Redirect string
}

func (d Decision) Pending() bool {
	return !d.Ready && d.Redirect == ""
}

// Guard gates a role-specific surface. Callers run nothing until Ready.
type Guard struct {
	sessions     *Manager
	allowed      users.RoleSet
	loginPath    string
	fallbackPath string
}

type GuardOption func(*Guard)

// WithAllowedRoles restricts the surface; without it any authenticated user passes
func WithAllowedRoles(roles ...users.RoleType) GuardOption {
	return func(g *Guard) {
		g.allowed = users.NewRoleSet(roles...)
	}
}

func WithLoginPath(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.loginPath = path
		}
	}
}

func WithFallbackPath(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.fallbackPath = path
		}
	}
}

func NewGuard(sessions *Manager, options ...GuardOption) *Guard {
	g := &Guard{
		sessions:     sessions,
		loginPath:    DefaultLoginPath,
		fallbackPath: DefaultFallbackPath,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Check evaluates the current state without blocking
func (g *Guard) Check() Decision {
	return g.decide(g.sessions.State())
}

func (g *Guard) Ready() bool {
	return g.Check().Ready
}

// Wait blocks until auth has resolved and returns the verdict
func (g *Guard) Wait(ctx context.Context) (Decision, error) {
	for {
		state, changed := g.sessions.changedCh()
		if d := g.decide(state); !d.Pending() {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-changed:
		}
	}
}

func (g *Guard) decide(state State) Decision {
	if state.Loading {
		return Decision{}
	}
	if !state.Authenticated() {
		return Decision{Redirect: g.loginPath}
	}
	if !g.allowed.Allows(state.User.Role) {
		return Decision{Redirect: g.fallbackPath}
	}
	return Decision{Ready: true}
}
