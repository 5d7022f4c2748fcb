package token

import (
	"fmt"
	"sync"

	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"golang.org/x/oauth2"
)

// Store is the single in-memory cell holding the current access token.
// The refresh credential never passes through it; it lives in an HttpOnly
// cookie managed by the cookie jar.
type Store struct {
	mu     sync.RWMutex
	token  *oauth2.Token
	claims *Claims
	epoch  uint64
}

var _ oauth2.TokenSource = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

// Set decodes raw and replaces the held token. The store is left unchanged
// if raw cannot be decoded.
func (s *Store) Set(raw string) (*Claims, error) {
	claims, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("[Store Set] %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(raw, claims)
	return claims, nil
}

// SetIfEpoch is Set, but only while the store has not been cleared since
// epoch was read. A clear in between means the session ended, and
// ErrSessionExpired is returned with the store left as it is.
func (s *Store) SetIfEpoch(raw string, epoch uint64) (*Claims, error) {
	claims, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("[Store SetIfEpoch] %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil, fmt.Errorf("[Store SetIfEpoch] %w", apperrors.ErrSessionExpired)
	}
	s.setLocked(raw, claims)
	return claims, nil
}

func (s *Store) setLocked(raw string, claims *Claims) {
	s.token = &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
		Expiry:      claims.ExpiresAt,
	}
	s.claims = claims
}

// Clear drops the token and starts a new epoch
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.claims = nil
	s.epoch++
}

// Epoch counts how many times the store has been cleared
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// AccessToken returns the raw token, or "" when none is held
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

// Claims returns the decoded claims of the held token, or nil
func (s *Store) Claims() *Claims {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return nil
	}
	c := *s.claims
	return &c
}

// Token implements oauth2.TokenSource so the store can back an
// oauth2.Transport. It does not refresh; expired tokens are still returned
// and the backend answers 401.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	t := *s.token
	return &t, nil
}
