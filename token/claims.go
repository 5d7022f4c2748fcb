package token

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/internal/utils"
	"github.com/jrsteele09/learnlink-client/users"
)

// Claim names used by the backend. ASP.NET Core emits the long schema URIs
// unless the claim map is cleared, so both forms are accepted.
const (
	claimID    = "id"
	claimEmail = "email"
	claimName  = "name"
	claimRole  = "role"
	claimExp   = "exp"

	claimIDLong    = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimEmailLong = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	claimNameLong  = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	claimRoleLong  = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// Claims is the identity carried by an access token
type Claims struct {
	ID        string
	Email     string
	Name      string
	Role      users.RoleType
	ExpiresAt time.Time
}

// User returns the lightweight user record derived from the claims
func (c *Claims) User() *users.User {
	return &users.User{
		ID:    c.ID,
		Email: c.Email,
		Name:  c.Name,
		Role:  c.Role,
	}
}

// Remaining returns how long the token stays valid after now
func (c *Claims) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// Decode extracts claims from a raw access token without verifying its
// signature. Verification is the backend's job; the client only needs the
// identity and the expiry.
func Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("[token Decode] empty token: %w", apperrors.ErrInvalidToken)
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("[token Decode] %w: %v", apperrors.ErrInvalidToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("[token Decode] error extracting claims: %w", apperrors.ErrInvalidToken)
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("[token Decode] %s: %w", claimExp, apperrors.ErrMissingClaim)
	}

	id := firstString(mapClaims, claimID, claimIDLong, "sub")
	if id == "" {
		return nil, fmt.Errorf("[token Decode] %s: %w", claimID, apperrors.ErrMissingClaim)
	}

	role, err := parseRoleClaim(mapClaims)
	if err != nil {
		return nil, fmt.Errorf("[token Decode] %w: %v", apperrors.ErrInvalidToken, err)
	}

	return &Claims{
		ID:        id,
		Email:     firstString(mapClaims, claimEmail, claimEmailLong),
		Name:      firstString(mapClaims, claimName, claimNameLong),
		Role:      role,
		ExpiresAt: exp.Time,
	}, nil
}

func firstString(claims jwtlib.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// parseRoleClaim accepts a single role or an array of roles, returning the
// first one the client knows about.
func parseRoleClaim(claims jwtlib.MapClaims) (users.RoleType, error) {
	for _, k := range []string{claimRole, claimRoleLong} {
		switch v := claims[k].(type) {
		case string:
			return users.ParseRole(v)
		case []any:
			for _, s := range utils.ToStringSlice(v) {
				if r, err := users.ParseRole(s); err == nil {
					return r, nil
				}
			}
			return "", fmt.Errorf("no known role in %v", v)
		}
	}
	return "", fmt.Errorf("%s: %w", claimRole, apperrors.ErrMissingClaim)
}
