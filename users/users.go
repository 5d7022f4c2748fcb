package users

import (
	"fmt"
	"strings"
)

// RoleType is one of the three account kinds the backend issues tokens for
type RoleType string

const (
	RoleParent RoleType = "Parent" // Assigns and reviews missions, registers children
	RoleChild  RoleType = "Child"  // Completes missions, redeems points
	RoleAdmin  RoleType = "Admin"  // Manages shops, products and redemptions
)

var knownRoles = []RoleType{RoleParent, RoleChild, RoleAdmin}

// ParseRole maps a claim value onto the closed role set. Matching is
// case-insensitive because the backend has emitted both "Parent" and "parent".
func ParseRole(s string) (RoleType, error) {
	for _, r := range knownRoles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r RoleType) Valid() bool {
	for _, k := range knownRoles {
		if r == k {
			return true
		}
	}
	return false
}

func (r RoleType) String() string {
	return string(r)
}

func (r *RoleType) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// RoleSet is a capability set checked by route guards. An empty set admits
// every role.
type RoleSet map[RoleType]struct{}

func NewRoleSet(roles ...RoleType) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Allows(r RoleType) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[r]
	return ok
}

// User is the lightweight identity decoded from the access token claims.
// It is never fetched separately.
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  RoleType `json:"role"`
}

func (u *User) IsParent() bool {
	return u != nil && u.Role == RoleParent
}

func (u *User) IsChild() bool {
	return u != nil && u.Role == RoleChild
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// HasRole returns true if the user holds any of roles
func (u *User) HasRole(roles ...RoleType) bool {
	if u == nil {
		return false
	}
	return NewRoleSet(roles...).Allows(u.Role)
}
