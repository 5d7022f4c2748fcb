// Package tokenfake mints access tokens shaped like the backend's, for tests.
package tokenfake

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/learnlink-client/users"
)

const secret = "tokenfake-secret"

// Identity describes the subject of a minted token
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  users.RoleType
}

func Parent() Identity {
	return Identity{ID: "parent-1", Email: "parent@example.com", Name: "Pat Parent", Role: users.RoleParent}
}

func Child() Identity {
	return Identity{ID: "child-1", Email: "kid@example.com", Name: "Casey Child", Role: users.RoleChild}
}

func Admin() Identity {
	return Identity{ID: "admin-1", Email: "admin@example.com", Name: "Ada Admin", Role: users.RoleAdmin}
}

// Mint returns a signed HS256 token for id expiring at exp
func Mint(id Identity, exp time.Time) string {
	claims := jwt.MapClaims{
		"id":    id.ID,
		"email": id.Email,
		"name":  id.Name,
		"role":  string(id.Role),
		"exp":   exp.Unix(),
		"jti":   uuid.New().String(),
	}
	return sign(claims)
}

// MintClaims signs arbitrary claims, for malformed-token tests
func MintClaims(claims jwt.MapClaims) string {
	return sign(claims)
}

func sign(claims jwt.MapClaims) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(fmt.Sprintf("tokenfake: sign: %v", err))
	}
	return signed
}
