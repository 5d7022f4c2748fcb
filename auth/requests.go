package auth

import (
	"strings"

	"github.com/jrsteele09/learnlink-client/internal/validation"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate only checks presence; the password policy applies to new
// passwords, not to logins.
func (r LoginRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Email("email", r.Email)
	fe.Required("password", r.Password)
	return fe.Err()
}

type GoogleLoginRequest struct {
	Credential string `json:"credential"`
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r RegisterRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Required("name", r.Name)
	fe.Email("email", r.Email)
	fe.Password("password", r.Password)
	fe.Match("confirmPassword", r.ConfirmPassword, r.Password)
	return fe.Err()
}

// RegisterChildRequest creates a child account under the logged in parent
type RegisterChildRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Age             int    `json:"age,omitempty"`
}

func (r RegisterChildRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Required("name", r.Name)
	fe.Email("email", r.Email)
	fe.Password("password", r.Password)
	fe.Match("confirmPassword", r.ConfirmPassword, r.Password)
	if r.Age != 0 {
		fe.Range("age", r.Age, 3, 18)
	}
	return fe.Err()
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
