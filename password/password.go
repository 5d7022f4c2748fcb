package password

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/internal/validation"
)

const basePath = "/password"

type ChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r ChangeRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Required("currentPassword", r.CurrentPassword)
	fe.Password("newPassword", r.NewPassword)
	fe.Match("confirmPassword", r.ConfirmPassword, r.NewPassword)
	if r.CurrentPassword != "" && r.CurrentPassword == r.NewPassword {
		fe.Add("newPassword", "must differ from the current password")
	}
	return fe.Err()
}

type ForgotRequest struct {
	Email string `json:"email"`
}

func (r ForgotRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Email("email", r.Email)
	return fe.Err()
}

// ResetRequest completes a reset with the token from the emailed link
type ResetRequest struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r ResetRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Email("email", r.Email)
	fe.Required("token", r.Token)
	fe.Password("newPassword", r.NewPassword)
	fe.Match("confirmPassword", r.ConfirmPassword, r.NewPassword)
	return fe.Err()
}

type Service struct {
	api *client.Client
}

// NewService takes the authorized client; Forgot and Reset work without a
// token as well.
func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

func (s *Service) Change(ctx context.Context, req ChangeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.api.Post(ctx, basePath+"/change", req, nil); err != nil {
		return fmt.Errorf("[password Change] %w", err)
	}
	return nil
}

func (s *Service) Forgot(ctx context.Context, req ForgotRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.api.Post(ctx, basePath+"/forgot", req, nil); err != nil {
		return fmt.Errorf("[password Forgot] %w", err)
	}
	return nil
}

func (s *Service) Reset(ctx context.Context, req ResetRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.api.Post(ctx, basePath+"/reset", req, nil); err != nil {
		return fmt.Errorf("[password Reset] %w", err)
	}
	return nil
}
