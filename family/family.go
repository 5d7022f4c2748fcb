package family

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/internal/validation"
	"github.com/jrsteele09/learnlink-client/users"
)

type Profile struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Role      users.RoleType `json:"role"`
	AvatarURL string         `json:"avatarUrl,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (r UpdateProfileRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Required("name", r.Name)
	return fe.Err()
}

// Child is a child account as seen by its parent
type Child struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Age               int    `json:"age,omitempty"`
	Points            int    `json:"points"`
	ActiveMissions    int    `json:"activeMissions"`
	CompletedMissions int    `json:"completedMissions"`
}

type Service struct {
	api *client.Client
}

func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := s.api.Get(ctx, "/User/profile", nil, &out); err != nil {
		return nil, fmt.Errorf("[family Profile] %w", err)
	}
	return &out, nil
}

func (s *Service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out Profile
	if err := s.api.Put(ctx, "/User/profile", req, &out); err != nil {
		return nil, fmt.Errorf("[family UpdateProfile] %w", err)
	}
	return &out, nil
}

func (s *Service) Children(ctx context.Context) ([]Child, error) {
	var out []Child
	if err := s.api.Get(ctx, "/Parent/children", nil, &out); err != nil {
		return nil, fmt.Errorf("[family Children] %w", err)
	}
	return out, nil
}

func (s *Service) Child(ctx context.Context, id string) (*Child, error) {
	var out Child
	if err := s.api.Get(ctx, "/Parent/children/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("[family Child] %w", err)
	}
	return &out, nil
}
