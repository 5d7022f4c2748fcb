package missions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/learnlink-client/client"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/internal/validation"
	"github.com/jrsteele09/learnlink-client/pagination"
)

const (
	MaxPoints = 1000
	basePath  = "/mission"
)

type Mission struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Points        int       `json:"points"`
	Promise       string    `json:"promise,omitempty"`
	Punishment    string    `json:"punishment,omitempty"`
	Deadline      time.Time `json:"deadline"`
	Status        Status    `json:"status"`
	ChildID       string    `json:"childId"`
	ChildName     string    `json:"childName,omitempty"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Overdue reports whether the deadline passed before the child submitted
func (m Mission) Overdue(now time.Time) bool {
	return !m.Status.Done() && !m.Deadline.IsZero() && now.After(m.Deadline)
}

// Filter narrows List. Zero values are not sent.
type Filter struct {
	Status  Status
	ChildID string
	Search  string
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.ChildID != "" {
		q.Set("childId", f.ChildID)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

type CreateRequest struct {
	Title       string
	Description string
	Points      int
	Promise     string
	Punishment  string
	Deadline    time.Time
	ChildID     string
	Attachment  *client.File
}

func (r CreateRequest) Validate(now time.Time) error {
	fe := validation.FieldErrors{}
	fe.Required("title", r.Title)
	fe.Range("points", r.Points, 1, MaxPoints)
	fe.After("deadline", r.Deadline, now)
	fe.Required("childId", r.ChildID)
	return fe.Err()
}

func (r CreateRequest) form() *client.Form {
	return client.NewForm().
		Set("title", r.Title).
		SetOptional("description", r.Description).
		SetInt("points", r.Points).
		SetOptional("promise", r.Promise).
		SetOptional("punishment", r.Punishment).
		SetTime("deadline", r.Deadline).
		Set("childId", r.ChildID).
		Attach("attachment", r.Attachment)
}

type UpdateRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	Promise     string    `json:"promise,omitempty"`
	Punishment  string    `json:"punishment,omitempty"`
	Deadline    time.Time `json:"deadline"`
}

func (r UpdateRequest) Validate(now time.Time) error {
	fe := validation.FieldErrors{}
	fe.Required("title", r.Title)
	fe.Range("points", r.Points, 1, MaxPoints)
	fe.After("deadline", r.Deadline, now)
	return fe.Err()
}

type Service struct {
	api     *client.Client
	nowFunc func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = fn
	}
}

func NewService(api *client.Client, options ...ServiceOption) *Service {
	s := &Service{api: api, nowFunc: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, filter Filter, page pagination.Page) (*pagination.Result[Mission], error) {
	var out pagination.Result[Mission]
	if err := s.api.Get(ctx, basePath, page.Query(filter.query()), &out); err != nil {
		return nil, fmt.Errorf("[missions List] %w", err)
	}
	out.Fill(page)
	return &out, nil
}

// ListForChild returns the missions assigned to the logged in child
func (s *Service) ListForChild(ctx context.Context, status Status) ([]Mission, error) {
	var out []Mission
	if err := s.api.Get(ctx, basePath+"/child", Filter{Status: status}.query(), &out); err != nil {
		return nil, fmt.Errorf("[missions ListForChild] %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Mission, error) {
	var out Mission
	if err := s.api.Get(ctx, basePath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("[missions Get] %w", err)
	}
	return &out, nil
}

// Create assigns a new mission to a child. It is always sent as multipart
// so an optional attachment can ride along.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Mission, error) {
	if err := req.Validate(s.nowFunc()); err != nil {
		return nil, err
	}
	var out Mission
	if err := s.api.Upload(ctx, http.MethodPost, basePath, req.form(), &out); err != nil {
		return nil, fmt.Errorf("[missions Create] %w", err)
	}
	return &out, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Mission, error) {
	if err := req.Validate(s.nowFunc()); err != nil {
		return nil, err
	}
	var out Mission
	if err := s.api.Put(ctx, basePath+"/"+url.PathEscape(id), req, &out); err != nil {
		return nil, fmt.Errorf("[missions Update] %w", err)
	}
	return &out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, basePath+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("[missions Delete] %w", err)
	}
	return nil
}

// Start moves an assigned mission to Processing. Missions in any other
// status are refused without a request.
func (s *Service) Start(ctx context.Context, m Mission) (*Mission, error) {
	if !m.Status.CanTransitionTo(StatusProcessing) {
		return nil, fmt.Errorf("[missions Start] %w: %s -> %s", apperrors.ErrInvalidTransition, m.Status, StatusProcessing)
	}
	var out Mission
	if err := s.api.Patch(ctx, basePath+"/"+url.PathEscape(m.ID)+"/start", nil, &out); err != nil {
		return nil, fmt.Errorf("[missions Start] %w", err)
	}
	return &out, nil
}
