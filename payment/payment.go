package payment

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/learnlink-client/alerts"
	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/internal/utils"
	"github.com/jrsteele09/learnlink-client/internal/validation"
)

const (
	basePath  = "/payment"
	MinPoints = 10
	MaxPoints = 10000
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

var statuses = []Status{StatusPending, StatusPaid, StatusFailed, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransitionTo allows a pending checkout to settle once
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next != StatusPending && next.Valid()
}

func (s Status) Settled() bool {
	return s != StatusPending
}

func (s Status) Badge() alerts.Badge {
	switch s {
	case StatusPending:
		return alerts.Badge{Label: "Awaiting payment", Level: alerts.LevelWarning}
	case StatusPaid:
		return alerts.Badge{Label: "Paid", Level: alerts.LevelSuccess}
	case StatusFailed:
		return alerts.Badge{Label: "Failed", Level: alerts.LevelError}
	case StatusCancelled:
		return alerts.Badge{Label: "Cancelled", Level: alerts.LevelInfo}
	}
	return alerts.Badge{Label: string(s), Level: alerts.LevelInfo}
}

func (s *Status) UnmarshalJSON(data []byte) error {
	v, err := utils.DecodeEnum(data, statuses)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Checkout is a points top-up paid through the backend's payment provider
type Checkout struct {
	ID          string    `json:"id"`
	Points      int       `json:"points"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	CheckoutURL string    `json:"checkoutUrl"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CheckoutRequest struct {
	ChildID   string `json:"childId,omitempty"`
	Points    int    `json:"points"`
	ReturnURL string `json:"returnUrl,omitempty"`
}

func (r CheckoutRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Range("points", r.Points, MinPoints, MaxPoints)
	if r.ReturnURL != "" {
		if u, err := url.Parse(r.ReturnURL); err != nil || u.Scheme == "" || u.Host == "" {
			fe.Add("returnUrl", "must be an absolute URL")
		}
	}
	return fe.Err()
}

type Service struct {
	api *client.Client
}

func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out Checkout
	if err := s.api.Post(ctx, basePath+"/checkout", req, &out); err != nil {
		return nil, fmt.Errorf("[payment CreateCheckout] %w", err)
	}
	return &out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Checkout, error) {
	var out Checkout
	if err := s.api.Get(ctx, basePath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("[payment Get] %w", err)
	}
	return &out, nil
}

// Wait polls the checkout until it settles or ctx ends
func (s *Service) Wait(ctx context.Context, id string, interval time.Duration) (*Checkout, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.Status.Settled() {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return c, ctx.Err()
		case <-ticker.C:
		}
	}
}
