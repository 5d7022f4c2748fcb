package submissions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/learnlink-client/alerts"
	"github.com/jrsteele09/learnlink-client/client"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/internal/utils"
	"github.com/jrsteele09/learnlink-client/internal/validation"
)

const (
	MaxScore = 10
	basePath = "/submission"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

var statuses = []Status{StatusPending, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransitionTo allows only the review step; reviews are final
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

func (s Status) Badge() alerts.Badge {
	switch s {
	case StatusPending:
		return alerts.Badge{Label: "Pending review", Level: alerts.LevelWarning}
	case StatusApproved:
		return alerts.Badge{Label: "Approved", Level: alerts.LevelSuccess}
	case StatusRejected:
		return alerts.Badge{Label: "Rejected", Level: alerts.LevelError}
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

type Submission struct {
	ID           string     `json:"id"`
	MissionID    string     `json:"missionId"`
	MissionTitle string     `json:"missionTitle,omitempty"`
	ChildID      string     `json:"childId"`
	ChildName    string     `json:"childName,omitempty"`
	FileURL      string     `json:"fileUrl,omitempty"`
	Note         string     `json:"note,omitempty"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	Status       Status     `json:"status"`
	Score        *int       `json:"score,omitempty"`
	Feedback     string     `json:"feedback,omitempty"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
}

func (s Submission) Reviewed() bool {
	return s.Status != StatusPending && s.ReviewedAt != nil
}

type SubmitRequest struct {
	MissionID string
	Note      string
	File      *client.File
}

func (r SubmitRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Required("missionId", r.MissionID)
	if r.File == nil && strings.TrimSpace(r.Note) == "" {
		fe.Add("file", "attach a file or write a note")
	}
	return fe.Err()
}

// ReviewRequest approves or rejects a pending submission
type ReviewRequest struct {
	Status   Status `json:"status"`
	Score    *int   `json:"score,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

func (r ReviewRequest) Validate() error {
	fe := validation.FieldErrors{}
	switch r.Status {
	case StatusApproved:
		if r.Score == nil {
			fe.Add("score", "is required")
		} else {
			fe.Range("score", *r.Score, 0, MaxScore)
		}
	case StatusRejected:
		fe.Required("feedback", r.Feedback)
	default:
		fe.Add("status", "must be Approved or Rejected")
	}
	return fe.Err()
}

func Approve(score int, feedback string) ReviewRequest {
	return ReviewRequest{Status: StatusApproved, Score: utils.Ptr(score), Feedback: feedback}
}

func Reject(feedback string) ReviewRequest {
	return ReviewRequest{Status: StatusRejected, Feedback: feedback}
}

type Service struct {
	api *client.Client
}

func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

// Submit uploads the child's work for a mission
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	form := client.NewForm().
		Set("missionId", req.MissionID).
		SetOptional("note", req.Note).
		Attach("file", req.File)

	var out Submission
	if err := s.api.Upload(ctx, http.MethodPost, basePath, form, &out); err != nil {
		return nil, fmt.Errorf("[submissions Submit] %w", err)
	}
	return &out, nil
}

func (s *Service) ListByMission(ctx context.Context, missionID string) ([]Submission, error) {
	var out []Submission
	if err := s.api.Get(ctx, basePath+"/mission/"+url.PathEscape(missionID), nil, &out); err != nil {
		return nil, fmt.Errorf("[submissions ListByMission] %w", err)
	}
	return out, nil
}

// ListPending returns submissions waiting for the parent's review
func (s *Service) ListPending(ctx context.Context) ([]Submission, error) {
	var out []Submission
	if err := s.api.Get(ctx, basePath+"/pending", nil, &out); err != nil {
		return nil, fmt.Errorf("[submissions ListPending] %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Submission, error) {
	var out Submission
	if err := s.api.Get(ctx, basePath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("[submissions Get] %w", err)
	}
	return &out, nil
}

// Review records the parent's decision. current is the submission's status
// as last seen; reviewed submissions are refused without a request.
func (s *Service) Review(ctx context.Context, id string, current Status, req ReviewRequest) (*Submission, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !current.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("[submissions Review] %w: %s -> %s", apperrors.ErrInvalidTransition, current, req.Status)
	}

	var out Submission
	if err := s.api.Put(ctx, basePath+"/"+url.PathEscape(id)+"/review", req, &out); err != nil {
		return nil, fmt.Errorf("[submissions Review] %w", err)
	}
	return &out, nil
}
