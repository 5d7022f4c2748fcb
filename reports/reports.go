package reports

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/learnlink-client/client"
)

const dateLayout = "2006-01-02"

// Summary is a parent's report over a period, optionally for one child
type Summary struct {
	ChildID           string  `json:"childId,omitempty"`
	MissionsAssigned  int     `json:"missionsAssigned"`
	MissionsCompleted int     `json:"missionsCompleted"`
	MissionsOverdue   int     `json:"missionsOverdue"`
	PointsEarned      int     `json:"pointsEarned"`
	PointsSpent       int     `json:"pointsSpent"`
	AverageScore      float64 `json:"averageScore"`
	CompletionRate    float64 `json:"completionRate"`
}

// Rate returns the completion rate in [0,1], derived from the counts when
// the backend did not send it.
func (s Summary) Rate() float64 {
	if s.CompletionRate > 0 {
		if s.CompletionRate > 1 {
			return s.CompletionRate / 100
		}
		return s.CompletionRate
	}
	if s.MissionsAssigned == 0 {
		return 0
	}
	return float64(s.MissionsCompleted) / float64(s.MissionsAssigned)
}

// DailyActivity is one day of the activity chart
type DailyActivity struct {
	Date              string `json:"date"`
	MissionsCompleted int    `json:"missionsCompleted"`
	PointsEarned      int    `json:"pointsEarned"`
}

type Period struct {
	ChildID string
	From    time.Time
	To      time.Time
}

func (p Period) query() url.Values {
	q := url.Values{}
	if p.ChildID != "" {
		q.Set("childId", p.ChildID)
	}
	if !p.From.IsZero() {
		q.Set("from", p.From.Format(dateLayout))
	}
	if !p.To.IsZero() {
		q.Set("to", p.To.Format(dateLayout))
	}
	return q
}

// LastDays is the period ending today covering n days
func LastDays(now time.Time, n int) Period {
	return Period{From: now.AddDate(0, 0, -(n - 1)), To: now}
}

type Service struct {
	api *client.Client
}

func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

func (s *Service) Summary(ctx context.Context, period Period) (*Summary, error) {
	var out Summary
	if err := s.api.Get(ctx, "/Report/summary", period.query(), &out); err != nil {
		return nil, fmt.Errorf("[reports Summary] %w", err)
	}
	if out.ChildID == "" {
		out.ChildID = period.ChildID
	}
	return &out, nil
}

func (s *Service) Activity(ctx context.Context, period Period) ([]DailyActivity, error) {
	var out []DailyActivity
	if err := s.api.Get(ctx, "/Report/activity", period.query(), &out); err != nil {
		return nil, fmt.Errorf("[reports Activity] %w", err)
	}
	return out, nil
}
