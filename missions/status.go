package missions

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/learnlink-client/alerts"
	"github.com/jrsteele09/learnlink-client/internal/utils"
)

type Status string

const (
	StatusAssigned   Status = "Assigned"
	StatusProcessing Status = "Processing"
	StatusSubmitted  Status = "Submitted"
	StatusCompleted  Status = "Completed"
)

// declaration order matches the backend's ordinals
var statuses = []Status{StatusAssigned, StatusProcessing, StatusSubmitted, StatusCompleted}

var transitions = map[Status][]Status{
	StatusAssigned:   {StatusProcessing},
	StatusProcessing: {StatusSubmitted},
	// a rejected submission sends the mission back to the child
	StatusSubmitted: {StatusCompleted, StatusProcessing},
}

// ParseStatus matches a status name case-insensitively, e.g. from a flag
func ParseStatus(s string) (Status, error) {
	for _, v := range statuses {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown mission status %q", s)
}

func (s Status) Valid() bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, v := range transitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Done reports whether the child has nothing left to do
func (s Status) Done() bool {
	return s == StatusSubmitted || s == StatusCompleted
}

func (s Status) Badge() alerts.Badge {
	switch s {
	case StatusAssigned:
		return alerts.Badge{Label: "Assigned", Level: alerts.LevelInfo}
	case StatusProcessing:
		return alerts.Badge{Label: "In progress", Level: alerts.LevelWarning}
	case StatusSubmitted:
		return alerts.Badge{Label: "Waiting for review", Level: alerts.LevelInfo}
	case StatusCompleted:
		return alerts.Badge{Label: "Completed", Level: alerts.LevelSuccess}
	}
	return alerts.Badge{Label: string(s), Level: alerts.LevelError}
}

func (s *Status) UnmarshalJSON(data []byte) error {
	v, err := utils.DecodeEnum(data, statuses)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
