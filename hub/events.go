package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/learnlink-client/missions"
	"github.com/jrsteele09/learnlink-client/submissions"
)

// Events pushed by the notification hub
const (
	EventMissionCreated   = "MissionCreated"
	EventMissionStarted   = "MissionStarted"
	EventMissionSubmitted = "MissionSubmitted"
	EventMissionReviewed  = "MissionReviewed"
)

// MissionEvents lists every mission lifecycle event in the order they occur
var MissionEvents = []string{
	EventMissionCreated,
	EventMissionStarted,
	EventMissionSubmitted,
	EventMissionReviewed,
}

// Event is one invocation received from the hub
type Event struct {
	Name       string
	Arguments  []json.RawMessage
	ReceivedAt time.Time
}

// Payload returns the first argument, which is where the backend puts the
// event body. It is nil for argument-less invocations.
func (e Event) Payload() json.RawMessage {
	if len(e.Arguments) == 0 {
		return nil
	}
	return e.Arguments[0]
}

// Decode unmarshals the payload into v
func (e Event) Decode(v any) error {
	payload := e.Payload()
	if payload == nil {
		return fmt.Errorf("[hub Event] %s has no payload", e.Name)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("[hub Event] decode %s: %w", e.Name, err)
	}
	return nil
}

// MissionEvent is the payload of the mission lifecycle events. Fields the
// backend omits for a given event stay zero.
type MissionEvent struct {
	MissionID        string             `json:"missionId"`
	Title            string             `json:"title"`
	ChildID          string             `json:"childId"`
	ChildName        string             `json:"childName"`
	ParentID         string             `json:"parentId"`
	Status           missions.Status    `json:"status"`
	SubmissionID     string             `json:"submissionId,omitempty"`
	SubmissionStatus submissions.Status `json:"submissionStatus,omitempty"`
	Score            *int               `json:"score,omitempty"`
	Points           int                `json:"points,omitempty"`
	Message          string             `json:"message,omitempty"`
}

// Summary is a one-line human description for notification lists
func (e MissionEvent) Summary(event string) string {
	title := e.Title
	if title == "" {
		title = e.MissionID
	}
	switch event {
	case EventMissionCreated:
		return fmt.Sprintf("New mission %q", title)
	case EventMissionStarted:
		return fmt.Sprintf("%s started %q", nameOr(e.ChildName, "Child"), title)
	case EventMissionSubmitted:
		return fmt.Sprintf("%s submitted %q for review", nameOr(e.ChildName, "Child"), title)
	case EventMissionReviewed:
		if e.SubmissionStatus == submissions.StatusRejected {
			return fmt.Sprintf("%q was sent back", title)
		}
		if e.Score != nil {
			return fmt.Sprintf("%q was approved with score %d", title, *e.Score)
		}
		return fmt.Sprintf("%q was reviewed", title)
	}
	if e.Message != "" {
		return e.Message
	}
	return event
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
