package shop

import (
	"time"

	"github.com/jrsteele09/learnlink-client/alerts"
	"github.com/jrsteele09/learnlink-client/internal/utils"
)

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "Pending"
	RedemptionConfirmed RedemptionStatus = "Confirmed"
	RedemptionDelivered RedemptionStatus = "Delivered"
	RedemptionCancelled RedemptionStatus = "Cancelled"
)

var redemptionStatuses = []RedemptionStatus{RedemptionPending, RedemptionConfirmed, RedemptionDelivered, RedemptionCancelled}

var redemptionTransitions = map[RedemptionStatus][]RedemptionStatus{
	RedemptionPending:   {RedemptionConfirmed, RedemptionCancelled},
	RedemptionConfirmed: {RedemptionDelivered, RedemptionCancelled},
}

func (s RedemptionStatus) Valid() bool {
	for _, v := range redemptionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s RedemptionStatus) CanTransitionTo(next RedemptionStatus) bool {
	for _, v := range redemptionTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Final reports whether no further transition is possible
func (s RedemptionStatus) Final() bool {
	return len(redemptionTransitions[s]) == 0
}

func (s RedemptionStatus) Badge() alerts.Badge {
	switch s {
	case RedemptionPending:
		return alerts.Badge{Label: "Pending", Level: alerts.LevelWarning}
	case RedemptionConfirmed:
		return alerts.Badge{Label: "Confirmed", Level: alerts.LevelInfo}
	case RedemptionDelivered:
		return alerts.Badge{Label: "Delivered", Level: alerts.LevelSuccess}
	case RedemptionCancelled:
		return alerts.Badge{Label: "Cancelled", Level: alerts.LevelError}
	}
	return alerts.Badge{Label: string(s), Level: alerts.LevelInfo}
}

func (s *RedemptionStatus) UnmarshalJSON(data []byte) error {
	v, err := utils.DecodeEnum(data, redemptionStatuses)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Redemption struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"productId"`
	ProductName string           `json:"productName,omitempty"`
	ShopID      string           `json:"shopId,omitempty"`
	ChildID     string           `json:"childId"`
	ChildName   string           `json:"childName,omitempty"`
	Quantity    int              `json:"quantity"`
	TotalPoints int              `json:"totalPoints"`
	Status      RedemptionStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   *time.Time       `json:"updatedAt,omitempty"`
}
