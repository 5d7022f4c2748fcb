package points

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/internal/utils"
	"github.com/jrsteele09/learnlink-client/pagination"
)

const basePath = "/point"

type Balance struct {
	ChildID     string `json:"childId"`
	ChildName   string `json:"childName,omitempty"`
	Balance     int    `json:"balance"`
	TotalEarned int    `json:"totalEarned"`
	TotalSpent  int    `json:"totalSpent"`
}

type TransactionType string

const (
	TransactionEarned TransactionType = "Earned"
	TransactionSpent  TransactionType = "Spent"
	TransactionTopUp  TransactionType = "TopUp"
	TransactionRefund TransactionType = "Refund"
)

var transactionTypes = []TransactionType{TransactionEarned, TransactionSpent, TransactionTopUp, TransactionRefund}

func (t *TransactionType) UnmarshalJSON(data []byte) error {
	v, err := utils.DecodeEnum(data, transactionTypes)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type Transaction struct {
	ID        string          `json:"id"`
	ChildID   string          `json:"childId"`
	Amount    int             `json:"amount"`
	Type      TransactionType `json:"type"`
	Reason    string          `json:"reason,omitempty"`
	MissionID string          `json:"missionId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Signed returns the amount as it affects the balance
func (t Transaction) Signed() int {
	if t.Type == TransactionSpent && t.Amount > 0 {
		return -t.Amount
	}
	return t.Amount
}

type Service struct {
	api *client.Client
}

func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

// Balance returns the logged in child's balance
func (s *Service) Balance(ctx context.Context) (*Balance, error) {
	var out Balance
	if err := s.api.Get(ctx, basePath+"/balance", nil, &out); err != nil {
		return nil, fmt.Errorf("[points Balance] %w", err)
	}
	return &out, nil
}

// ChildBalance is the parent's view of one child's balance
func (s *Service) ChildBalance(ctx context.Context, childID string) (*Balance, error) {
	var out Balance
	if err := s.api.Get(ctx, basePath+"/child/"+url.PathEscape(childID)+"/balance", nil, &out); err != nil {
		return nil, fmt.Errorf("[points ChildBalance] %w", err)
	}
	if out.ChildID == "" {
		out.ChildID = childID
	}
	return &out, nil
}

// History lists point movements, newest first. An empty childID means the
// logged in child.
func (s *Service) History(ctx context.Context, childID string, page pagination.Page) (*pagination.Result[Transaction], error) {
	q := url.Values{}
	if childID != "" {
		q.Set("childId", childID)
	}
	var out pagination.Result[Transaction]
	if err := s.api.Get(ctx, basePath+"/history", page.Query(q), &out); err != nil {
		return nil, fmt.Errorf("[points History] %w", err)
	}
	out.Fill(page)
	return &out, nil
}
