// Package manager is the admin dashboard over every family's shops and
// redemptions.
package manager

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/pagination"
	"github.com/jrsteele09/learnlink-client/shop"
)

const basePath = "/manager"

type Dashboard struct {
	TotalShops         int `json:"totalShops"`
	TotalProducts      int `json:"totalProducts"`
	TotalRedemptions   int `json:"totalRedemptions"`
	PendingRedemptions int `json:"pendingRedemptions"`
	PointsRedeemed     int `json:"pointsRedeemed"`
}

type Service struct {
	api *client.Client
}

func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var out Dashboard
	if err := s.api.Get(ctx, basePath+"/dashboard", nil, &out); err != nil {
		return nil, fmt.Errorf("[manager Dashboard] %w", err)
	}
	return &out, nil
}

func (s *Service) Shops(ctx context.Context, page pagination.Page) (*pagination.Result[shop.Shop], error) {
	var out pagination.Result[shop.Shop]
	if err := s.api.Get(ctx, basePath+"/shops", page.Query(nil), &out); err != nil {
		return nil, fmt.Errorf("[manager Shops] %w", err)
	}
	out.Fill(page)
	return &out, nil
}

// Redemptions lists redemptions across all shops; an empty status lists all
func (s *Service) Redemptions(ctx context.Context, status shop.RedemptionStatus, page pagination.Page) (*pagination.Result[shop.Redemption], error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	var out pagination.Result[shop.Redemption]
	if err := s.api.Get(ctx, basePath+"/redemptions", page.Query(q), &out); err != nil {
		return nil, fmt.Errorf("[manager Redemptions] %w", err)
	}
	out.Fill(page)
	return &out, nil
}
