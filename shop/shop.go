package shop

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
	shopPath    = "/shop"
	productPath = "/product"
)

var (
	ErrInsufficientPoints = apperrors.New("not enough points")
	ErrOutOfStock         = apperrors.New("product out of stock")
)

type Shop struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ShopRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
}

func (r ShopRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Required("name", r.Name)
	return fe.Err()
}

type Product struct {
	ID          string `json:"id"`
	ShopID      string `json:"shopId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int    `json:"price"`
	Stock       int    `json:"stock"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func (p Product) InStock(quantity int) bool {
	return quantity > 0 && p.Stock >= quantity
}

// CheckRedeem refuses redemptions the backend would reject for stock or
// balance.
func (p Product) CheckRedeem(quantity, balance int) error {
	if !p.InStock(quantity) {
		return ErrOutOfStock
	}
	if p.Price*quantity > balance {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientPoints, p.Price*quantity, balance)
	}
	return nil
}

type ProductRequest struct {
	ShopID      string
	Name        string
	Description string
	Price       int
	Stock       int
	Image       *client.File
}

func (r ProductRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Required("shopId", r.ShopID)
	fe.Required("name", r.Name)
	fe.Positive("price", r.Price)
	fe.NonNegative("stock", r.Stock)
	return fe.Err()
}

func (r ProductRequest) form() *client.Form {
	return client.NewForm().
		Set("shopId", r.ShopID).
		Set("name", r.Name).
		SetOptional("description", r.Description).
		SetInt("price", r.Price).
		SetInt("stock", r.Stock).
		Attach("image", r.Image)
}

type RedeemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (r RedeemRequest) Validate() error {
	fe := validation.FieldErrors{}
	fe.Required("productId", r.ProductID)
	fe.Positive("quantity", r.Quantity)
	return fe.Err()
}

type Service struct {
	api *client.Client
}

func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

func (s *Service) ListShops(ctx context.Context) ([]Shop, error) {
	var out []Shop
	if err := s.api.Get(ctx, shopPath, nil, &out); err != nil {
		return nil, fmt.Errorf("[shop ListShops] %w", err)
	}
	return out, nil
}

func (s *Service) GetShop(ctx context.Context, id string) (*Shop, error) {
	var out Shop
	if err := s.api.Get(ctx, shopPath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("[shop GetShop] %w", err)
	}
	return &out, nil
}

func (s *Service) CreateShop(ctx context.Context, req ShopRequest) (*Shop, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out Shop
	if err := s.api.Post(ctx, shopPath, req, &out); err != nil {
		return nil, fmt.Errorf("[shop CreateShop] %w", err)
	}
	return &out, nil
}

func (s *Service) UpdateShop(ctx context.Context, id string, req ShopRequest) (*Shop, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out Shop
	if err := s.api.Put(ctx, shopPath+"/"+url.PathEscape(id), req, &out); err != nil {
		return nil, fmt.Errorf("[shop UpdateShop] %w", err)
	}
	return &out, nil
}

func (s *Service) ListProducts(ctx context.Context, shopID string, page pagination.Page) (*pagination.Result[Product], error) {
	var out pagination.Result[Product]
	if err := s.api.Get(ctx, productPath+"/shop/"+url.PathEscape(shopID), page.Query(nil), &out); err != nil {
		return nil, fmt.Errorf("[shop ListProducts] %w", err)
	}
	out.Fill(page)
	return &out, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	var out Product
	if err := s.api.Get(ctx, productPath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("[shop GetProduct] %w", err)
	}
	return &out, nil
}

func (s *Service) CreateProduct(ctx context.Context, req ProductRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out Product
	if err := s.api.Upload(ctx, http.MethodPost, productPath, req.form(), &out); err != nil {
		return nil, fmt.Errorf("[shop CreateProduct] %w", err)
	}
	return &out, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req ProductRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out Product
	if err := s.api.Upload(ctx, http.MethodPut, productPath+"/"+url.PathEscape(id), req.form(), &out); err != nil {
		return nil, fmt.Errorf("[shop UpdateProduct] %w", err)
	}
	return &out, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, productPath+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("[shop DeleteProduct] %w", err)
	}
	return nil
}

// Redeem spends the child's points on a product
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*Redemption, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out Redemption
	if err := s.api.Post(ctx, shopPath+"/redeem", req, &out); err != nil {
		return nil, fmt.Errorf("[shop Redeem] %w", err)
	}
	return &out, nil
}

// MyRedemptions lists the logged in child's redemptions
func (s *Service) MyRedemptions(ctx context.Context) ([]Redemption, error) {
	var out []Redemption
	if err := s.api.Get(ctx, shopPath+"/redemptions/me", nil, &out); err != nil {
		return nil, fmt.Errorf("[shop MyRedemptions] %w", err)
	}
	return out, nil
}

func (s *Service) Confirm(ctx context.Context, r Redemption) (*Redemption, error) {
	return s.updateStatus(ctx, r, RedemptionConfirmed)
}

func (s *Service) Deliver(ctx context.Context, r Redemption) (*Redemption, error) {
	return s.updateStatus(ctx, r, RedemptionDelivered)
}

func (s *Service) Cancel(ctx context.Context, r Redemption) (*Redemption, error) {
	return s.updateStatus(ctx, r, RedemptionCancelled)
}

func (s *Service) updateStatus(ctx context.Context, r Redemption, next RedemptionStatus) (*Redemption, error) {
	if !r.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("[shop UpdateRedemption] %w: %s -> %s", apperrors.ErrInvalidTransition, r.Status, next)
	}
	body := struct {
		Status RedemptionStatus `json:"status"`
	}{next}

	var out Redemption
	if err := s.api.Put(ctx, shopPath+"/redemptions/"+url.PathEscape(r.ID)+"/status", body, &out); err != nil {
		return nil, fmt.Errorf("[shop UpdateRedemption] %w", err)
	}
	return &out, nil
}
