package notifications

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/pagination"
)

const basePath = "/notification"

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	MissionID string    `json:"missionId,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	api *client.Client
}

func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

func (s *Service) List(ctx context.Context, unreadOnly bool, page pagination.Page) (*pagination.Result[Notification], error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unreadOnly", "true")
	}
	var out pagination.Result[Notification]
	if err := s.api.Get(ctx, basePath, page.Query(q), &out); err != nil {
		return nil, fmt.Errorf("[notifications List] %w", err)
	}
	out.Fill(page)
	return &out, nil
}

func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := s.api.Get(ctx, basePath+"/unread-count", nil, &out); err != nil {
		return 0, fmt.Errorf("[notifications UnreadCount] %w", err)
	}
	return out.Count, nil
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	if err := s.api.Put(ctx, basePath+"/"+url.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("[notifications MarkRead] %w", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context) error {
	if err := s.api.Put(ctx, basePath+"/read-all", nil, nil); err != nil {
		return fmt.Errorf("[notifications MarkAllRead] %w", err)
	}
	return nil
}
