package manager_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jrsteele09/learnlink-client/client/clientfake"
	"github.com/jrsteele09/learnlink-client/manager"
	"github.com/jrsteele09/learnlink-client/pagination"
	"github.com/jrsteele09/learnlink-client/shop"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	srv := clientfake.NewServer(t)
	srv.Handle(http.MethodGet, "/manager/dashboard", http.StatusOK, map[string]any{"totalShops": 4, "pendingRedemptions": 2})
	srv.Handle(http.MethodGet, "/manager/shops", http.StatusOK, map[string]any{"items": []map[string]any{{"id": "s-1"}}, "totalCount": 1})
	srv.Handle(http.MethodGet, "/manager/redemptions", http.StatusOK, map[string]any{
		"items":      []map[string]any{{"id": "r-1", "status": "Pending"}},
		"totalCount": 25,
		"pageNumber": 2,
		"pageSize":   10,
	})
	svc := manager.NewService(srv.Client())
	ctx := context.Background()

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, d.TotalShops)
	require.Equal(t, 2, d.PendingRedemptions)

	shops, err := svc.Shops(ctx, pagination.Page{})
	require.NoError(t, err)
	require.Len(t, shops.Items, 1)

	reds, err := svc.Redemptions(ctx, shop.RedemptionPending, pagination.Page{Number: 2})
	require.NoError(t, err)
	require.Equal(t, shop.RedemptionPending, reds.Items[0].Status)
	require.True(t, reds.HasNext())
	require.Equal(t, []string{"Pending"}, srv.Last().Query["status"])
}
