package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderfood/preorder.git/internal/orders"
)

func doAdmin(t *testing.T, r http.Handler, method, path, merchant string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if merchant != "" {
		req.Header.Set("X-Merchant-ID", merchant)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestAdminCreateMenuItem(t *testing.T) {
	r, _, s := newTestServer(t)

	price := int64(1500)
	stock := 20
	rec, env := doAdmin(t, r, http.MethodPost, "/admin/menu", "m-1", map[string]any{
		"name":        "braised pork",
		"price_cents": price,
		"stock":       stock,
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	var v menuItemView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, "braised pork", v.Name)
	assert.Equal(t, price, v.PriceCents)
	assert.Equal(t, stock, v.Stock)
	// no cutoff in the request falls back to the default 11:00
	assert.Equal(t, 11, v.CutoffTime.Hour())
	assert.Equal(t, 0, v.CutoffTime.Minute())

	m, err := s.MenuItemByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.MerchantID)
}

func TestAdminCreateMenuItemValidation(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec, env := doAdmin(t, r, http.MethodPost, "/admin/menu", "", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeUnauthorized, env.Code)

	rec, env = doAdmin(t, r, http.MethodPost, "/admin/menu", "m-1", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeBadRequest, env.Code)

	rec, env = doAdmin(t, r, http.MethodPost, "/admin/menu", "m-1", map[string]any{
		"name": "x", "price_cents": 100, "stock": 5, "cutoff_time": "25:99",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeBadRequest, env.Code)
}

func TestAdminUpdateMenuItem(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)

	rec, env := doAdmin(t, r, http.MethodPut, "/admin/menu/rice", "m-1", map[string]any{
		"price_cents": 1300,
		"stock":       15,
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	m, err := s.MenuItemByID(context.Background(), "rice")
	require.NoError(t, err)
	assert.Equal(t, int64(1300), m.PriceCents)
	assert.Equal(t, 15, m.Stock)
	assert.Equal(t, "dish rice", m.Name, "omitted fields keep their value")
}

func TestAdminDeleteMenuItem(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	seedMenu(t, s, "soup", 800, 10)
	createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})

	// an item someone ordered must stay
	rec, env := doAdmin(t, r, http.MethodDelete, "/admin/menu/rice", "m-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeConflict, env.Code)

	rec, _ = doAdmin(t, r, http.MethodDelete, "/admin/menu/soup", "m-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := s.MenuItemByID(context.Background(), "soup")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestAdminSetCutoff(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	seedMenu(t, s, "soup", 800, 10)

	rec, env := doAdmin(t, r, http.MethodPut, "/admin/menu/cutoff", "m-1", map[string]any{
		"cutoff_time": "10:30",
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	for _, id := range []string{"rice", "soup"} {
		m, err := s.MenuItemByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 10, m.CutoffTime.Hour())
		assert.Equal(t, 30, m.CutoffTime.Minute())
	}
}

func TestAdminTodayOrdersFilter(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	v1 := createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})
	createOrder(t, r, "u-2", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})
	notifyXML(t, r, v1.OrderNo, "txn-1", v1.TotalCents)

	var out struct {
		List []orderView `json:"list"`
	}

	rec, env := doAdmin(t, r, http.MethodGet, "/admin/orders/today", "m-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Len(t, out.List, 2)

	rec, env = doAdmin(t, r, http.MethodGet, "/admin/orders/today?status=1", "m-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.List, 1)
	assert.Equal(t, v1.ID, out.List[0].ID)
}

func TestAdminStats(t *testing.T) {
	r, e, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	seedMenu(t, s, "soup", 800, 10)

	paid := createOrder(t, r, "u-1", []orders.CartLine{
		{MenuItemID: "rice", Quantity: 2},
		{MenuItemID: "soup", Quantity: 1},
	})
	notifyXML(t, r, paid.OrderNo, "txn-1", paid.TotalCents)
	createOrder(t, r, "u-2", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})
	gone := createOrder(t, r, "u-3", []orders.CartLine{{MenuItemID: "soup", Quantity: 1}})
	_, err := e.Cancel(context.Background(), gone.ID, "user")
	require.NoError(t, err)

	rec, env := doAdmin(t, r, http.MethodGet, "/admin/orders/stats", "m-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		TotalOrders   int   `json:"total_orders"`
		PaidOrders    int   `json:"paid_orders"`
		PendingOrders int   `json:"pending_orders"`
		RevenueCents  int64 `json:"revenue_cents"`
		MenuStats     []struct {
			MenuItemID    string `json:"menu_item_id"`
			TotalQuantity int    `json:"total_quantity"`
		} `json:"menu_stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 3, out.TotalOrders)
	assert.Equal(t, 1, out.PaidOrders)
	assert.Equal(t, 1, out.PendingOrders)
	assert.Equal(t, paid.TotalCents, out.RevenueCents)
	require.NotEmpty(t, out.MenuStats)
	assert.Equal(t, "rice", out.MenuStats[0].MenuItemID, "ranked by quantity")
	assert.Equal(t, 3, out.MenuStats[0].TotalQuantity)
}

func TestAdminTodayMenuShowsCapacity(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 4}})

	rec, env := doAdmin(t, r, http.MethodGet, "/admin/menu/today", "m-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		List []menuItemView `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.List, 1)
	assert.Equal(t, 10, out.List[0].Stock)
	assert.Equal(t, 4, out.List[0].Sold)
}
