package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderfood/preorder.git/internal/orders"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*chi.Mux, *orders.Engine, *orders.MemStore) {
	t.Helper()
	s := orders.NewMemStore()
	e := &orders.Engine{Store: s, Now: func() time.Time { return testNow }}
	now := func() time.Time { return testNow }

	r := chi.NewRouter()
	(&OrdersHandler{Engine: e, Store: s, Service: "test"}).Register(r)
	(&PaymentsHandler{Engine: e, Store: s, Service: "test"}).Register(r)
	(&MenuHandler{Store: s, Now: now}).Register(r)
	(&AdminHandler{Store: s, Now: now}).Register(r)
	return r, e, s
}

func seedMenu(t *testing.T, s *orders.MemStore, id string, priceCents int64, stock int) {
	t.Helper()
	day := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, testNow.Location())
	require.NoError(t, s.CreateMenuItem(context.Background(), &orders.MenuItem{
		ID:         id,
		MerchantID: "m-1",
		Date:       day,
		Name:       "dish " + id,
		PriceCents: priceCents,
		Stock:      stock,
		CutoffTime: testNow.Add(2 * time.Hour),
		CreatedAt:  testNow,
	}))
}

func doJSON(t *testing.T, r http.Handler, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func createOrder(t *testing.T, r http.Handler, user string, lines []orders.CartLine) orderView {
	t.Helper()
	rec, env := doJSON(t, r, http.MethodPost, "/orders", user,
		map[string]any{"items": lines})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var v orderView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestCreateOrderEndpoint(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)

	rec, env := doJSON(t, r, http.MethodPost, "/orders", "u-1", map[string]any{
		"items":  []orders.CartLine{{MenuItemID: "rice", Quantity: 2}},
		"remark": "extra sauce",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)

	var v orderView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, int(orders.StatusPending), v.Status)
	assert.Equal(t, int64(2400), v.TotalCents)
	assert.Len(t, v.OrderNo, 18)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "dish rice", v.Items[0].MenuName)
}

func TestCreateOrderRequiresIdentity(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)

	rec, env := doJSON(t, r, http.MethodPost, "/orders", "", map[string]any{
		"items": []orders.CartLine{{MenuItemID: "rice", Quantity: 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeUnauthorized, env.Code)
}

func TestCreateOrderStockCode(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 2)

	rec, env := doJSON(t, r, http.MethodPost, "/orders", "u-1", map[string]any{
		"items": []orders.CartLine{{MenuItemID: "rice", Quantity: 5}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeStockInsufficient, env.Code)
	assert.Contains(t, env.Message, "dish rice")
}

func TestCreateOrderExpiredCode(t *testing.T) {
	r, e, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	e.Now = func() time.Time { return testNow.Add(3 * time.Hour) } // past cutoff

	rec, env := doJSON(t, r, http.MethodPost, "/orders", "u-1", map[string]any{
		"items": []orders.CartLine{{MenuItemID: "rice", Quantity: 1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeOrderExpired, env.Code)
}

func TestOrderDetailOwnership(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	v := createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})

	rec, env := doJSON(t, r, http.MethodGet, "/orders/"+v.ID, "u-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/orders/"+v.ID, "u-2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeForbidden, env.Code)
}

func TestOrderListPagination(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 100)
	for i := 0; i < 5; i++ {
		createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})
	}
	createOrder(t, r, "u-2", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})

	rec, env := doJSON(t, r, http.MethodGet, "/orders?page=1&limit=2", "u-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page pageView[orderView]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.List, 2)
	assert.True(t, page.HasMore)

	rec, env = doJSON(t, r, http.MethodGet, "/orders?page=3&limit=2", "u-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.List, 1)
	assert.False(t, page.HasMore)
}

func TestPayEndpoint(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	v := createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})

	rec, env := doJSON(t, r, http.MethodPost, "/orders/"+v.ID+"/pay", "u-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		OrderNo   string            `json:"order_no"`
		PayParams map[string]string `json:"pay_params"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, v.OrderNo, out.OrderNo)
	assert.Equal(t, "prepay_id=mock_"+v.OrderNo, out.PayParams["package"])

	// once paid, starting another payment is refused
	notifyXML(t, r, v.OrderNo, "txn-1", v.TotalCents)
	rec, env = doJSON(t, r, http.MethodPost, "/orders/"+v.ID+"/pay", "u-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeOrderAlreadyPaid, env.Code)
}

func notifyXML(t *testing.T, r http.Handler, orderNo, txn string, totalCents int64) *httptest.ResponseRecorder {
	t.Helper()
	body := `<xml><out_trade_no>` + orderNo + `</out_trade_no>` +
		`<transaction_id>` + txn + `</transaction_id>` +
		`<total_fee>` + strconv.FormatInt(totalCents, 10) + `</total_fee></xml>`
	req := httptest.NewRequest(http.MethodPost, "/payments/notify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestNotifyIdempotent(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	v := createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})

	rec := notifyXML(t, r, v.OrderNo, "txn-1", v.TotalCents)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUCCESS")

	// the gateway redelivers; same ack, still one payment row
	rec = notifyXML(t, r, v.OrderNo, "txn-1", v.TotalCents)
	assert.Contains(t, rec.Body.String(), "SUCCESS")

	require.Len(t, s.PaymentsByOrder(v.ID), 1)
}

func TestNotifyOnCancelledAcksSuccess(t *testing.T) {
	r, e, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	v := createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})

	_, err := e.Cancel(context.Background(), v.ID, "timeout")
	require.NoError(t, err)

	// SUCCESS stops the gateway's redelivery; the conflict is recorded
	rec := notifyXML(t, r, v.OrderNo, "txn-late", v.TotalCents)
	assert.Contains(t, rec.Body.String(), "SUCCESS")

	pays := s.PaymentsByOrder(v.ID)
	require.Len(t, pays, 1)
	assert.Equal(t, orders.PaymentConflict, pays[0].Status)

	got, err := s.OrderByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
}

func TestNotifyBadBody(t *testing.T) {
	r, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/payments/notify", strings.NewReader("not xml"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "FAIL")
}

func TestMockPay(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	v := createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 1}})

	rec, env := doJSON(t, r, http.MethodPost, "/payments/mock/"+v.OrderNo, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		AlreadyPaid bool `json:"already_paid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.False(t, out.AlreadyPaid)

	got, err := s.OrderByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
}

func TestMenuToday(t *testing.T) {
	r, _, s := newTestServer(t)
	seedMenu(t, s, "rice", 1200, 10)
	createOrder(t, r, "u-1", []orders.CartLine{{MenuItemID: "rice", Quantity: 3}})

	rec, env := doJSON(t, r, http.MethodGet, "/menu/today", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		List       []menuItemView `json:"list"`
		CutoffTime *time.Time     `json:"cutoff_time"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.List, 1)
	assert.Equal(t, 7, out.List[0].Stock, "customers see remaining, not capacity")
	assert.Equal(t, 3, out.List[0].Sold)
	require.NotNil(t, out.CutoffTime)
}
