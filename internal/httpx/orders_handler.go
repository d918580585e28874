package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/orderfood/preorder.git/internal/kafka"
	"github.com/orderfood/preorder.git/internal/orders"
	"github.com/orderfood/preorder.git/internal/redisx"
)

// OrdersHandler is the customer-facing order surface. Identity comes from
// the upstream auth layer via X-User-ID; the engine trusts it once present.
type OrdersHandler struct {
	Engine   *orders.Engine
	Store    orders.Store
	Producer *kafkax.Producer // order.created events; may be nil
	Redis    *redis.Client    // status cache; may be nil
	Service  string
}

type createOrderReq struct {
	Items  []orders.CartLine `json:"items"`
	Remark string            `json:"remark"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.detail)
	r.Post("/orders/{id}/pay", h.pay)
}

func callerID(r *http.Request) (string, error) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		return "", errors.Wrap(orders.ErrUnauthorized, "missing identity")
	}
	return id, nil
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, errors.Wrap(orders.ErrBadRequest, "invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.CreateOrder(ctx, uid, req.Items, req.Remark)
	if err != nil {
		respondErr(w, err)
		return
	}

	h.cacheStatus(ctx, o.ID, o.Status)
	h.publishCreated(o)
	respondOK(w, toOrderView(o))
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	page, limit := pagination(r, 10)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, total, err := h.Store.UserOrders(ctx, uid, page, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	out := pageView[orderView]{
		List: make([]orderView, 0, len(list)), Total: total,
		Page: page, Limit: limit, HasMore: page*limit < total,
	}
	for i := range list {
		out.List = append(out.List, toOrderView(&list[i]))
	}
	respondOK(w, out)
}

func (h *OrdersHandler) detail(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Engine.GetOrder(ctx, uid, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, toOrderView(o))
}

// pay returns the parameters the mini-program needs to start the gateway
// payment. The gateway integration itself is a black box; these are mock
// values shaped like the real ones.
func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Engine.InitiatePayment(ctx, uid, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, map[string]any{
		"order_id":    o.ID,
		"order_no":    o.OrderNo,
		"total_cents": o.TotalCents,
		"pay_params": map[string]string{
			"timeStamp": strconv.FormatInt(time.Now().Unix(), 10),
			"nonceStr":  uuid.NewString(),
			"package":   "prepay_id=mock_" + o.OrderNo,
			"signType":  "MD5",
			"paySign":   "mock_sign",
		},
	})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body := fmt.Sprintf(`{"status":%d}`, st)
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishCreated(o *orders.Order) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:    o.ID,
			OrderNo:    o.OrderNo,
			UserID:     o.UserID,
			TotalCents: o.TotalCents,
			Items:      orders.EventItems(o.Items),
		}),
	}
	h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func pagination(r *http.Request, defLimit int) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = defLimit
	}
	return page, limit
}
