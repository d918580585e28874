package httpx

import (
	"context"
	"encoding/xml"
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

const (
	wxAckSuccess = `<xml><return_code><![CDATA[SUCCESS]]></return_code><return_msg><![CDATA[OK]]></return_msg></xml>`
	wxAckFail    = `<xml><return_code><![CDATA[FAIL]]></return_code></xml>`
)

// PaymentsHandler adapts the payment gateway callback onto the engine.
// Signature verification is the gateway adapter's job upstream and is not
// done here.
type PaymentsHandler struct {
	Engine   *orders.Engine
	Store    orders.Store
	Producer *kafkax.Producer // order.paid events; may be nil
	Redis    *redis.Client    // status cache; may be nil
	Service  string
}

// wxNotify is the WeChat pay callback body. Amounts arrive in cents already.
type wxNotify struct {
	XMLName       xml.Name `xml:"xml"`
	OutTradeNo    string   `xml:"out_trade_no"`
	TransactionID string   `xml:"transaction_id"`
	TotalFee      int64    `xml:"total_fee"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments/notify", h.notify)
	r.Post("/payments/mock/{orderNo}", h.mockPay)
}

// notify handles the at-least-once gateway callback. The engine dedupes
// redeliveries; SUCCESS is acked for anything that must not be redelivered,
// including a late payment against a cancelled order (recorded for
// reconciliation).
func (h *PaymentsHandler) notify(w http.ResponseWriter, r *http.Request) {
	var n wxNotify
	if err := xml.NewDecoder(r.Body).Decode(&n); err != nil || n.OutTradeNo == "" {
		ackXML(w, wxAckFail)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Engine.ConfirmPayment(ctx, n.OutTradeNo, n.TransactionID, n.TotalFee)
	if err != nil {
		if errors.Is(err, orders.ErrOrderCancelled) {
			ackXML(w, wxAckSuccess)
			return
		}
		ackXML(w, wxAckFail)
		return
	}
	if !res.AlreadyPaid {
		h.cacheStatus(ctx, res.Order.ID, res.Order.Status)
		h.publishPaid(res.Order, n.TransactionID, n.TotalFee)
	}
	ackXML(w, wxAckSuccess)
}

// mockPay marks an order paid without a gateway round trip. Development
// helper mirroring the gateway callback path.
func (h *PaymentsHandler) mockPay(w http.ResponseWriter, r *http.Request) {
	orderNo := chi.URLParam(r, "orderNo")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.OrderByNo(ctx, orderNo)
	if err != nil {
		respondErr(w, err)
		return
	}
	txn := "mock_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	res, err := h.Engine.ConfirmPayment(ctx, orderNo, txn, o.TotalCents)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !res.AlreadyPaid {
		h.cacheStatus(ctx, res.Order.ID, res.Order.Status)
		h.publishPaid(res.Order, txn, o.TotalCents)
	}
	respondOK(w, map[string]any{
		"order_no":     orderNo,
		"already_paid": res.AlreadyPaid,
	})
}

func (h *PaymentsHandler) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body := fmt.Sprintf(`{"status":%d}`, st)
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *PaymentsHandler) publishPaid(o *orders.Order, transactionID string, amountCents int64) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPaidPayload{
			OrderID:       o.ID,
			OrderNo:       o.OrderNo,
			TransactionID: transactionID,
			AmountCents:   amountCents,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func ackXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
