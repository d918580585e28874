package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

// Envelope wraps every published event. Payload is event-specific.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	MenuItemID string `json:"menu_item_id"`
	MenuName   string `json:"menu_name"`
	Quantity   int    `json:"quantity"`
}

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	OrderNo    string    `json:"order_no"`
	UserID     string    `json:"user_id"`
	TotalCents int64     `json:"total_cents"`
	Items      []ItemQty `json:"items"`
}

type OrderPaidPayload struct {
	OrderID       string `json:"order_id"`
	OrderNo       string `json:"order_no"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
}

type OrderCancelledPayload struct {
	OrderID string    `json:"order_id"`
	OrderNo string    `json:"order_no"`
	Reason  string    `json:"reason"` // e.g. "timeout"
	Items   []ItemQty `json:"items"`
}

// EventItems projects order items into event payload form.
func EventItems(items []OrderItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{MenuItemID: it.MenuItemID, MenuName: it.MenuName, Quantity: it.Quantity})
	}
	return out
}
