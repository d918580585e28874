package httpx

import (
	"time"

	"github.com/orderfood/preorder.git/internal/orders"
)

type orderItemView struct {
	ID            string `json:"id"`
	MenuItemID    string `json:"menu_item_id"`
	MenuName      string `json:"menu_name"`
	Quantity      int    `json:"quantity"`
	PriceCents    int64  `json:"price_cents"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

type orderView struct {
	ID         string          `json:"id"`
	OrderNo    string          `json:"order_no"`
	TotalCents int64           `json:"total_cents"`
	Status     int             `json:"status"`
	Remark     string          `json:"remark,omitempty"`
	Items      []orderItemView `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CanceledAt *time.Time      `json:"canceled_at,omitempty"`
}

type menuItemView struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"`
	Name       string    `json:"name"`
	Image      string    `json:"image,omitempty"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"` // remaining capacity
	Sold       int       `json:"sold"`
	CutoffTime time.Time `json:"cutoff_time"`
	CreatedAt  time.Time `json:"created_at"`
}

type pageView[T any] struct {
	List    []T  `json:"list"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

func toOrderView(o *orders.Order) orderView {
	v := orderView{
		ID:         o.ID,
		OrderNo:    o.OrderNo,
		TotalCents: o.TotalCents,
		Status:     int(o.Status),
		Remark:     o.Remark,
		CreatedAt:  o.CreatedAt,
		PaidAt:     o.PaidAt,
		CanceledAt: o.CanceledAt,
		Items:      make([]orderItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ID:            it.ID,
			MenuItemID:    it.MenuItemID,
			MenuName:      it.MenuName,
			Quantity:      it.Quantity,
			PriceCents:    it.PriceCents,
			SubtotalCents: it.SubtotalCents,
		})
	}
	return v
}

func toMenuItemView(m orders.MenuItem) menuItemView {
	return menuItemView{
		ID:         m.ID,
		Date:       m.Date.Format("2006-01-02"),
		Name:       m.Name,
		Image:      m.Image,
		PriceCents: m.PriceCents,
		Stock:      m.Remaining(),
		Sold:       m.Sold,
		CutoffTime: m.CutoffTime,
		CreatedAt:  m.CreatedAt,
	}
}
