package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/orderfood/preorder.git/internal/orders"
)

// AdminHandler is the merchant surface: menu management and the order
// dashboard. Identity comes from the upstream auth layer via X-Merchant-ID.
type AdminHandler struct {
	Store orders.Store
	Now   func() time.Time
}

const defaultCutoff = "11:00"

type menuItemReq struct {
	Name       string  `json:"name"`
	PriceCents *int64  `json:"price_cents"`
	Image      *string `json:"image"`
	Stock      *int    `json:"stock"`
	CutoffTime string  `json:"cutoff_time"` // "HH:MM", local
}

func (h *AdminHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/menu", h.createMenuItem)
		r.Put("/menu/cutoff", h.setCutoff)
		r.Put("/menu/{id}", h.updateMenuItem)
		r.Delete("/menu/{id}", h.deleteMenuItem)
		r.Get("/menu/today", h.todayMenu)
		r.Get("/orders/today", h.todayOrders)
		r.Get("/orders/stats", h.stats)
		r.Get("/orders/{id}", h.orderDetail)
	})
}

func merchantID(r *http.Request) (string, error) {
	id := r.Header.Get("X-Merchant-ID")
	if id == "" {
		return "", errors.Wrap(orders.ErrUnauthorized, "missing identity")
	}
	return id, nil
}

func (h *AdminHandler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	mid, err := merchantID(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	var req menuItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, errors.Wrap(orders.ErrBadRequest, "invalid json"))
		return
	}
	if req.Name == "" || req.PriceCents == nil || req.Stock == nil {
		respondErr(w, errors.Wrap(orders.ErrBadRequest, "missing fields"))
		return
	}

	now := h.now()
	day := dayOf(now)
	cutoffStr := req.CutoffTime
	if cutoffStr == "" {
		cutoffStr = defaultCutoff
	}
	cutoff, err := cutoffOn(day, cutoffStr)
	if err != nil {
		respondErr(w, err)
		return
	}

	m := &orders.MenuItem{
		ID:         uuid.NewString(),
		MerchantID: mid,
		Date:       day,
		Name:       req.Name,
		PriceCents: *req.PriceCents,
		Stock:      *req.Stock,
		CutoffTime: cutoff,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Image != nil {
		m.Image = *req.Image
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.CreateMenuItem(ctx, m); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, toMenuItemView(*m))
}

func (h *AdminHandler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	if _, err := merchantID(r); err != nil {
		respondErr(w, err)
		return
	}
	var req menuItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, errors.Wrap(orders.ErrBadRequest, "invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	m, err := h.Store.MenuItemByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if req.Name != "" {
		m.Name = req.Name
	}
	if req.PriceCents != nil {
		m.PriceCents = *req.PriceCents
	}
	if req.Image != nil {
		m.Image = *req.Image
	}
	if req.Stock != nil {
		m.Stock = *req.Stock
	}
	if req.CutoffTime != "" {
		cutoff, err := cutoffOn(m.Date, req.CutoffTime)
		if err != nil {
			respondErr(w, err)
			return
		}
		m.CutoffTime = cutoff
	}
	if err := h.Store.UpdateMenuItem(ctx, m); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, toMenuItemView(*m))
}

func (h *AdminHandler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if _, err := merchantID(r); err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.DeleteMenuItem(ctx, chi.URLParam(r, "id")); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

func (h *AdminHandler) todayMenu(w http.ResponseWriter, r *http.Request) {
	mid, err := merchantID(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Store.MenuForDay(ctx, dayOf(h.now()))
	if err != nil {
		respondErr(w, err)
		return
	}
	list := make([]menuItemView, 0, len(items))
	for _, m := range items {
		if m.MerchantID != mid {
			continue
		}
		v := toMenuItemView(m)
		v.Stock = m.Stock // merchants see capacity, not remaining
		list = append(list, v)
	}
	respondOK(w, map[string]any{"list": list})
}

func (h *AdminHandler) setCutoff(w http.ResponseWriter, r *http.Request) {
	mid, err := merchantID(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	var req struct {
		CutoffTime string `json:"cutoff_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CutoffTime == "" {
		respondErr(w, errors.Wrap(orders.ErrBadRequest, "missing cutoff_time"))
		return
	}
	day := dayOf(h.now())
	cutoff, err := cutoffOn(day, req.CutoffTime)
	if err != nil {
		respondErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.SetCutoff(ctx, mid, day, cutoff); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

func (h *AdminHandler) todayOrders(w http.ResponseWriter, r *http.Request) {
	if _, err := merchantID(r); err != nil {
		respondErr(w, err)
		return
	}
	var status *orders.Status
	if s := r.URL.Query().Get("status"); s != "" && s != "-1" {
		n, err := strconv.Atoi(s)
		if err != nil {
			respondErr(w, errors.Wrap(orders.ErrBadRequest, "invalid status"))
			return
		}
		st := orders.Status(n)
		status = &st
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Store.OrdersForDay(ctx, dayOf(h.now()), status)
	if err != nil {
		respondErr(w, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for i := range list {
		out = append(out, toOrderView(&list[i]))
	}
	respondOK(w, map[string]any{"list": out})
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	if _, err := merchantID(r); err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Store.StatsForDay(ctx, dayOf(h.now()))
	if err != nil {
		respondErr(w, err)
		return
	}
	menuStats := make([]map[string]any, 0, len(st.MenuStats))
	for _, ms := range st.MenuStats {
		menuStats = append(menuStats, map[string]any{
			"menu_item_id":   ms.MenuItemID,
			"menu_name":      ms.MenuName,
			"total_quantity": ms.TotalQuantity,
			"amount_cents":   ms.AmountCents,
		})
	}
	respondOK(w, map[string]any{
		"total_orders":   st.TotalOrders,
		"paid_orders":    st.PaidOrders,
		"pending_orders": st.PendingOrders,
		"revenue_cents":  st.RevenueCents,
		"menu_stats":     menuStats,
	})
}

func (h *AdminHandler) orderDetail(w http.ResponseWriter, r *http.Request) {
	if _, err := merchantID(r); err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.OrderByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, toOrderView(o))
}

func cutoffOn(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, errors.Wrap(orders.ErrBadRequest, "invalid cutoff_time")
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
