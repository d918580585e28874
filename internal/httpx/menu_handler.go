package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orderfood/preorder.git/internal/orders"
)

// MenuHandler serves the customer-facing menu read model. Stock numbers are
// display only; the engine's atomic reserve is the sole authority.
type MenuHandler struct {
	Store orders.Store
	Now   func() time.Time
}

func (h *MenuHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *MenuHandler) Register(r *chi.Mux) {
	r.Get("/menu/today", h.today)
	r.Get("/menu/history", h.history)
}

func (h *MenuHandler) today(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Store.MenuForDay(ctx, dayOf(h.now()))
	if err != nil {
		respondErr(w, err)
		return
	}
	list := make([]menuItemView, 0, len(items))
	for _, m := range items {
		list = append(list, toMenuItemView(m))
	}
	// the merchant sets one cutoff for the day; expose the first item's
	var cutoff *time.Time
	if len(items) > 0 {
		cutoff = &items[0].CutoffTime
	}
	respondOK(w, map[string]any{"list": list, "cutoff_time": cutoff})
}

func (h *MenuHandler) history(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r, 20)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, total, err := h.Store.MenuHistory(ctx, dayOf(h.now()), page, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	out := pageView[menuItemView]{
		List: make([]menuItemView, 0, len(items)), Total: total,
		Page: page, Limit: limit, HasMore: page*limit < total,
	}
	for _, m := range items {
		out.List = append(out.List, toMenuItemView(m))
	}
	respondOK(w, out)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
