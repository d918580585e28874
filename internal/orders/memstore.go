package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemStore is an in-memory Store with the same semantics as PGStore: every
// operation runs under one mutex, so each is atomic and isolated exactly
// like the single-transaction Postgres counterpart. It backs the engine,
// reaper and handler tests.
type MemStore struct {
	mu       sync.Mutex
	menu     map[string]*MenuItem
	orders   map[string]*Order
	payments []Payment
}

func NewMemStore() *MemStore {
	return &MemStore{
		menu:   make(map[string]*MenuItem),
		orders: make(map[string]*Order),
	}
}

func (s *MemStore) MenuItemsByIDs(ctx context.Context, ids []string) (map[string]MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]MenuItem, len(ids))
	for _, id := range ids {
		if m, ok := s.menu[id]; ok {
			out[id] = *m
		}
	}
	return out, nil
}

func (s *MemStore) CreateOrder(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// reserve line by line against the running Sold, mirroring the per-line
	// conditional updates of the Postgres transaction; duplicate lines for
	// one item therefore consume the remainder cumulatively. A failed line
	// rolls back every line applied before it.
	for i, it := range o.Items {
		m, ok := s.menu[it.MenuItemID]
		if !ok {
			s.releaseLines(o.Items[:i])
			return errors.Wrapf(ErrNotFound, "menu item %s", it.MenuItemID)
		}
		if m.Sold+it.Quantity > m.Stock {
			se := &StockError{
				MenuItemID: m.ID, MenuName: m.Name,
				Required: it.Quantity, Available: m.Stock - m.Sold,
			}
			s.releaseLines(o.Items[:i])
			return se
		}
		m.Sold += it.Quantity
	}
	cp := cloneOrder(o)
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemStore) releaseLines(items []OrderItem) {
	for _, it := range items {
		if m, ok := s.menu[it.MenuItemID]; ok {
			m.Sold -= it.Quantity
			if m.Sold < 0 {
				m.Sold = 0
			}
		}
	}
}

func (s *MemStore) OrderByID(ctx context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "order %s", id)
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (s *MemStore) OrderByNo(ctx context.Context, orderNo string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNo == orderNo {
			cp := cloneOrder(o)
			return &cp, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "order %s", orderNo)
}

func (s *MemStore) MarkPaid(ctx context.Context, orderID string, p Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "order %s", orderID)
	}
	if o.Status != StatusPending {
		return errors.Wrapf(ErrInvalidTransition, "order %s", orderID)
	}
	o.Status = StatusPaid
	at := p.PaidAt
	o.PaidAt = &at
	s.payments = append(s.payments, p)
	return nil
}

func (s *MemStore) RecordPayment(ctx context.Context, p Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, p)
	return nil
}

func (s *MemStore) CancelOrder(ctx context.Context, orderID string, at time.Time) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "order %s", orderID)
	}
	if o.Status != StatusPending {
		return nil, errors.Wrapf(ErrInvalidTransition, "order %s is %s", orderID, o.Status)
	}
	o.Status = StatusCancelled
	t := at
	o.CanceledAt = &t
	s.releaseLines(o.Items)
	cp := cloneOrder(o)
	return &cp, nil
}

func (s *MemStore) ExpiredPending(ctx context.Context, deadline time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, o := range s.orders {
		if o.Status == StatusPending && o.CreatedAt.Before(deadline) {
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemStore) UserOrders(ctx context.Context, userID string, page, limit int) ([]Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), len(all), nil
}

func (s *MemStore) OrdersForDay(ctx context.Context, day time.Time, status *Status) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := day.Add(24 * time.Hour)
	var out []Order
	for _, o := range s.orders {
		if o.CreatedAt.Before(day) || !o.CreatedAt.Before(end) {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) StatsForDay(ctx context.Context, day time.Time) (*DayStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := day.Add(24 * time.Hour)
	st := &DayStats{}
	agg := make(map[string]*MenuStat)
	for _, o := range s.orders {
		if o.CreatedAt.Before(day) || !o.CreatedAt.Before(end) {
			continue
		}
		st.TotalOrders++
		switch o.Status {
		case StatusPaid:
			st.PaidOrders++
			st.RevenueCents += o.TotalCents
		case StatusPending:
			st.PendingOrders++
		}
		for _, it := range o.Items {
			ms, ok := agg[it.MenuItemID]
			if !ok {
				ms = &MenuStat{MenuItemID: it.MenuItemID, MenuName: it.MenuName}
				agg[it.MenuItemID] = ms
			}
			ms.TotalQuantity += it.Quantity
			ms.AmountCents += it.SubtotalCents
		}
	}
	for _, ms := range agg {
		st.MenuStats = append(st.MenuStats, *ms)
	}
	sort.Slice(st.MenuStats, func(i, j int) bool {
		return st.MenuStats[i].TotalQuantity > st.MenuStats[j].TotalQuantity
	})
	return st, nil
}

func (s *MemStore) MenuItemByID(ctx context.Context, id string) (*MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.menu[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "menu item %s", id)
	}
	cp := *m
	return &cp, nil
}

func (s *MemStore) MenuForDay(ctx context.Context, day time.Time) ([]MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MenuItem
	for _, m := range s.menu {
		if m.Date.Equal(day) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) MenuHistory(ctx context.Context, before time.Time, page, limit int) ([]MenuItem, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []MenuItem
	for _, m := range s.menu {
		if m.Date.Before(before) {
			all = append(all, *m)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	return paginate(all, page, limit), len(all), nil
}

func (s *MemStore) CreateMenuItem(ctx context.Context, m *MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.menu[m.ID] = &cp
	return nil
}

func (s *MemStore) UpdateMenuItem(ctx context.Context, m *MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.menu[m.ID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "menu item %s", m.ID)
	}
	cur.Name = m.Name
	cur.Image = m.Image
	cur.PriceCents = m.PriceCents
	cur.Stock = m.Stock
	cur.CutoffTime = m.CutoffTime
	return nil
}

func (s *MemStore) DeleteMenuItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.menu[id]; !ok {
		return errors.Wrapf(ErrNotFound, "menu item %s", id)
	}
	for _, o := range s.orders {
		for _, it := range o.Items {
			if it.MenuItemID == id {
				return errors.Wrapf(ErrMenuItemOrdered, "menu item %s", id)
			}
		}
	}
	delete(s.menu, id)
	return nil
}

func (s *MemStore) SetCutoff(ctx context.Context, merchantID string, day, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.menu {
		if m.MerchantID == merchantID && m.Date.Equal(day) {
			m.CutoffTime = cutoff
		}
	}
	return nil
}

// PaymentsByOrder lists recorded payments for one order, oldest first.
func (s *MemStore) PaymentsByOrder(orderID string) []Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out
}

func cloneOrder(o *Order) Order {
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.CanceledAt != nil {
		t := *o.CanceledAt
		cp.CanceledAt = &t
	}
	return cp
}

func paginate[T any](all []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	lo := (page - 1) * limit
	if lo >= len(all) {
		return nil
	}
	hi := lo + limit
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi]
}
