package orders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PGStore implements Store on Postgres. Stock movements are single
// conditional statements so concurrent reservations on the same row
// serialize at the database without application-level locking.
type PGStore struct{ DB *pgxpool.Pool }

const menuItemCols = `id, merchant_id, menu_date, name, image, price_cents, stock, sold, cutoff_time, created_at, updated_at`
const orderCols = `id, order_no, user_id, total_cents, status, remark, created_at, paid_at, canceled_at`

func (s *PGStore) MenuItemsByIDs(ctx context.Context, ids []string) (map[string]MenuItem, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+menuItemCols+` FROM menu_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query menu items")
	}
	defer rows.Close()

	out := make(map[string]MenuItem, len(ids))
	for rows.Next() {
		var m MenuItem
		if err := scanMenuItem(rows, &m); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// CreateOrder reserves every line and inserts the order plus its items in
// one transaction. The reserve is the conditional update
//
//	UPDATE menu_items SET sold = sold + q WHERE id = x AND sold + q <= stock
//
// so two concurrent orders never both consume the same remaining unit: the
// loser's update matches zero rows and the whole transaction rolls back.
func (s *PGStore) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range o.Items {
		ct, err := tx.Exec(ctx, `
			UPDATE menu_items
			SET sold = sold + $2, updated_at = now()
			WHERE id = $1 AND sold + $2 <= stock`,
			it.MenuItemID, it.Quantity)
		if err != nil {
			return errors.Wrapf(err, "reserve %s", it.MenuItemID)
		}
		if ct.RowsAffected() == 0 {
			se := &StockError{MenuItemID: it.MenuItemID, MenuName: it.MenuName, Required: it.Quantity}
			// best effort: report what was left at the time of the loss
			_ = tx.QueryRow(ctx, `SELECT stock - sold FROM menu_items WHERE id = $1`,
				it.MenuItemID).Scan(&se.Available)
			return se
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, order_no, user_id, total_cents, status, remark, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.OrderNo, o.UserID, o.TotalCents, o.Status, o.Remark, o.CreatedAt); err != nil {
		return errors.Wrap(err, "insert order")
	}
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, menu_name, quantity, price_cents, subtotal_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, o.ID, it.MenuItemID, it.MenuName, it.Quantity, it.PriceCents, it.SubtotalCents); err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (s *PGStore) OrderByID(ctx context.Context, id string) (*Order, error) {
	return s.orderBy(ctx, `id`, id)
}

func (s *PGStore) OrderByNo(ctx context.Context, orderNo string) (*Order, error) {
	return s.orderBy(ctx, `order_no`, orderNo)
}

func (s *PGStore) orderBy(ctx context.Context, col, val string) (*Order, error) {
	var o Order
	row := s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE `+col+` = $1`, val)
	if err := scanOrder(row, &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "order %s", val)
		}
		return nil, err
	}
	items, err := s.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *PGStore) orderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, menu_item_id, menu_name, quantity, price_cents, subtotal_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.MenuName,
			&it.Quantity, &it.PriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkPaid is keyed on status = Pending so exactly one of a racing confirm
// and cancel wins the transition.
func (s *PGStore) MarkPaid(ctx context.Context, orderID string, p Payment) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, paid_at = $3
		WHERE id = $1 AND status = $4`,
		orderID, StatusPaid, p.PaidAt, StatusPending)
	if err != nil {
		return errors.Wrap(err, "mark paid")
	}
	if ct.RowsAffected() == 0 {
		return errors.Wrapf(ErrInvalidTransition, "order %s", orderID)
	}
	if err := insertPayment(ctx, tx, p); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (s *PGStore) RecordPayment(ctx context.Context, p Payment) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := insertPayment(ctx, tx, p); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func insertPayment(ctx context.Context, tx pgx.Tx, p Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, transaction_id, amount_cents, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.OrderID, p.TransactionID, p.AmountCents, p.Status, p.PaidAt)
	return errors.Wrap(err, "insert payment")
}

// CancelOrder transitions the order and releases every line's stock in one
// transaction. The release clamps at zero; sold never goes negative even if
// compensation were attempted twice.
func (s *PGStore) CancelOrder(ctx context.Context, orderID string, at time.Time) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, canceled_at = $3
		WHERE id = $1 AND status = $4`,
		orderID, StatusCancelled, at, StatusPending)
	if err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}
	if ct.RowsAffected() == 0 {
		var st Status
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&st)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "order %s", orderID)
		}
		if err != nil {
			return nil, err
		}
		return nil, errors.Wrapf(ErrInvalidTransition, "order %s is %s", orderID, st)
	}

	var o Order
	row := tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, orderID)
	if err := scanOrder(row, &o); err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, order_id, menu_item_id, menu_name, quantity, price_cents, subtotal_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.MenuName,
			&it.Quantity, &it.PriceCents, &it.SubtotalCents); err != nil {
			rows.Close()
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			UPDATE menu_items
			SET sold = GREATEST(sold - $2, 0), updated_at = now()
			WHERE id = $1`,
			it.MenuItemID, it.Quantity); err != nil {
			return nil, errors.Wrapf(err, "release %s", it.MenuItemID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return &o, nil
}

func (s *PGStore) ExpiredPending(ctx context.Context, deadline time.Time) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM orders WHERE status = $1 AND created_at < $2`,
		StatusPending, deadline)
	if err != nil {
		return nil, errors.Wrap(err, "query expired")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) UserOrders(ctx context.Context, userID string, page, limit int) ([]Order, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+orderCols+` FROM orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "query orders")
	}
	out, err := s.collectOrders(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PGStore) OrdersForDay(ctx context.Context, day time.Time, status *Status) ([]Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE created_at >= $1 AND created_at < $2`
	args := []any{day, day.Add(24 * time.Hour)}
	if status != nil {
		q += ` AND status = $3`
		args = append(args, *status)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	return s.collectOrders(ctx, rows)
}

func (s *PGStore) collectOrders(ctx context.Context, rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.orderItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *PGStore) StatsForDay(ctx context.Context, day time.Time) (*DayStats, error) {
	end := day.Add(24 * time.Hour)
	st := &DayStats{}
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = $3),
		       COUNT(*) FILTER (WHERE status = $4),
		       COALESCE(SUM(total_cents) FILTER (WHERE status = $3), 0)
		FROM orders WHERE created_at >= $1 AND created_at < $2`,
		day, end, StatusPaid, StatusPending).
		Scan(&st.TotalOrders, &st.PaidOrders, &st.PendingOrders, &st.RevenueCents)
	if err != nil {
		return nil, errors.Wrap(err, "order stats")
	}

	rows, err := s.DB.Query(ctx, `
		SELECT oi.menu_item_id, oi.menu_name, SUM(oi.quantity), SUM(oi.subtotal_cents)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.created_at >= $1 AND o.created_at < $2
		GROUP BY oi.menu_item_id, oi.menu_name
		ORDER BY SUM(oi.quantity) DESC`, day, end)
	if err != nil {
		return nil, errors.Wrap(err, "menu stats")
	}
	defer rows.Close()
	for rows.Next() {
		var ms MenuStat
		if err := rows.Scan(&ms.MenuItemID, &ms.MenuName, &ms.TotalQuantity, &ms.AmountCents); err != nil {
			return nil, err
		}
		st.MenuStats = append(st.MenuStats, ms)
	}
	return st, rows.Err()
}

func (s *PGStore) MenuItemByID(ctx context.Context, id string) (*MenuItem, error) {
	var m MenuItem
	row := s.DB.QueryRow(ctx, `SELECT `+menuItemCols+` FROM menu_items WHERE id = $1`, id)
	if err := scanMenuItem(row, &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "menu item %s", id)
		}
		return nil, err
	}
	return &m, nil
}

func (s *PGStore) MenuForDay(ctx context.Context, day time.Time) ([]MenuItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+menuItemCols+` FROM menu_items
		WHERE menu_date = $1 ORDER BY created_at`, day)
	if err != nil {
		return nil, errors.Wrap(err, "query menu")
	}
	return collectMenuItems(rows)
}

func (s *PGStore) MenuHistory(ctx context.Context, before time.Time, page, limit int) ([]MenuItem, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM menu_items WHERE menu_date < $1`, before).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count menu history")
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+menuItemCols+` FROM menu_items
		WHERE menu_date < $1 ORDER BY menu_date DESC, created_at
		LIMIT $2 OFFSET $3`, before, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "query menu history")
	}
	out, err := collectMenuItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PGStore) CreateMenuItem(ctx context.Context, m *MenuItem) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO menu_items (id, merchant_id, menu_date, name, image, price_cents, stock, sold, cutoff_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		m.ID, m.MerchantID, m.Date, m.Name, m.Image, m.PriceCents, m.Stock, m.Sold, m.CutoffTime, m.CreatedAt)
	return errors.Wrap(err, "insert menu item")
}

func (s *PGStore) UpdateMenuItem(ctx context.Context, m *MenuItem) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE menu_items
		SET name = $2, image = $3, price_cents = $4, stock = $5, cutoff_time = $6, updated_at = now()
		WHERE id = $1`,
		m.ID, m.Name, m.Image, m.PriceCents, m.Stock, m.CutoffTime)
	if err != nil {
		return errors.Wrap(err, "update menu item")
	}
	if ct.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "menu item %s", m.ID)
	}
	return nil
}

func (s *PGStore) DeleteMenuItem(ctx context.Context, id string) error {
	var ordered bool
	if err := s.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_items WHERE menu_item_id = $1)`, id).Scan(&ordered); err != nil {
		return errors.Wrap(err, "check orders")
	}
	if ordered {
		return errors.Wrapf(ErrMenuItemOrdered, "menu item %s", id)
	}
	ct, err := s.DB.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete menu item")
	}
	if ct.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "menu item %s", id)
	}
	return nil
}

func (s *PGStore) SetCutoff(ctx context.Context, merchantID string, day, cutoff time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE menu_items SET cutoff_time = $3, updated_at = now()
		WHERE merchant_id = $1 AND menu_date = $2`,
		merchantID, day, cutoff)
	return errors.Wrap(err, "set cutoff")
}

func scanMenuItem(row pgx.Row, m *MenuItem) error {
	return row.Scan(&m.ID, &m.MerchantID, &m.Date, &m.Name, &m.Image,
		&m.PriceCents, &m.Stock, &m.Sold, &m.CutoffTime, &m.CreatedAt, &m.UpdatedAt)
}

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.TotalCents, &o.Status,
		&o.Remark, &o.CreatedAt, &o.PaidAt, &o.CanceledAt)
}

func collectMenuItems(rows pgx.Rows) ([]MenuItem, error) {
	defer rows.Close()
	var out []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := scanMenuItem(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
