package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, address_id, payment_method, status, total, currency, paid_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateOrder stores the order with its lines and an order.created outbox
// event in one transaction. A non-empty idempotencyKey must be unique per user.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, idempotencyKey string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback()

	var key sql.NullString
	if idempotencyKey != "" {
		key = sql.NullString{String: idempotencyKey, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, address_id, payment_method, status, total, currency, idempotency_key, paid_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID,
		order.UserID,
		order.AddressID,
		order.PaymentMethod,
		order.Status,
		order.Total,
		order.Currency,
		key,
		nullTime(order.PaidAt),
		order.CreatedAt,
		order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, line := range order.Lines {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, line_no, product_id, product_name, quantity, unit_price, discount)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, i+1, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice, line.Discount)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	payload := domain.OrderEventPayload{
		OrderID:    order.ID.String(),
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.Total.StringFixed(2),
		Currency:   order.Currency,
		Lines:      order.Lines,
		OccurredAt: order.CreatedAt,
	}
	if err := insertOutboxEvent(ctx, tx, order.ID.String(), domain.EventTypeOrderCreated, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if err := r.loadLines(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by idempotency key: %w", err)
	}

	if err := r.loadLines(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersByUser returns one page of the user's orders, newest first, and
// the total number of orders the user has.
func (r *Repository) ListOrdersByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders by user id: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	if err := r.loadLines(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateOrderStatus moves the order from `from` to order.Status. The update
// only applies while the stored status still equals from; otherwise
// ErrStatusConflict is returned. An order.status_changed outbox event is
// written in the same transaction.
func (r *Repository) UpdateOrderStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update status: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, paid_at = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		order.Status, nullTime(order.PaidAt), order.UpdatedAt, order.ID, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrStatusConflict
	}

	payload := domain.OrderEventPayload{
		OrderID:        order.ID.String(),
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: from,
		Total:          order.Total.StringFixed(2),
		Currency:       order.Currency,
		OccurredAt:     order.UpdatedAt,
	}
	if err := insertOutboxEvent(ctx, tx, order.ID.String(), domain.EventTypeOrderStatusChanged, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update status: %w", err)
	}
	return nil
}

// ListStalePendingOrders returns PENDING orders created before `before` whose
// payment was never recorded or failed to start.
func (r *Repository) ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.id FROM orders o
		 LEFT JOIN payments p ON p.order_id = o.id
		 WHERE o.status = $1 AND o.created_at < $2 AND (p.order_id IS NULL OR p.status = $4)
		 ORDER BY o.created_at LIMIT $3`,
		domain.OrderStatusPending, before, limit, domain.PaymentStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("query stale pending orders: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

func (r *Repository) loadLines(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID.String())
		o.Lines = make([]domain.OrderLine, 0)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, product_id, product_name, quantity, unit_price, discount
		 FROM order_lines WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, line_no`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var line domain.OrderLine
		if err := rows.Scan(&orderID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice, &line.Discount); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var paidAt sql.NullTime
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.AddressID,
		&order.PaymentMethod,
		&order.Status,
		&order.Total,
		&order.Currency,
		&paidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	return &order, nil
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		aggregateID, eventType, body)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
