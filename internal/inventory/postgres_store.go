package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore keeps stock counters in postgres. Reserve is a single
// conditional UPDATE, so concurrent checkouts for the same product serialize
// on the row lock and the availability check is re-evaluated by the winner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetStock(ctx context.Context, productIDs []int64) ([]domain.StockInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, total, reserved FROM stock WHERE product_id = ANY($1) ORDER BY product_id`,
		pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	result := make([]domain.StockInfo, 0, len(productIDs))
	for rows.Next() {
		var info domain.StockInfo
		if err := rows.Scan(&info.ProductID, &info.Total, &info.Reserved); err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) Reserve(ctx context.Context, orderID string, productID int64, quantity int32) (*domain.Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE stock SET reserved = reserved + $2, updated_at = NOW()
		 WHERE product_id = $1 AND total - reserved >= $2`,
		productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM stock WHERE product_id = $1)`, productID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check product stock: %w", err)
		}
		if !exists {
			return nil, ErrProductNotFound
		}
		return nil, ErrInsufficientStock
	}

	r := &domain.Reservation{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    domain.ReservationReserved,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO inventory_reservations (id, order_id, product_id, quantity, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		r.ID, r.OrderID, r.ProductID, r.Quantity, r.Status).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Release(ctx context.Context, reservationID string) error {
	if _, err := uuid.Parse(reservationID); err != nil {
		return nil
	}
	return s.settle(ctx, reservationID, domain.ReservationReleased,
		`UPDATE stock SET reserved = reserved - $2, updated_at = NOW() WHERE product_id = $1`)
}

func (s *PostgresStore) Commit(ctx context.Context, reservationID string) error {
	if _, err := uuid.Parse(reservationID); err != nil {
		return ErrReservationNotFound
	}
	return s.settle(ctx, reservationID, domain.ReservationCommitted,
		`UPDATE stock SET total = total - $2, reserved = reserved - $2, updated_at = NOW() WHERE product_id = $1`)
}

// settle moves a reserved reservation to target and applies stockQuery to
// its product in the same transaction.
func (s *PostgresStore) settle(ctx context.Context, reservationID string, target domain.ReservationStatus, stockQuery string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", target, err)
	}
	defer tx.Rollback()

	var productID int64
	var quantity int32
	err = tx.QueryRowContext(ctx,
		`UPDATE inventory_reservations SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3
		 RETURNING product_id, quantity`,
		reservationID, target, domain.ReservationReserved).Scan(&productID, &quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return s.settledOutcome(ctx, tx, reservationID, target)
	}
	if err != nil {
		return fmt.Errorf("mark reservation %s: %w", target, err)
	}

	if _, err := tx.ExecContext(ctx, stockQuery, productID, quantity); err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", target, err)
	}
	return nil
}

// settledOutcome decides what a lost status flip means for the caller.
func (s *PostgresStore) settledOutcome(ctx context.Context, tx *sql.Tx, reservationID string, target domain.ReservationStatus) error {
	var current domain.ReservationStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM inventory_reservations WHERE id = $1`, reservationID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		if target == domain.ReservationReleased {
			return nil
		}
		return ErrReservationNotFound
	}
	if err != nil {
		return fmt.Errorf("query reservation status: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current == domain.ReservationCommitted:
		return ErrReservationCommitted
	default:
		return ErrReservationReleased
	}
}

func (s *PostgresStore) ReservationsForOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, status, created_at, updated_at
		 FROM inventory_reservations WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var result []*domain.Reservation
	for rows.Next() {
		r := &domain.Reservation{}
		if err := rows.Scan(&r.ID, &r.OrderID, &r.ProductID, &r.Quantity, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) SetStock(ctx context.Context, productID int64, quantity int32) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock (product_id, total, reserved, updated_at) VALUES ($1, $2, 0, NOW())
		 ON CONFLICT (product_id) DO UPDATE SET total = EXCLUDED.total, updated_at = NOW()`,
		productID, quantity)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}

// Close is a no-op; the connection pool belongs to the repository.
func (s *PostgresStore) Close() error {
	return nil
}
