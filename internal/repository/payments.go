package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const paymentColumns = `order_id, provider_reference, method, amount, currency, status, attempts, next_check_at, created_at, last_updated_at`

func (r *Repository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.OrderID,
		nullString(p.ProviderReference),
		p.Method,
		p.Amount,
		p.Currency,
		p.Status,
		p.Attempts,
		p.NextCheckAt,
		p.CreatedAt,
		p.LastUpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *Repository) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by order: %w", err)
	}
	return p, nil
}

func (r *Repository) GetPaymentByReference(ctx context.Context, providerReference string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_reference = $1`, providerReference)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by reference: %w", err)
	}
	return p, nil
}

// UpdatePayment overwrites the mutable fields of the payment.
func (r *Repository) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET provider_reference = $2, status = $3, attempts = $4, next_check_at = $5, last_updated_at = $6
		 WHERE order_id = $1`,
		p.OrderID, nullString(p.ProviderReference), p.Status, p.Attempts, p.NextCheckAt, p.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// ListDuePayments returns pending payments whose next check is at or before now.
func (r *Repository) ListDuePayments(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = $1 AND next_check_at <= $2
		 ORDER BY next_check_at LIMIT $3`,
		domain.PaymentStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var ref sql.NullString
	err := row.Scan(
		&p.OrderID,
		&ref,
		&p.Method,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.Attempts,
		&p.NextCheckAt,
		&p.CreatedAt,
		&p.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ProviderReference = ref.String
	return &p, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
