package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (r *Repository) CreateAddress(ctx context.Context, a *domain.Address) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO addresses (user_id, line1, line2, city, postal_code, country)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		a.UserID, a.Line1, a.Line2, a.City, a.PostalCode, a.Country).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

// GetAddress returns the address only when it belongs to userID.
func (r *Repository) GetAddress(ctx context.Context, userID, addressID int64) (*domain.Address, error) {
	var a domain.Address
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, line1, line2, city, postal_code, country, created_at
		 FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID).
		Scan(&a.ID, &a.UserID, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.Country, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query address: %w", err)
	}
	return &a, nil
}

func (r *Repository) ListAddresses(ctx context.Context, userID int64) ([]*domain.Address, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, line1, line2, city, postal_code, country, created_at
		 FROM addresses WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]*domain.Address, 0)
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.Country, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return addresses, nil
}
