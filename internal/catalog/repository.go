package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var (
	ErrProductNotFound    = apperr.New(apperr.KindNotFound, "product_not_found", "product not found")
	ErrProductUnavailable = apperr.New(apperr.KindConflict, "product_unavailable", "product is discontinued")
)

const productColumns = `id, name, description, price, discount, active, image_url, created_at`

// Repository is the sqlite-backed product catalog.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the catalog database at dbPath. Writers wait on a busy
// database instead of failing with SQLITE_BUSY.
func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", dbPath, err)
	}
	for _, pragma := range []string{`PRAGMA busy_timeout = 5000`, `PRAGMA journal_mode = WAL`} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure catalog (%s): %w", pragma, err)
		}
	}
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{MigrationsTable: "catalog_schema_migrations"})
	if err != nil {
		return fmt.Errorf("catalog migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("load catalog migrations from %s: %w", migrationsPath, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply catalog migrations: %w", err)
	}
	return nil
}

func (r *Repository) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

// GetProduct returns the product regardless of its active flag.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

// GetAvailableProduct returns the product only when it can still be sold.
func (r *Repository) GetAvailableProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: %d", ErrProductUnavailable, id)
	}
	return p, nil
}

// UpdatePrice changes the current selling price of a product.
func (r *Repository) UpdatePrice(ctx context.Context, id int64, price, discount decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET price = ?, discount = ? WHERE id = ?`,
		price.String(), discount.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var price, discount string
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&price,
		&discount,
		&p.Active,
		&p.ImageURL,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid price %q for product %d: %w", price, p.ID, err)
	}
	if p.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("invalid discount %q for product %d: %w", discount, p.ID, err)
	}
	return p, nil
}
