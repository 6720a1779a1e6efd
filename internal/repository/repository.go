package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

var (
	ErrOrderNotFound    = apperr.New(apperr.KindNotFound, "order_not_found", "order not found")
	ErrAddressNotFound  = apperr.New(apperr.KindNotFound, "address_not_found", "address not found")
	ErrPaymentNotFound  = apperr.New(apperr.KindNotFound, "payment_not_found", "payment not found")
	ErrStatusConflict   = apperr.New(apperr.KindConflict, "concurrent_status_change", "order status changed concurrently")
	ErrDuplicateOrder   = apperr.New(apperr.KindConflict, "duplicate_order", "order already exists")
	ErrDuplicatePayment = apperr.New(apperr.KindConflict, "duplicate_payment", "payment already exists for order")
)

// uniqueViolation is the postgres error code for unique constraint violations.
const uniqueViolation = "23505"

const (
	maxOpenConns    = 50
	maxIdleConns    = 10
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
	migrationsTable = "storefront_schema_migrations"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// DSN renders the credentials as a lib/pq connection URL.
func (c *Credentials) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Repository is the postgres store for orders, payments, addresses and the
// order outbox.
type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	db, err := sql.Open("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres at %s:%d: %w", cred.Host, cred.Port, err)
	}
	return &Repository{db: db}, nil
}

// RunMigrations applies every pending up migration from cred.MigrationsDirPath.
func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cred.MigrationsDirPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("load migrations from %s: %w", cred.MigrationsDirPath, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// DB exposes the pool for stores sharing the same database.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) Close() error {
	return r.db.Close()
}
