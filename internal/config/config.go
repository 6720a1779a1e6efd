package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	InventoryMemory   = "memory"
	InventoryPostgres = "postgres"

	PaymentSimulated = "simulated"
	PaymentHTTP      = "http"
)

type Postgres struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	MigrationsDir string
}

type Payment struct {
	Provider       string
	ProviderURL    string
	ProviderAPIKey string
	WebhookSecret  string
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxWait        time.Duration
	SweepInterval  time.Duration
}

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	Postgres Postgres

	CatalogDBPath        string
	CatalogMigrationsDir string

	MongoURI      string
	MongoDatabase string
	RedisAddr     string

	KafkaBrokers []string

	InventoryBackend string
	// InitialStock seeds the in-memory inventory: "1:10,2:5".
	InitialStock map[int64]int32

	Payment Payment

	FulfillmentAPIKey string
	Currency          string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	stock, err := parseStock(getEnv("INVENTORY_INITIAL_STOCK", "1:10,2:25,3:50,4:5,5:100"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		Postgres: Postgres{
			Host:          getEnv("POSTGRES_HOST", "localhost"),
			Port:          getEnvInt("POSTGRES_PORT", 5432),
			User:          getEnv("POSTGRES_USER", "storefront"),
			Password:      getEnv("POSTGRES_PASSWORD", "storefront"),
			DBName:        getEnv("POSTGRES_DB", "storefront"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "internal/repository/migrations"),
		},
		CatalogDBPath:        getEnv("CATALOG_DB_PATH", "catalog.db"),
		CatalogMigrationsDir: getEnv("CATALOG_MIGRATIONS_DIR", "internal/catalog/migrations"),
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:        getEnv("MONGO_DATABASE", "storefront"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		InventoryBackend:     getEnv("INVENTORY_BACKEND", InventoryPostgres),
		InitialStock:         stock,
		Payment: Payment{
			Provider:       getEnv("PAYMENT_PROVIDER", PaymentSimulated),
			ProviderURL:    os.Getenv("PAYMENT_PROVIDER_URL"),
			ProviderAPIKey: os.Getenv("PAYMENT_PROVIDER_API_KEY"),
			WebhookSecret:  os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			Timeout:        getEnvDuration("PAYMENT_TIMEOUT", 5*time.Second),
			InitialBackoff: getEnvDuration("PAYMENT_BACKOFF_INITIAL", 10*time.Second),
			MaxBackoff:     getEnvDuration("PAYMENT_BACKOFF_MAX", 5*time.Minute),
			MaxWait:        getEnvDuration("PAYMENT_MAX_WAIT", 30*time.Minute),
			SweepInterval:  getEnvDuration("RECONCILE_INTERVAL", 5*time.Second),
		},
		FulfillmentAPIKey: os.Getenv("FULFILLMENT_API_KEY"),
		Currency:          getEnv("CURRENCY", "USD"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.InventoryBackend {
	case InventoryMemory, InventoryPostgres:
	default:
		errs = append(errs, fmt.Errorf("INVENTORY_BACKEND must be %q or %q, got %q", InventoryMemory, InventoryPostgres, c.InventoryBackend))
	}
	switch c.Payment.Provider {
	case PaymentSimulated:
	case PaymentHTTP:
		if c.Payment.ProviderURL == "" {
			errs = append(errs, errors.New("PAYMENT_PROVIDER_URL is required for the http payment provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER must be %q or %q, got %q", PaymentSimulated, PaymentHTTP, c.Payment.Provider))
	}
	if c.Payment.InitialBackoff <= 0 || c.Payment.MaxBackoff < c.Payment.InitialBackoff {
		errs = append(errs, errors.New("payment backoff must be positive and PAYMENT_BACKOFF_MAX >= PAYMENT_BACKOFF_INITIAL"))
	}
	if c.Payment.MaxWait <= 0 {
		errs = append(errs, errors.New("PAYMENT_MAX_WAIT must be positive"))
	}
	if c.Payment.SweepInterval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive"))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q", c.Currency))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseStock(raw string) (map[int64]int32, error) {
	stock := make(map[int64]int32)
	for _, pair := range splitList(raw) {
		id, qty, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid stock entry %q, want product:quantity", pair)
		}
		productID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid product id in %q: %w", pair, err)
		}
		quantity, err := strconv.ParseInt(strings.TrimSpace(qty), 10, 32)
		if err != nil || quantity < 0 {
			return nil, fmt.Errorf("invalid quantity in %q", pair)
		}
		stock[productID] = int32(quantity)
	}
	return stock, nil
}
