package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart/cache"
	cartrepo "github.com/fjod/go_cart/storefront/internal/cart/repository"
	cartservice "github.com/fjod/go_cart/storefront/internal/cart/service"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/consumer"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	zlog, err := logger.New()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck
	zap.ReplaceGlobals(zlog)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, zlog); err != nil {
		zlog.Error("storefront stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zlog.Info("storefront stopped")
}

func run(ctx context.Context, zlog *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Orders, payments, addresses, outbox and (optionally) stock.
	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDir,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(creds); err != nil {
		return err
	}
	zlog.Info("database migrations completed")

	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsDir); err != nil {
		return err
	}

	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background()) //nolint:errcheck
	carts := cartrepo.NewMongoRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	stock, err := newInventory(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer stock.Close()

	gateway := payment.NewBreakerGateway(newGateway(cfg), zlog)

	cartService := cartservice.NewCartService(carts, cache.NewRedisCache(redisClient), products, zlog)
	refunds := payment.NewRefunds(repo, gateway, zlog)
	orderService := orders.NewService(repo, repo, stock, refunds, cfg.Currency, m, zlog)
	reconciler := payment.NewReconciler(repo, gateway, orderService, refunds, payment.Policy{
		InitialBackoff: cfg.Payment.InitialBackoff,
		MaxBackoff:     cfg.Payment.MaxBackoff,
		MaxWait:        cfg.Payment.MaxWait,
		SweepInterval:  cfg.Payment.SweepInterval,
	}, m, zlog)
	checkoutService := checkout.NewService(cartService, products, stock, repo, orderService, reconciler, m, zlog)

	router := h.NewRouter(h.Handlers{
		Orders:    h.NewOrdersHandler(checkoutService, orderService, cfg.RequestTimeout, zlog),
		Cart:      h.NewCartHandler(cartService, cfg.RequestTimeout, zlog),
		Products:  h.NewProductHandler(products, cfg.RequestTimeout, zlog),
		Addresses: h.NewAddressHandler(repo, cfg.RequestTimeout, zlog),
		Webhooks:  h.NewWebhookHandler(reconciler, cfg.Payment.WebhookSecret, cfg.RequestTimeout, zlog),
	}, h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		InternalAPIKey:     cfg.FulfillmentAPIKey,
		Metrics:            m,
		Gatherer:           registry,
		Logger:             zlog,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info("storefront listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return reconciler.Run(gctx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(repo, m, zlog, cfg.KafkaBrokers...)
		defer poller.Close()
		g.Go(func() error {
			return poller.Run(gctx)
		})

		notifications := consumer.NewConsumer(reconciler, zlog, cfg.KafkaBrokers...)
		defer notifications.Close()
		g.Go(func() error {
			return notifications.Run(gctx)
		})
	} else {
		zlog.Warn("KAFKA_BROKERS not set, order events stay in the outbox and payment notifications arrive by webhook only")
	}

	return g.Wait()
}

func newInventory(ctx context.Context, cfg *config.Config, repo *repository.Repository) (inventory.Store, error) {
	if cfg.InventoryBackend == config.InventoryPostgres {
		return inventory.NewPostgresStore(repo.DB()), nil
	}

	store := inventory.NewMemoryStore()
	for productID, qty := range cfg.InitialStock {
		if err := store.SetStock(ctx, productID, qty); err != nil {
			return nil, fmt.Errorf("seed stock for product %d: %w", productID, err)
		}
	}
	return store, nil
}

func newGateway(cfg *config.Config) payment.Gateway {
	if cfg.Payment.Provider == config.PaymentHTTP {
		return payment.NewHTTPGateway(cfg.Payment.ProviderURL, cfg.Payment.ProviderAPIKey, cfg.Payment.Timeout)
	}
	return payment.NewSimulatedGateway()
}
