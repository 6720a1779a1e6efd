package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &repository.Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "../repository/migrations",
	}
	repo, err := repository.NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))

	t.Cleanup(func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	return NewPostgresStore(repo.DB())
}

func TestPostgresStore_ReserveReleaseCommit(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetStock(ctx, 1, 10))

	r1, err := store.Reserve(ctx, "order-1", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReserved, r1.Status)
	assert.Equal(t, int32(6), stockOf(t, store, 1).Available())

	_, err = store.Reserve(ctx, "order-2", 1, 7)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = store.Reserve(ctx, "order-2", 999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	require.NoError(t, store.Release(ctx, r1.ID))
	require.NoError(t, store.Release(ctx, r1.ID))
	assert.Equal(t, int32(10), stockOf(t, store, 1).Available())
	assert.ErrorIs(t, store.Commit(ctx, r1.ID), ErrReservationReleased)

	r2, err := store.Reserve(ctx, "order-3", 1, 3)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, r2.ID))
	require.NoError(t, store.Commit(ctx, r2.ID))
	stock := stockOf(t, store, 1)
	assert.Equal(t, int32(7), stock.Total)
	assert.Equal(t, int32(0), stock.Reserved)
	assert.ErrorIs(t, store.Release(ctx, r2.ID), ErrReservationCommitted)

	assert.NoError(t, store.Release(ctx, "not-a-uuid"))
	assert.NoError(t, store.Release(ctx, "0b5f6a34-86a5-4c4b-9f3a-6c1f8a0b8f77"))
	assert.ErrorIs(t, store.Commit(ctx, "0b5f6a34-86a5-4c4b-9f3a-6c1f8a0b8f77"), ErrReservationNotFound)

	reservations, err := store.ReservationsForOrder(ctx, "order-3")
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.ReservationCommitted, reservations[0].Status)
}

func TestPostgresStore_ConcurrentReservations_NoOversell(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetStock(ctx, 2, 100))

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Reserve(ctx, "order", 2, 20); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), successCount.Load())
	assert.Equal(t, int32(0), stockOf(t, store, 2).Available())
}
