package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	once      sync.Once
	sharedDSN string
	initErr   error
)

// setupStore starts one PostgreSQL container for the package, migrates it and
// returns a Store over a fresh pool. Tests isolate themselves by guild ID.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}

	once.Do(func() {
		sharedDSN, initErr = startContainer()
	})
	if initErr != nil {
		t.Fatalf("setup test DB: %v", initErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, sharedDSN)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	return New(pool)
}

func startContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("mapped port: %w", err)
	}

	return fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port()), nil
}

func TestStore_IncrementCreatesThenUpdates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	rec, err := s.Increment(ctx, "g-create", "s1", "Airhorn", "📯", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.UsageCount)
	assert.Equal(t, "Airhorn", rec.SoundName)
	assert.False(t, rec.CreatedAt.IsZero())

	rec, err = s.Increment(ctx, "g-create", "s1", "Airhorn (renamed)", "", true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.UsageCount)
	assert.Equal(t, "Airhorn (renamed)", rec.SoundName)
	assert.Empty(t, rec.Emoji)
	assert.True(t, rec.IsCustom)
	assert.False(t, rec.LastUsedAt.Before(rec.CreatedAt))
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Increment(ctx, "g-race", "s1", "Boom", "", false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, err := s.Count(ctx, "g-race", "s1")
	require.NoError(t, err)
	assert.EqualValues(t, n, count)
}

func TestStore_ListOrdersByCount(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for id, times := range map[string]int{"a": 5, "b": 2, "c": 9} {
		for i := 0; i < times; i++ {
			_, err := s.Increment(ctx, "g-order", id, "Sound "+id, "", false)
			require.NoError(t, err)
		}
	}
	_, err := s.Increment(ctx, "g-other", "a", "Other guild", "", false)
	require.NoError(t, err)

	list, err := s.List(ctx, "g-order")
	require.NoError(t, err)
	require.Len(t, list, 3)

	got := []int64{list[0].UsageCount, list[1].UsageCount, list[2].UsageCount}
	assert.Equal(t, []int64{9, 5, 2}, got)
	assert.Equal(t, "c", list[0].SoundID)
}

func TestStore_ListEmptyGuild(t *testing.T) {
	s := setupStore(t)

	list, err := s.List(context.Background(), "g-empty")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_CountUnknown(t *testing.T) {
	s := setupStore(t)

	count, err := s.Count(context.Background(), "g-none", "missing")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, Migrate(context.Background(), s.pool))
}
