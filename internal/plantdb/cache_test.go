package plantdb

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/momo-ra/ai-agent-microservices-v1/pkg/config"
)

func newTestCatalog() *stubCatalog {
	return &stubCatalog{plants: map[uint]*Plant{
		7: {ID: 7, Name: "acme", DBKey: "ACME", GraphKey: "ACME", Active: true},
	}}
}

func TestRelationalBuildsConnectionOnce(t *testing.T) {
	catalog := newTestCatalog()
	cache := NewCache(catalog, zap.NewNop())

	db, _ := newMockGorm(t)
	var builds int32
	cache.resolveDB = func(key string) (config.PlantDBParams, error) {
		return config.PlantDBParams{}, nil
	}
	cache.openRelational = func(config.PlantDBParams) (*gorm.DB, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(5 * time.Millisecond)
		return db, nil
	}

	const workers = 20
	results := make([]*gorm.DB, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Relational(context.Background(), 7)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, db, results[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	assert.Equal(t, 1, cache.Size())
}

func TestRelationalDeniesDeactivatedPlant(t *testing.T) {
	catalog := newTestCatalog()
	cache := NewCache(catalog, zap.NewNop())

	db, _ := newMockGorm(t)
	cache.resolveDB = func(string) (config.PlantDBParams, error) { return config.PlantDBParams{}, nil }
	cache.openRelational = func(config.PlantDBParams) (*gorm.DB, error) { return db, nil }

	_, err := cache.Relational(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Size())

	// Deactivation denies access even while the handle stays cached.
	catalog.setActive(7, false)
	_, err = cache.Relational(context.Background(), 7)
	require.ErrorIs(t, err, ErrPlantNotFound)

	catalog.setActive(7, true)
	got, err := cache.Relational(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, db, got)
}

func TestRelationalIncompleteConfigFailsClosed(t *testing.T) {
	catalog := newTestCatalog()
	cache := NewCache(catalog, zap.NewNop())

	opened := false
	cache.resolveDB = func(key string) (config.PlantDBParams, error) {
		return config.PlantDBParams{}, errors.New("missing environment variables: ACME_DB_PASSWORD")
	}
	cache.openRelational = func(config.PlantDBParams) (*gorm.DB, error) {
		opened = true
		return nil, nil
	}

	_, err := cache.Relational(context.Background(), 7)
	require.ErrorIs(t, err, ErrIncompleteConfig)
	assert.Contains(t, err.Error(), "ACME_DB_PASSWORD")
	assert.False(t, opened)
}

func TestRelationalUnknownPlant(t *testing.T) {
	cache := NewCache(newTestCatalog(), zap.NewNop())

	_, err := cache.Relational(context.Background(), 999)
	require.ErrorIs(t, err, ErrPlantNotFound)
	assert.Equal(t, 0, cache.Size())
}

func TestGraphProbeFailureIsNotCached(t *testing.T) {
	catalog := newTestCatalog()
	cache := NewCache(catalog, zap.NewNop())

	driver := &fakeGraphDriver{verifyErr: errors.New("connection refused")}
	var opens int
	cache.resolveGraph = func(string) (config.PlantGraphParams, error) { return config.PlantGraphParams{}, nil }
	cache.openGraph = func(ctx context.Context, params config.PlantGraphParams) (GraphDriver, error) {
		opens++
		return driver, nil
	}

	_, err := cache.Graph(context.Background(), 7)
	require.ErrorIs(t, err, ErrGraphUnavailable)
	assert.Equal(t, 1, driver.closeCount())

	// Next access retries from scratch instead of serving the dead handle.
	_, err = cache.Graph(context.Background(), 7)
	require.ErrorIs(t, err, ErrGraphUnavailable)
	assert.Equal(t, 2, opens)
}

func TestGraphFailureDoesNotBlockRelational(t *testing.T) {
	catalog := newTestCatalog()
	cache := NewCache(catalog, zap.NewNop())

	db, _ := newMockGorm(t)
	cache.resolveDB = func(string) (config.PlantDBParams, error) { return config.PlantDBParams{}, nil }
	cache.openRelational = func(config.PlantDBParams) (*gorm.DB, error) { return db, nil }
	cache.resolveGraph = func(string) (config.PlantGraphParams, error) { return config.PlantGraphParams{}, nil }
	cache.openGraph = func(ctx context.Context, params config.PlantGraphParams) (GraphDriver, error) {
		return &fakeGraphDriver{verifyErr: errors.New("connection refused")}, nil
	}

	_, err := cache.Graph(context.Background(), 7)
	require.ErrorIs(t, err, ErrGraphUnavailable)

	got, err := cache.Relational(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, db, got)
}

func TestGraphCachedAfterSuccessfulProbe(t *testing.T) {
	catalog := newTestCatalog()
	cache := NewCache(catalog, zap.NewNop())

	driver := &fakeGraphDriver{}
	var opens int
	cache.resolveGraph = func(string) (config.PlantGraphParams, error) { return config.PlantGraphParams{}, nil }
	cache.openGraph = func(ctx context.Context, params config.PlantGraphParams) (GraphDriver, error) {
		opens++
		return driver, nil
	}

	first, err := cache.Graph(context.Background(), 7)
	require.NoError(t, err)
	second, err := cache.Graph(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, opens)
}

func TestGraphWithoutKeyIsIncompleteConfig(t *testing.T) {
	catalog := &stubCatalog{plants: map[uint]*Plant{
		3: {ID: 3, Name: "nographs", DBKey: "NG", Active: true},
	}}
	cache := NewCache(catalog, zap.NewNop())

	_, err := cache.Graph(context.Background(), 3)
	require.ErrorIs(t, err, ErrIncompleteConfig)
}

func TestInvalidateRebuildsOnNextAccess(t *testing.T) {
	catalog := newTestCatalog()
	cache := NewCache(catalog, zap.NewNop())

	db, mock := newMockGorm(t)
	db2, _ := newMockGorm(t)
	builds := 0
	cache.resolveDB = func(string) (config.PlantDBParams, error) { return config.PlantDBParams{}, nil }
	cache.openRelational = func(config.PlantDBParams) (*gorm.DB, error) {
		builds++
		if builds == 1 {
			return db, nil
		}
		return db2, nil
	}

	_, err := cache.Relational(context.Background(), 7)
	require.NoError(t, err)

	mock.ExpectClose()
	cache.Invalidate(context.Background(), 7)
	assert.Equal(t, 0, cache.Size())
	require.NoError(t, mock.ExpectationsWereMet())

	got, err := cache.Relational(context.Background(), 7)
	require.NoError(t, err)
	assert.Same(t, db2, got)
	assert.Equal(t, 2, builds)
}

func TestCloseAllIsIdempotent(t *testing.T) {
	catalog := newTestCatalog()
	cache := NewCache(catalog, zap.NewNop())

	db, mock := newMockGorm(t)
	driver := &fakeGraphDriver{}
	cache.resolveDB = func(string) (config.PlantDBParams, error) { return config.PlantDBParams{}, nil }
	cache.openRelational = func(config.PlantDBParams) (*gorm.DB, error) { return db, nil }
	cache.resolveGraph = func(string) (config.PlantGraphParams, error) { return config.PlantGraphParams{}, nil }
	cache.openGraph = func(ctx context.Context, params config.PlantGraphParams) (GraphDriver, error) {
		return driver, nil
	}

	_, err := cache.Relational(context.Background(), 7)
	require.NoError(t, err)
	_, err = cache.Graph(context.Background(), 7)
	require.NoError(t, err)

	mock.ExpectClose()
	cache.CloseAll(context.Background())
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, 1, driver.closeCount())
	require.NoError(t, mock.ExpectationsWereMet())

	cache.CloseAll(context.Background())
	assert.Equal(t, 1, driver.closeCount())
}
