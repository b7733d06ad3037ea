package plantdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/momo-ra/ai-agent-microservices-v1/pkg/config"
)

// Catalog is the registry surface the cache needs: an active-plant lookup.
type Catalog interface {
	GetPlant(ctx context.Context, plantID uint) (*Plant, error)
}

// GraphDriver is the subset of the Neo4j driver used by the cache and the
// session scopes.
type GraphDriver interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) neo4j.SessionWithContext
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

type relationalOpener func(params config.PlantDBParams) (*gorm.DB, error)
type graphOpener func(ctx context.Context, params config.PlantGraphParams) (GraphDriver, error)

// plantConn holds the cached handles for one plant. Each kind is built
// lazily and independently: a down graph store never blocks relational
// access for the same plant. The per-plant mutex serializes first builds so
// concurrent first accesses never create duplicate engines.
type plantConn struct {
	mu         sync.Mutex
	relational *gorm.DB
	graph      GraphDriver
	createdAt  time.Time
}

// Cache is the single authority for per-plant connections: it answers "does
// a live connection exist for plant X, and if not, build it exactly once".
// Entries live until CloseAll or an explicit Invalidate; the plant's active
// flag is re-checked against the registry on every access, so deactivating a
// plant denies access even while its handles stay cached.
type Cache struct {
	catalog Catalog
	log     *zap.Logger

	mu    sync.RWMutex
	conns map[uint]*plantConn

	openRelational relationalOpener
	openGraph      graphOpener
	resolveDB      func(key string) (config.PlantDBParams, error)
	resolveGraph   func(key string) (config.PlantGraphParams, error)
}

// NewCache creates a connection cache backed by the given catalog.
func NewCache(catalog Catalog, log *zap.Logger) *Cache {
	return &Cache{
		catalog:        catalog,
		log:            log,
		conns:          make(map[uint]*plantConn),
		openRelational: openPlantDB,
		openGraph:      openPlantGraph,
		resolveDB:      config.PlantDB,
		resolveGraph:   config.PlantGraph,
	}
}

func openPlantDB(params config.PlantDBParams) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  params.DSN(),
		PreferSimpleProtocol: true,
	}
	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func openPlantGraph(ctx context.Context, params config.PlantGraphParams) (GraphDriver, error) {
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(params.User, params.Password, ""))
	if err != nil {
		return nil, err
	}
	return driver, nil
}

// conn returns the per-plant slot, creating an empty one on first use. The
// global lock covers only map access; builds run under the slot's own lock.
func (c *Cache) conn(plantID uint) *plantConn {
	c.mu.RLock()
	pc := c.conns[plantID]
	c.mu.RUnlock()
	if pc != nil {
		return pc
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pc = c.conns[plantID]; pc == nil {
		pc = &plantConn{}
		c.conns[plantID] = pc
	}
	return pc
}

// Relational returns the pooled relational engine for a plant, building it
// on first access. The plant's existence and active flag are validated
// against the registry on every call.
func (c *Cache) Relational(ctx context.Context, plantID uint) (*gorm.DB, error) {
	plant, err := c.catalog.GetPlant(ctx, plantID)
	if err != nil {
		return nil, err
	}

	pc := c.conn(plantID)
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.relational != nil {
		return pc.relational, nil
	}

	params, err := c.resolveDB(plant.DBKey)
	if err != nil {
		c.log.Error("plant database configuration incomplete",
			zap.Uint("plant_id", plantID),
			zap.String("db_key", plant.DBKey),
			zap.Error(err))
		return nil, fmt.Errorf("%w: plant %d key %q: %v", ErrIncompleteConfig, plantID, plant.DBKey, err)
	}

	db, err := c.openRelational(params)
	if err != nil {
		return nil, fmt.Errorf("connect plant %d database: %w", plantID, err)
	}

	pc.relational = db
	if pc.createdAt.IsZero() {
		pc.createdAt = time.Now()
	}
	c.log.Info("plant database connection created",
		zap.Uint("plant_id", plantID),
		zap.String("db_key", plant.DBKey))
	return db, nil
}

// Graph returns the graph driver for a plant, building and probing it on
// first access. A handle is cached only after the liveness probe succeeds;
// on probe failure it is discarded and the next call retries from scratch.
func (c *Cache) Graph(ctx context.Context, plantID uint) (GraphDriver, error) {
	plant, err := c.catalog.GetPlant(ctx, plantID)
	if err != nil {
		return nil, err
	}
	if plant.GraphKey == "" {
		return nil, fmt.Errorf("%w: plant %d has no graph key", ErrIncompleteConfig, plantID)
	}

	pc := c.conn(plantID)
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.graph != nil {
		return pc.graph, nil
	}

	params, err := c.resolveGraph(plant.GraphKey)
	if err != nil {
		c.log.Error("plant graph configuration incomplete",
			zap.Uint("plant_id", plantID),
			zap.String("graph_key", plant.GraphKey),
			zap.Error(err))
		return nil, fmt.Errorf("%w: plant %d key %q: %v", ErrIncompleteConfig, plantID, plant.GraphKey, err)
	}

	driver, err := c.openGraph(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: plant %d: %v", ErrGraphUnavailable, plantID, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		if closeErr := driver.Close(ctx); closeErr != nil {
			c.log.Warn("closing failed graph driver",
				zap.Uint("plant_id", plantID),
				zap.Error(closeErr))
		}
		return nil, fmt.Errorf("%w: plant %d liveness probe: %v", ErrGraphUnavailable, plantID, err)
	}

	pc.graph = driver
	if pc.createdAt.IsZero() {
		pc.createdAt = time.Now()
	}
	c.log.Info("plant graph connection created",
		zap.Uint("plant_id", plantID),
		zap.String("graph_key", plant.GraphKey))
	return driver, nil
}

// Invalidate drops the cached handles for one plant, closing them. The next
// access rebuilds from the current registry record and environment.
func (c *Cache) Invalidate(ctx context.Context, plantID uint) {
	c.mu.Lock()
	pc := c.conns[plantID]
	delete(c.conns, plantID)
	c.mu.Unlock()

	if pc == nil {
		return
	}
	c.closeConn(ctx, plantID, pc)
}

// Size reports the number of plants with at least one cached handle.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// CloseAll releases every cached handle. Individual close failures are
// logged and do not abort the loop; calling it again on an empty cache is a
// no-op.
func (c *Cache) CloseAll(ctx context.Context) {
	c.mu.Lock()
	conns := c.conns
	c.conns = make(map[uint]*plantConn)
	c.mu.Unlock()

	for plantID, pc := range conns {
		c.closeConn(ctx, plantID, pc)
	}
}

func (c *Cache) closeConn(ctx context.Context, plantID uint, pc *plantConn) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.relational != nil {
		if sqlDB, err := pc.relational.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				c.log.Warn("closing plant database connection",
					zap.Uint("plant_id", plantID),
					zap.Error(err))
			}
		}
		pc.relational = nil
	}
	if pc.graph != nil {
		if err := pc.graph.Close(ctx); err != nil {
			c.log.Warn("closing plant graph connection",
				zap.Uint("plant_id", plantID),
				zap.Error(err))
		}
		pc.graph = nil
	}
}
