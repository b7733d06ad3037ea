package plantdb

import (
	"context"

	"go.uber.org/zap"
)

// registryStore is the registry surface the lifecycle coordinator needs.
type registryStore interface {
	Init(ctx context.Context) error
	ListActivePlants(ctx context.Context) ([]Plant, error)
	Ping(ctx context.Context) error
	Close() error
}

// PlantHealth reports connection liveness for one plant. Graph is nil when
// the plant has no graph key configured.
type PlantHealth struct {
	Relational      bool   `json:"relational"`
	RelationalError string `json:"relational_error,omitempty"`
	Graph           *bool  `json:"graph,omitempty"`
	GraphError      string `json:"graph_error,omitempty"`
}

// HealthReport aggregates liveness across the registry and every active
// plant.
type HealthReport struct {
	Registry      bool                 `json:"registry"`
	RegistryError string               `json:"registry_error,omitempty"`
	Plants        map[uint]PlantHealth `json:"plants"`
}

// Lifecycle orchestrates startup verification and shutdown across the
// registry and all active plants. It is the one place where per-plant errors
// are caught, logged and converted into a continue-to-next-plant signal:
// one bad plant never blocks the others.
type Lifecycle struct {
	registry registryStore
	cache    *Cache
	log      *zap.Logger

	// migrate lists the models auto-migrated on each plant database during
	// InitializeAll.
	migrate []any
}

// NewLifecycle creates the lifecycle coordinator. models are auto-migrated
// per plant on startup.
func NewLifecycle(registry *Registry, cache *Cache, log *zap.Logger, models ...any) *Lifecycle {
	return &Lifecycle{registry: registry, cache: cache, log: log, migrate: models}
}

// InitializeAll initializes the registry schema, then builds and verifies
// connections for every active plant. A single plant's failure is logged
// with its id and processing continues; only a registry failure aborts.
func (l *Lifecycle) InitializeAll(ctx context.Context) error {
	if err := l.registry.Init(ctx); err != nil {
		return err
	}

	plants, err := l.registry.ListActivePlants(ctx)
	if err != nil {
		return err
	}

	for _, plant := range plants {
		db, err := l.cache.Relational(ctx, plant.ID)
		if err != nil {
			l.log.Error("plant relational initialization failed",
				zap.Uint("plant_id", plant.ID),
				zap.Error(err))
		} else {
			if len(l.migrate) > 0 {
				if err := db.WithContext(ctx).AutoMigrate(l.migrate...); err != nil {
					l.log.Error("plant schema migration failed",
						zap.Uint("plant_id", plant.ID),
						zap.Error(err))
				}
			}
			l.log.Info("plant relational ready", zap.Uint("plant_id", plant.ID))
		}

		if plant.GraphKey == "" {
			continue
		}
		if _, err := l.cache.Graph(ctx, plant.ID); err != nil {
			l.log.Error("plant graph initialization failed",
				zap.Uint("plant_id", plant.ID),
				zap.Error(err))
		} else {
			l.log.Info("plant graph ready", zap.Uint("plant_id", plant.ID))
		}
	}

	return nil
}

// CheckHealth probes the registry and both connection kinds for every active
// plant. It never returns an error: every failure becomes a false entry in
// the report.
func (l *Lifecycle) CheckHealth(ctx context.Context) HealthReport {
	report := HealthReport{Plants: make(map[uint]PlantHealth)}

	if err := l.registry.Ping(ctx); err != nil {
		report.RegistryError = err.Error()
		return report
	}
	report.Registry = true

	plants, err := l.registry.ListActivePlants(ctx)
	if err != nil {
		report.RegistryError = err.Error()
		return report
	}

	for _, plant := range plants {
		health := PlantHealth{}

		if db, err := l.cache.Relational(ctx, plant.ID); err != nil {
			health.RelationalError = err.Error()
		} else if sqlDB, err := db.DB(); err != nil {
			health.RelationalError = err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			health.RelationalError = err.Error()
		} else {
			health.Relational = true
		}

		if plant.GraphKey != "" {
			ok := false
			if driver, err := l.cache.Graph(ctx, plant.ID); err != nil {
				health.GraphError = err.Error()
			} else if err := driver.VerifyConnectivity(ctx); err != nil {
				health.GraphError = err.Error()
			} else {
				ok = true
			}
			health.Graph = &ok
		}

		report.Plants[plant.ID] = health
	}

	return report
}

// CloseAll releases every cached plant connection and the registry's own
// pool. Safe to call more than once.
func (l *Lifecycle) CloseAll(ctx context.Context) {
	l.cache.CloseAll(ctx)
	if err := l.registry.Close(); err != nil {
		l.log.Warn("closing registry connection", zap.Error(err))
	}
}
