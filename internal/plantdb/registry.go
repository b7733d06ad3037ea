package plantdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/momo-ra/ai-agent-microservices-v1/pkg/config"
)

// Plant is one row of the plant catalog in the registry database. DBKey and
// GraphKey are indirection keys; the actual connection parameters live in the
// environment and are resolved through pkg/config.
type Plant struct {
	ID        uint      `json:"plant_id" gorm:"primaryKey;column:plant_id"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	DBKey     string    `json:"db_key" gorm:"column:db_key;type:varchar(50);not null"`
	GraphKey  string    `json:"graph_key" gorm:"column:graph_key;type:varchar(50)"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlantAccess grants a user access to a plant. Access is effective only
// while both the grant and the plant are active.
type PlantAccess struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	PlantID   uint      `json:"plant_id" gorm:"index;not null"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is the authoritative source of plant existence, connection keys
// and access grants. It owns the one connection pool that must always be
// available regardless of per-plant database health.
type Registry struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRegistry opens the registry connection pool.
func NewRegistry(cfg *config.RegistryDBConfig, log *zap.Logger) (*Registry, error) {
	pgConfig := postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: gormlogger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect registry database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("registry database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Registry{db: db, log: log}, nil
}

// NewRegistryWithDB wraps an existing gorm connection. Used by tests.
func NewRegistryWithDB(db *gorm.DB, log *zap.Logger) *Registry {
	return &Registry{db: db, log: log}
}

// Init creates the registry's own schema.
func (r *Registry) Init(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Plant{}, &PlantAccess{}); err != nil {
		return fmt.Errorf("migrate registry schema: %w", err)
	}
	return nil
}

// GetPlant returns the plant record for an active plant. Missing or inactive
// plants fail with ErrPlantNotFound.
func (r *Registry) GetPlant(ctx context.Context, plantID uint) (*Plant, error) {
	var plant Plant
	err := r.db.WithContext(ctx).
		Where("plant_id = ? AND active = ?", plantID, true).
		First(&plant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: plant %d", ErrPlantNotFound, plantID)
		}
		return nil, fmt.Errorf("look up plant %d: %w", plantID, err)
	}
	return &plant, nil
}

// ConnectionKeys returns the relational and graph lookup keys for a plant.
func (r *Registry) ConnectionKeys(ctx context.Context, plantID uint) (dbKey, graphKey string, err error) {
	plant, err := r.GetPlant(ctx, plantID)
	if err != nil {
		return "", "", err
	}
	return plant.DBKey, plant.GraphKey, nil
}

// HasAccess reports whether the user holds an active grant for an active
// plant. Storage errors degrade to false: access checks fail closed.
func (r *Registry) HasAccess(ctx context.Context, userID, plantID uint) bool {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PlantAccess{}).
		Joins("JOIN plants ON plants.plant_id = plant_accesses.plant_id AND plants.active = ?", true).
		Where("plant_accesses.user_id = ? AND plant_accesses.plant_id = ? AND plant_accesses.active = ?",
			userID, plantID, true).
		Count(&count).Error
	if err != nil {
		r.log.Error("access check failed, denying access",
			zap.Uint("user_id", userID),
			zap.Uint("plant_id", plantID),
			zap.Error(err))
		return false
	}
	return count > 0
}

// ListActivePlants returns every active plant. Runs a fresh query each call;
// used by the lifecycle coordinator for bulk operations.
func (r *Registry) ListActivePlants(ctx context.Context) ([]Plant, error) {
	var plants []Plant
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&plants).Error; err != nil {
		return nil, fmt.Errorf("list active plants: %w", err)
	}
	return plants, nil
}

// Ping verifies the registry connection is alive.
func (r *Registry) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the registry connection pool.
func (r *Registry) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
