package plantdb

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockGorm opens a gorm handle over a sqlmock connection.
func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

// stubCatalog serves plant records from memory.
type stubCatalog struct {
	mu     sync.Mutex
	plants map[uint]*Plant
}

func (s *stubCatalog) GetPlant(ctx context.Context, plantID uint) (*Plant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plant, ok := s.plants[plantID]
	if !ok || !plant.Active {
		return nil, fmt.Errorf("%w: plant %d", ErrPlantNotFound, plantID)
	}
	copied := *plant
	return &copied, nil
}

func (s *stubCatalog) setActive(plantID uint, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plant, ok := s.plants[plantID]; ok {
		plant.Active = active
	}
}

// fakeSession is a graph session stub. Only Close is implemented; the
// embedded interface covers the rest.
type fakeSession struct {
	neo4j.SessionWithContext
	mu     sync.Mutex
	closed bool
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeGraphDriver is a GraphDriver stub with a configurable liveness probe.
type fakeGraphDriver struct {
	mu         sync.Mutex
	verifyErr  error
	closed     int
	session    *fakeSession
	lastConfig neo4j.SessionConfig
}

func (f *fakeGraphDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) neo4j.SessionWithContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastConfig = config
	if f.session == nil {
		f.session = &fakeSession{}
	}
	return f.session
}

func (f *fakeGraphDriver) VerifyConnectivity(ctx context.Context) error {
	return f.verifyErr
}

func (f *fakeGraphDriver) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeGraphDriver) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
