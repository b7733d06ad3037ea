package plantdb

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"gorm.io/gorm"
)

// Scope hands callers a ready-to-use session for one unit of work and
// guarantees its release on every exit path.
type Scope struct {
	cache *Cache
}

// NewScope creates a session scope manager over the connection cache.
func NewScope(cache *Cache) *Scope {
	return &Scope{cache: cache}
}

// WithRelational runs fn inside a transaction on the plant's relational
// database. Commit discipline belongs to fn: a work function that wants its
// writes kept must commit explicitly. On an error or panic from fn the
// transaction is rolled back before the error or panic propagates; on normal
// completion an uncommitted transaction is rolled back on release.
func (s *Scope) WithRelational(ctx context.Context, plantID uint, fn func(tx *gorm.DB) error) error {
	db, err := s.cache.Relational(ctx, plantID)
	if err != nil {
		return err
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin session for plant %d: %w", plantID, tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	// Release. Rolling back a committed transaction is a no-op.
	tx.Rollback()
	return nil
}

// WithGraph runs fn with an open graph session for the plant. The session is
// always closed; errors from fn propagate unchanged.
func (s *Scope) WithGraph(ctx context.Context, plantID uint, mode neo4j.AccessMode, fn func(sess neo4j.SessionWithContext) error) error {
	driver, err := s.cache.Graph(ctx, plantID)
	if err != nil {
		return err
	}

	sess := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
	defer sess.Close(ctx)

	return fn(sess)
}
