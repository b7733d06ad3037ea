// Package plantdb routes database access across a central registry and a
// dynamically resolved set of per-plant PostgreSQL and Neo4j databases.
//
// The registry database is always on and holds the plant catalog and access
// grants. Per-plant connections are built lazily on first access, cached for
// the process lifetime and shared by every request for that plant.
package plantdb

import (
	"errors"
)

// Plant routing error types. Handlers map these to HTTP statuses at the
// request boundary; everything below the boundary propagates them unchanged.
var (
	ErrPlantNotFound    = errors.New("plant not found or inactive")
	ErrMissingPlantID   = errors.New("plant id is required")
	ErrMissingUserID    = errors.New("user id is required")
	ErrAccessDenied     = errors.New("user does not have access to plant")
	ErrIncompleteConfig = errors.New("incomplete plant connection configuration")
	ErrGraphUnavailable = errors.New("plant graph database unavailable")
)
