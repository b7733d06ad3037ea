package plantdb

import (
	"context"
	"fmt"
	"strconv"
)

// RequestContext carries the tenant routing metadata for one request.
type RequestContext struct {
	PlantID uint
	UserID  uint
	HasUser bool
}

// accessCatalog is the registry surface the resolver needs.
type accessCatalog interface {
	GetPlant(ctx context.Context, plantID uint) (*Plant, error)
	HasAccess(ctx context.Context, userID, plantID uint) bool
}

// Resolver turns raw request metadata into a validated RequestContext.
// ResolveContext is pure extraction; ValidateAccess is the separate
// authorization step, so internal calls that are already scoped by a prior
// check can resolve a plant id without re-authorizing.
type Resolver struct {
	registry accessCatalog
}

// NewResolver creates a resolver backed by the registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// ResolveContext extracts the plant and caller ids from raw header values.
// No registry access happens here.
func (r *Resolver) ResolveContext(rawPlantID, rawUserID string) (RequestContext, error) {
	if rawPlantID == "" {
		return RequestContext{}, ErrMissingPlantID
	}
	plantID, err := strconv.ParseUint(rawPlantID, 10, 32)
	if err != nil {
		return RequestContext{}, fmt.Errorf("%w: invalid plant id %q", ErrMissingPlantID, rawPlantID)
	}

	rc := RequestContext{PlantID: uint(plantID)}
	if rawUserID != "" {
		userID, err := strconv.ParseUint(rawUserID, 10, 32)
		if err != nil {
			return RequestContext{}, fmt.Errorf("%w: invalid user id %q", ErrMissingUserID, rawUserID)
		}
		rc.UserID = uint(userID)
		rc.HasUser = true
	}
	return rc, nil
}

// ValidateAccess checks that the caller holds an active grant for an active
// plant. Unknown or inactive plants surface as ErrPlantNotFound before the
// grant check so the caller can distinguish "no such plant" from "no
// access".
func (r *Resolver) ValidateAccess(ctx context.Context, rc RequestContext) (RequestContext, error) {
	if !rc.HasUser {
		return rc, ErrMissingUserID
	}
	if _, err := r.registry.GetPlant(ctx, rc.PlantID); err != nil {
		return rc, err
	}
	if !r.registry.HasAccess(ctx, rc.UserID, rc.PlantID) {
		return rc, fmt.Errorf("%w: user %d, plant %d", ErrAccessDenied, rc.UserID, rc.PlantID)
	}
	return rc, nil
}
