package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/handler/httperr"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/logger"
)

// Request headers carrying the tenant routing metadata.
const (
	HeaderPlantID = "Plant-Id"
	HeaderUserID  = "x-user-id"
)

const plantContextKey = "plant"

// PlantContext extracts the plant (and optional caller) id from the request
// headers without authorizing access. Used on routes where authorization
// already happened through another mechanism.
func PlantContext(resolver *plantdb.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rc, err := resolver.ResolveContext(
				c.Request().Header.Get(HeaderPlantID),
				c.Request().Header.Get(HeaderUserID),
			)
			if err != nil {
				return httperr.Respond(c, err)
			}
			c.Set(plantContextKey, rc)
			return next(c)
		}
	}
}

// PlantAccess extracts the plant and caller ids and validates the caller's
// grant against the registry. Requests without an active grant for an
// active plant are rejected.
func PlantAccess(resolver *plantdb.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			rc, err := resolver.ResolveContext(
				c.Request().Header.Get(HeaderPlantID),
				c.Request().Header.Get(HeaderUserID),
			)
			if err != nil {
				return httperr.Respond(c, err)
			}

			rc, err = resolver.ValidateAccess(c.Request().Context(), rc)
			if err != nil {
				log.Warn("plant access rejected",
					zap.Uint("plant_id", rc.PlantID),
					zap.Uint("user_id", rc.UserID),
					zap.Error(err))
				return httperr.Respond(c, err)
			}

			log.Debug("plant access validated",
				zap.Uint("plant_id", rc.PlantID),
				zap.Uint("user_id", rc.UserID))
			c.Set(plantContextKey, rc)
			return next(c)
		}
	}
}

// PlantFromEcho returns the request context stored by PlantContext or
// PlantAccess.
func PlantFromEcho(c echo.Context) (plantdb.RequestContext, bool) {
	rc, ok := c.Get(plantContextKey).(plantdb.RequestContext)
	return rc, ok
}
