package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/momo-ra/ai-agent-microservices-v1/pkg/jwtutil"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/logger"
)

// JWTAuth creates a middleware that validates bearer tokens and stores the
// verified claims in the echo context under "user".
func JWTAuth(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing authorization header"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid authorization header format"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}

			c.Set("user", claims)
			log.Debug("JWT token validated",
				zap.Uint("user_id", claims.UserID))

			return next(c)
		}
	}
}

// UserFromEcho returns the verified claims stored by JWTAuth.
func UserFromEcho(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	return claims, ok
}
