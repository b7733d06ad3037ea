// Package httperr maps plant routing errors to client-visible HTTP
// responses. Errors propagate unchanged up to the request boundary; this is
// where they become statuses.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
)

// Status returns the HTTP status for a plant routing error.
func Status(err error) int {
	switch {
	case errors.Is(err, plantdb.ErrMissingPlantID),
		errors.Is(err, plantdb.ErrMissingUserID):
		return http.StatusBadRequest
	case errors.Is(err, plantdb.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, plantdb.ErrPlantNotFound):
		return http.StatusNotFound
	case errors.Is(err, plantdb.ErrGraphUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, plantdb.ErrIncompleteConfig):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes the error as a fail envelope with the mapped status.
func Respond(c echo.Context, err error) error {
	status := Status(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak configuration or storage details to clients.
		message = "internal server error"
	}
	return c.JSON(status, echo.Map{
		"status":      "fail",
		"message":     message,
		"status_code": status,
	})
}
