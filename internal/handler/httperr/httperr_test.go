package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{plantdb.ErrMissingPlantID, http.StatusBadRequest},
		{plantdb.ErrMissingUserID, http.StatusBadRequest},
		{fmt.Errorf("%w: user 99, plant 7", plantdb.ErrAccessDenied), http.StatusForbidden},
		{fmt.Errorf("%w: plant 999", plantdb.ErrPlantNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: plant 7 liveness probe: refused", plantdb.ErrGraphUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: plant 7 key \"ACME\"", plantdb.ErrIncompleteConfig), http.StatusInternalServerError},
		{errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), "error: %v", tt.err)
	}
}

func TestRespondMasksInternalErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := Respond(c, fmt.Errorf("%w: plant 7 key \"ACME\": missing ACME_DB_PASSWORD", plantdb.ErrIncompleteConfig))
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.NotContains(t, rec.Body.String(), "ACME_DB_PASSWORD")
}

func TestRespondKeepsClientErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := Respond(c, fmt.Errorf("%w: user 99, plant 7", plantdb.ErrAccessDenied))
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "user does not have access to plant")
}
