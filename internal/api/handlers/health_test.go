package handlers_test

import (
	"net/http"
	"testing"

	"github.com/hugh/formlink/internal/api/handlers"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	e := setupRouter(t)

	rr := e.do(t, "GET", "/health", nil, "")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp handlers.HealthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Services["database"])
	assert.NotContains(t, resp.Services, "redis")

	rr = e.do(t, "GET", "/ready", nil, "")
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindUnauthenticated, http.StatusUnauthorized},
		{apperr.KindForbidden, http.StatusForbidden},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindExpired, http.StatusGone},
		{apperr.KindAlreadyUsed, http.StatusConflict},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindPartialFailure, http.StatusInternalServerError},
		{apperr.KindInfrastructure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, handlers.StatusFor(tt.kind))
		})
	}
}
