package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/services"
)

func TestRespondErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", &services.ValidationError{Field: "amount", Message: "mismatch"}, http.StatusBadRequest, "amount"},
		{"rejection", fmt.Errorf("initiate: %w", &services.GatewayRejectionError{StatusCode: 400, Message: "Invalid number"}), http.StatusBadRequest, "PAYMENT_REJECTED"},
		{"transition", &services.InvalidTransitionError{From: models.DistributionStatusPaid, To: models.DistributionStatusPending}, http.StatusConflict, "INVALID_TRANSITION"},
		{"gateway down", fmt.Errorf("%w: timeout", services.ErrGatewayUnavailable), http.StatusServiceUnavailable, ""},
		{"conflict", fmt.Errorf("%w: track is in an open distribution request", services.ErrConflict), http.StatusConflict, "CONFLICT"},
		{"forbidden", fmt.Errorf("%w: not yours", services.ErrForbidden), http.StatusForbidden, ""},
		{"not found", fmt.Errorf("distribution request %w", services.ErrNotFound), http.StatusNotFound, ""},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, ""},
		{"inactive", fmt.Errorf("%w: suspended", services.ErrAccountInactive), http.StatusForbidden, ""},
		{"reset token", services.ErrInvalidResetToken, http.StatusBadRequest, ""},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/", func(c *gin.Context) { respondError(c, tt.err, "distribution") })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
			if tt.body != "" {
				assert.Contains(t, w.Body.String(), tt.body)
			}
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestGatewayOutageSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		respondError(c, fmt.Errorf("%w: timeout", services.ErrGatewayUnavailable), "payment")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "SERVICE_UNAVAILABLE")
}

func TestParseIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/:id", func(c *gin.Context) {
		if id, ok := parseIDParam(c, "id"); ok {
			c.String(http.StatusOK, id.String())
		}
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/3f2504e0-4f89-11d3-9a0c-0305e82c3301", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3f2504e0-4f89-11d3-9a0c-0305e82c3301", w.Body.String())
}
