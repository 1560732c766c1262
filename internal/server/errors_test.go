package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apikeydomain "github.com/usagegate/usagegate/internal/apikey/domain"
	"github.com/usagegate/usagegate/internal/billing/provider"
	"github.com/usagegate/usagegate/internal/check"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	featuredomain "github.com/usagegate/usagegate/internal/feature/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{check.ErrInvalidRequest, http.StatusBadRequest, "validation_error"},
		{featuredomain.ErrInvalidSchema, http.StatusBadRequest, "validation_error"},
		{featuredomain.ErrFeatureNotFound, http.StatusNotFound, "not_found"},
		{customerdomain.ErrCustomerNotFound, http.StatusNotFound, "not_found"},
		{customerdomain.ErrEntityNotFound, http.StatusNotFound, "not_found"},
		{apikeydomain.ErrInvalidKey, http.StatusUnauthorized, "unauthorized"},
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{&provider.Error{Provider: "stripe", Op: "create_invoice_item", Err: fmt.Errorf("boom")}, http.StatusBadGateway, "billing_provider_error"},
		{fmt.Errorf("something else"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.typ, payload.Type, tc.err.Error())
	}
}

func TestErrorHandlingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, featuredomain.ErrFeatureNotFound)
	})
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"type":"not_found","message":"not found"}}`, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestValidationErrorsPayload(t *testing.T) {
	status, payload := mapError(newValidationError("product_id", "invalid_product_id", "invalid value"))

	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "product_id", payload.Errors[0].Field)
	assert.Equal(t, "invalid_product_id", payload.Errors[0].Code)
}
