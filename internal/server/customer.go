package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type expireProductRequest struct {
	ProductID string `json:"product_id"`
}

func (s *Server) GetCustomer(c *gin.Context) {
	data, err := s.customerSvc.GetOrCreate(c.Request.Context(), c.Param("customer_id"), strings.TrimSpace(c.Query("entity_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, data.Customer)
}

// ExpireProduct ends a customer subscription immediately. The id is the
// subscription row, not the catalog product.
func (s *Server) ExpireProduct(c *gin.Context) {
	var req expireProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil {
		AbortWithError(c, newValidationError("product_id", "invalid_product_id", "invalid value"))
		return
	}

	if err := s.customerSvc.Expire(c.Request.Context(), c.Param("customer_id"), productID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "expired"})
}
