package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/usagegate/usagegate/internal/check"
)

func (s *Server) Check(c *gin.Context) {
	var req check.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkSvc.Check(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
