package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/usagegate/usagegate/internal/attach"
)

func (s *Server) Attach(c *gin.Context) {
	var req attach.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.attachSvc.Attach(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
