package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/usagegate/usagegate/internal/events"
)

func (s *Server) IngestEvent(c *gin.Context) {
	var req events.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ev, err := s.eventsSvc.Ingest(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ev)
}
