package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	featuredomain "github.com/usagegate/usagegate/internal/feature/domain"
)

func (s *Server) CreateFeature(c *gin.Context) {
	var req featuredomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.featureSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListFeatures(c *gin.Context) {
	var req featuredomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if raw, ok := c.GetQuery("type"); ok {
		t := featuredomain.FeatureType(strings.TrimSpace(raw))
		req.Type = &t
	}
	if raw, ok := c.GetQuery("archived"); ok {
		archived := strings.EqualFold(strings.TrimSpace(raw), "true")
		req.Archived = &archived
	}

	features, info, err := s.featureSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"features": features, "page_info": info})
}
