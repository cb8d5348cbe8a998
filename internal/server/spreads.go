package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListSpreads(c *gin.Context) {
	spreads, err := s.spreadSvc.ListEnabled(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": spreads})
}
