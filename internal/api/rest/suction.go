package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/suction/on
func (s *Server) suctionOn(c *gin.Context) {
	if err := s.lm.Controller().SuctionOn(); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suction_active": true})
}

// POST /api/v1/suction/off
func (s *Server) suctionOff(c *gin.Context) {
	if err := s.lm.Controller().SuctionOff(); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suction_active": false})
}
