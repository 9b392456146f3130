package rest

import (
	"net/http"

	"github.com/KevinKickass/BladeLoaderCore/internal/transport"
	"github.com/KevinKickass/BladeLoaderCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/connection/ports
func (s *Server) listPorts(c *gin.Context) {
	ports, err := transport.ListPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("LINK_500", "Failed to list serial ports", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ports": ports})
}

// POST /api/v1/connection/connect
func (s *Server) connect(c *gin.Context) {
	var req struct {
		Port string `json:"port"`
	}
	// An empty body means the configured default port.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}

	if err := s.lm.ConnectHardware(req.Port); err != nil {
		s.logger.Error("Hardware connect failed",
			zap.String("port", req.Port),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable,
			types.NewErrorResponse("LINK_503", "Failed to connect", err.Error()))
		return
	}

	connected, port := s.lm.ConnectionInfo()
	c.JSON(http.StatusOK, gin.H{"connected": connected, "port": port})
}

// POST /api/v1/connection/disconnect
func (s *Server) disconnect(c *gin.Context) {
	if err := s.lm.DisconnectHardware(); err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("LINK_500", "Failed to disconnect", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": false})
}

// GET /api/v1/connection/status
func (s *Server) connectionStatus(c *gin.Context) {
	connected, port := s.lm.ConnectionInfo()
	c.JSON(http.StatusOK, gin.H{"connected": connected, "port": port})
}
