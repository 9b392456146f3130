package rest

import (
	"net/http"

	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type positionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (r positionRequest) toPosition() motion.Position {
	return motion.Position{X: r.X, Y: r.Y, Z: r.Z}
}

// POST /api/v1/movement/home
func (s *Server) home(c *gin.Context) {
	if err := s.lm.Controller().Home(); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.lm.Controller().Status())
}

// POST /api/v1/movement/move
func (s *Server) move(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.lm.Controller().MoveTo(req.toPosition()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.lm.Controller().Status())
}

// POST /api/v1/movement/safe_move
func (s *Server) safeMove(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.lm.Controller().SafeMoveTo(req.toPosition()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.lm.Controller().Status())
}

// POST /api/v1/movement/jog
func (s *Server) jog(c *gin.Context) {
	var req struct {
		Axis     string  `json:"axis" binding:"required"`
		Distance float64 `json:"distance" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.lm.Controller().Jog(req.Axis, req.Distance); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": s.lm.Controller().Position()})
}

// GET /api/v1/movement/position
//
// Reads the encoders instead of trusting the tracked position, so it
// also works right after teach mode.
func (s *Server) position(c *gin.Context) {
	pos, err := s.lm.Controller().SyncPosition()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": pos})
}

// POST /api/v1/movement/teach/enable
func (s *Server) enableTeachMode(c *gin.Context) {
	if err := s.lm.Controller().MotorsOff(); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teach_mode": true})
}

// POST /api/v1/movement/teach/disable
func (s *Server) disableTeachMode(c *gin.Context) {
	if err := s.lm.Controller().MotorsOn(); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"teach_mode": false,
		"position":   s.lm.Controller().Position(),
	})
}

// POST /api/v1/movement/estop
func (s *Server) emergencyStop(c *gin.Context) {
	s.lm.Cycle().Stop()
	result := s.lm.Controller().EmergencyStop()

	s.logger.Warn("Emergency stop triggered",
		zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{
		"stopped": true,
		"result":  result,
	})
}

// GET /api/v1/machine/status
func (s *Server) getMachineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"system":     s.lm.GetCurrentStatus(),
		"controller": s.lm.Controller().Status(),
		"cycle":      s.lm.Cycle().Status(),
	})
}

// GET /api/v1/machine/history?limit=50
func (s *Server) getCommandHistory(c *gin.Context) {
	var query struct {
		Limit int `form:"limit,default=50"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		s.badRequest(c, err)
		return
	}

	history := s.lm.Controller().History(query.Limit)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(history),
		"history": history,
	})
}
