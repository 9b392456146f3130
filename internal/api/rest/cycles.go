package rest

import (
	"net/http"
	"strconv"

	"github.com/KevinKickass/BladeLoaderCore/internal/controller"
	"github.com/KevinKickass/BladeLoaderCore/internal/types"
	"github.com/KevinKickass/BladeLoaderCore/internal/workflow"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// POST /api/v1/cycle/pick
func (s *Server) pickAt(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.lm.Controller().PickBlade(req.toPosition()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.lm.Controller().Status())
}

// POST /api/v1/cycle/place
func (s *Server) placeAt(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.lm.Controller().PlaceBlade(req.toPosition()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.lm.Controller().Status())
}

// POST /api/v1/cycle/pick_from_stored
func (s *Server) pickFromStored(c *gin.Context) {
	positions, err := s.lm.Positions().Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("STORE_500", "Failed to load positions", err.Error()))
		return
	}
	if positions.Pick == nil {
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse("STORE_422", "No pick position taught", nil))
		return
	}

	if err := s.lm.Controller().PickBlade(*positions.Pick); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.lm.Controller().Status())
}

// POST /api/v1/cycle/place_at_hook/:index
func (s *Server) placeAtHook(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.badRequest(c, err)
		return
	}

	positions, err := s.lm.Positions().Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("STORE_500", "Failed to load positions", err.Error()))
		return
	}
	if index < 0 || index >= len(positions.Hooks) {
		s.respondError(c, &hookIndexError{index: index, count: len(positions.Hooks)})
		return
	}

	if err := s.lm.Controller().PlaceBlade(positions.Hooks[index]); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.lm.Controller().Status())
}

// POST /api/v1/cycle/run
//
// Starts the full pick-and-place cycle over all taught hooks. The
// cycle runs in the background; progress streams over the websocket
// and can be polled at /cycle/state.
func (s *Server) runCycle(c *gin.Context) {
	ctrl := s.lm.Controller()
	if !ctrl.Status().Homed {
		s.respondError(c, &controller.PreconditionError{Op: "run cycle", Reason: "not homed"})
		return
	}

	positions, err := s.lm.Positions().Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("STORE_500", "Failed to load positions", err.Error()))
		return
	}
	if positions.Pick == nil {
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse("CYCLE_422", "No pick position taught", nil))
		return
	}
	if len(positions.Hooks) == 0 {
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse("CYCLE_422", "No hooks taught", nil))
		return
	}

	cycle := s.lm.Cycle()
	if st := cycle.State(); st != workflow.StateIdle {
		s.respondError(c, &workflow.StateError{State: st, Op: "run"})
		return
	}
	current := ctrl.Position()
	cycle.Configure(*positions.Pick, positions.Hooks, &current)

	go func() {
		defer func() {
			// The cycle moved the arm; pull the real pose back into
			// the controller's bookkeeping.
			if _, err := ctrl.SyncPosition(); err != nil {
				s.logger.Warn("Position sync after cycle failed", zap.Error(err))
			}
		}()
		if err := cycle.Run(); err != nil {
			s.logger.Error("Cycle run failed", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, cycle.Status())
}

// POST /api/v1/cycle/pause
func (s *Server) pauseCycle(c *gin.Context) {
	s.lm.Cycle().Pause()
	c.JSON(http.StatusOK, s.lm.Cycle().Status())
}

// POST /api/v1/cycle/resume
func (s *Server) resumeCycle(c *gin.Context) {
	s.lm.Cycle().Resume()
	c.JSON(http.StatusOK, s.lm.Cycle().Status())
}

// POST /api/v1/cycle/stop
func (s *Server) stopCycle(c *gin.Context) {
	s.lm.Cycle().Stop()
	c.JSON(http.StatusOK, s.lm.Cycle().Status())
}

// POST /api/v1/cycle/reset
func (s *Server) resetCycle(c *gin.Context) {
	s.lm.Cycle().Reset()
	c.JSON(http.StatusOK, s.lm.Cycle().Status())
}

// GET /api/v1/cycle/state
func (s *Server) cycleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Cycle().Status())
}
