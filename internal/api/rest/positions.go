package rest

import (
	"net/http"
	"strconv"

	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/KevinKickass/BladeLoaderCore/internal/store"
	"github.com/KevinKickass/BladeLoaderCore/internal/types"
	"github.com/gin-gonic/gin"
)

// hookIndexError reports a hook index outside the stored rack.
type hookIndexError struct {
	index int
	count int
}

func (e *hookIndexError) Error() string {
	return "hook index " + strconv.Itoa(e.index) + " out of range (have " + strconv.Itoa(e.count) + ")"
}

// update loads the stored positions, applies fn and saves the result.
func (s *Server) updatePositions(c *gin.Context, fn func(*store.StoredPositions) error) (store.StoredPositions, bool) {
	ctx := c.Request.Context()

	positions, err := s.lm.Positions().Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("STORE_500", "Failed to load positions", err.Error()))
		return store.StoredPositions{}, false
	}

	if err := fn(&positions); err != nil {
		s.respondError(c, err)
		return store.StoredPositions{}, false
	}

	if err := s.lm.Positions().Save(ctx, positions); err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("STORE_500", "Failed to save positions", err.Error()))
		return store.StoredPositions{}, false
	}
	return positions, true
}

// GET /api/v1/positions
func (s *Server) getPositions(c *gin.Context) {
	positions, err := s.lm.Positions().Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("STORE_500", "Failed to load positions", err.Error()))
		return
	}
	c.JSON(http.StatusOK, positions)
}

// POST /api/v1/positions/pick
func (s *Server) setPick(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	pos := req.toPosition()
	if ok, reason := s.lm.Controller().Planner().Workspace.Validate(pos); !ok {
		s.respondError(c, &motion.ValidationError{Target: pos, Reason: reason})
		return
	}

	positions, ok := s.updatePositions(c, func(p *store.StoredPositions) error {
		p.Pick = &pos
		return nil
	})
	if ok {
		c.JSON(http.StatusOK, positions)
	}
}

// POST /api/v1/positions/pick/current
//
// Teaches the pick point from wherever the arm is right now, reading
// the encoders so it works with motors off.
func (s *Server) setPickFromCurrent(c *gin.Context) {
	pos, err := s.lm.Controller().SyncPosition()
	if err != nil {
		s.respondError(c, err)
		return
	}

	positions, ok := s.updatePositions(c, func(p *store.StoredPositions) error {
		p.Pick = &pos
		return nil
	})
	if ok {
		c.JSON(http.StatusOK, positions)
	}
}

// POST /api/v1/positions/hooks
func (s *Server) addHook(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	pos := req.toPosition()
	if ok, reason := s.lm.Controller().Planner().Workspace.Validate(pos); !ok {
		s.respondError(c, &motion.ValidationError{Target: pos, Reason: reason})
		return
	}

	positions, ok := s.updatePositions(c, func(p *store.StoredPositions) error {
		p.Hooks = append(p.Hooks, pos)
		return nil
	})
	if ok {
		c.JSON(http.StatusOK, positions)
	}
}

// POST /api/v1/positions/hooks/current
func (s *Server) addHookFromCurrent(c *gin.Context) {
	pos, err := s.lm.Controller().SyncPosition()
	if err != nil {
		s.respondError(c, err)
		return
	}

	positions, ok := s.updatePositions(c, func(p *store.StoredPositions) error {
		p.Hooks = append(p.Hooks, pos)
		return nil
	})
	if ok {
		c.JSON(http.StatusOK, positions)
	}
}

// DELETE /api/v1/positions/hooks/:index
func (s *Server) deleteHook(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.badRequest(c, err)
		return
	}

	positions, ok := s.updatePositions(c, func(p *store.StoredPositions) error {
		if index < 0 || index >= len(p.Hooks) {
			return &hookIndexError{index: index, count: len(p.Hooks)}
		}
		p.Hooks = append(p.Hooks[:index], p.Hooks[index+1:]...)
		return nil
	})
	if ok {
		c.JSON(http.StatusOK, positions)
	}
}

// DELETE /api/v1/positions/hooks
func (s *Server) clearHooks(c *gin.Context) {
	positions, ok := s.updatePositions(c, func(p *store.StoredPositions) error {
		p.Hooks = nil
		return nil
	})
	if ok {
		c.JSON(http.StatusOK, positions)
	}
}

// PUT /api/v1/positions/safe_z
func (s *Server) setSafeZ(c *gin.Context) {
	var req struct {
		SafeZ float64 `json:"safe_z" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if req.SafeZ < 0 {
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse("MOTION_422", "safe_z must not be negative", req.SafeZ))
		return
	}

	positions, ok := s.updatePositions(c, func(p *store.StoredPositions) error {
		z := req.SafeZ
		p.SafeZ = &z
		return nil
	})
	if !ok {
		return
	}

	s.lm.Controller().SetSafeZ(req.SafeZ)
	c.JSON(http.StatusOK, positions)
}
