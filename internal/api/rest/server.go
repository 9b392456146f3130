package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/BladeLoaderCore/internal/api/websocket"
	"github.com/KevinKickass/BladeLoaderCore/internal/config"
	"github.com/KevinKickass/BladeLoaderCore/internal/controller"
	"github.com/KevinKickass/BladeLoaderCore/internal/interfaces"
	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/KevinKickass/BladeLoaderCore/internal/transport"
	"github.com/KevinKickass/BladeLoaderCore/internal/types"
	"github.com/KevinKickass/BladeLoaderCore/internal/workflow"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	lm     interfaces.LifecycleManager
	logger *zap.Logger
	server *http.Server
	wsHub  *websocket.Hub
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		lm:     lm,
		logger: logger,
		wsHub:  wsHub,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== CONNECTION ====================
		connection := v1.Group("/connection")
		{
			connection.GET("/ports", s.listPorts)
			connection.POST("/connect", s.connect)
			connection.POST("/disconnect", s.disconnect)
			connection.GET("/status", s.connectionStatus)
		}

		// ==================== MOVEMENT ====================
		movement := v1.Group("/movement")
		{
			movement.POST("/home", s.home)
			movement.POST("/move", s.move)
			movement.POST("/safe_move", s.safeMove)
			movement.POST("/jog", s.jog)
			movement.GET("/position", s.position)
			movement.POST("/teach/enable", s.enableTeachMode)
			movement.POST("/teach/disable", s.disableTeachMode)
			movement.POST("/estop", s.emergencyStop)
		}

		// ==================== MACHINE ====================
		machine := v1.Group("/machine")
		{
			machine.GET("/status", s.getMachineStatus)
			machine.GET("/history", s.getCommandHistory)
		}

		// ==================== SUCTION ====================
		suction := v1.Group("/suction")
		{
			suction.POST("/on", s.suctionOn)
			suction.POST("/off", s.suctionOff)
		}

		// ==================== TAUGHT POSITIONS ====================
		positions := v1.Group("/positions")
		{
			positions.GET("", s.getPositions)
			positions.POST("/pick", s.setPick)
			positions.POST("/pick/current", s.setPickFromCurrent)
			positions.POST("/hooks", s.addHook)
			positions.POST("/hooks/current", s.addHookFromCurrent)
			positions.DELETE("/hooks/:index", s.deleteHook)
			positions.DELETE("/hooks", s.clearHooks)
			positions.PUT("/safe_z", s.setSafeZ)
		}

		// ==================== CYCLE ====================
		cycle := v1.Group("/cycle")
		{
			cycle.POST("/pick", s.pickAt)
			cycle.POST("/place", s.placeAt)
			cycle.POST("/pick_from_stored", s.pickFromStored)
			cycle.POST("/place_at_hook/:index", s.placeAtHook)
			cycle.POST("/run", s.runCycle)
			cycle.POST("/pause", s.pauseCycle)
			cycle.POST("/resume", s.resumeCycle)
			cycle.POST("/stop", s.stopCycle)
			cycle.POST("/reset", s.resetCycle)
			cycle.GET("/state", s.cycleState)
		}

		// ==================== WEBSOCKET ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// respondError maps domain errors onto HTTP status codes with a
// consistent payload.
func (s *Server) respondError(c *gin.Context, err error) {
	var (
		precondition *controller.PreconditionError
		validation   *motion.ValidationError
		stateErr     *workflow.StateError
		configErr    *workflow.ConfigurationError
		timeoutErr   *transport.TimeoutError
		hookErr      *hookIndexError
	)

	switch {
	case errors.As(err, &hookErr):
		c.JSON(http.StatusNotFound,
			types.NewErrorResponse("STORE_404", "No such hook", err.Error()))
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse("MOTION_422", "Target rejected", err.Error()))
	case errors.As(err, &precondition):
		c.JSON(http.StatusConflict,
			types.NewErrorResponse("MACHINE_409", "Operation not allowed in current state", err.Error()))
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict,
			types.NewErrorResponse("CYCLE_409", "Cycle not in a valid state", err.Error()))
	case errors.As(err, &configErr):
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse("CYCLE_422", "Cycle not configured", err.Error()))
	case errors.Is(err, transport.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable,
			types.NewErrorResponse("LINK_503", "Hardware not connected", err.Error()))
	case errors.As(err, &timeoutErr):
		c.JSON(http.StatusGatewayTimeout,
			types.NewErrorResponse("LINK_504", "Hardware did not acknowledge", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("INTERNAL_500", "Internal error", err.Error()))
	}
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest,
		types.NewErrorResponse("REQUEST_400", "Invalid request body", err.Error()))
}
