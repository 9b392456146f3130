package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/BladeLoaderCore/internal/api/rest"
	"github.com/KevinKickass/BladeLoaderCore/internal/api/websocket"
	"github.com/KevinKickass/BladeLoaderCore/internal/config"
	"github.com/KevinKickass/BladeLoaderCore/internal/controller"
	"github.com/KevinKickass/BladeLoaderCore/internal/interfaces"
	"github.com/KevinKickass/BladeLoaderCore/internal/store"
	"github.com/KevinKickass/BladeLoaderCore/internal/transport"
	"github.com/KevinKickass/BladeLoaderCore/internal/workflow"
	"go.uber.org/zap"
)

// LifecycleManager wires the transport, controller, workflow machine
// and API surfaces together and owns their startup and shutdown order.
type LifecycleManager struct {
	config     *config.Config
	logger     *zap.Logger
	positions  store.Store
	wsHub      *websocket.Hub
	serial     *transport.Serial    // nil in simulation mode
	simulator  *transport.Simulator // nil on real hardware
	controller *controller.Controller
	cycle      *workflow.Machine

	restServer *rest.Server

	stateMu       sync.RWMutex
	currentState  SystemState
	connectedPort string

	shutdownOnce sync.Once
}

func NewLifecycleManager(
	positions store.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *LifecycleManager {
	lm := &LifecycleManager{
		config:       cfg,
		logger:       logger,
		positions:    positions,
		wsHub:        websocket.NewHub(logger),
		currentState: StateInitializing,
	}

	var link transport.Transport
	if cfg.Serial.Simulate {
		lm.simulator = transport.NewSimulator()
		link = lm.simulator
		logger.Info("Running against the simulator, no hardware required")
	} else {
		lm.serial = transport.NewSerial(transport.SerialConfig{
			BaudRate:     cfg.Serial.BaudRate,
			AckTimeout:   cfg.Serial.AckTimeout,
			ConnectDelay: cfg.Serial.ConnectDelay,
		}, logger)
		link = lm.serial
	}

	lm.controller = controller.New(link, controller.Config{
		SafeZ:          cfg.Motion.SafeZ,
		Feedrate:       cfg.Motion.Feedrate,
		VacuumDelayMs:  cfg.Motion.VacuumDelayMs,
		ReleaseDelayMs: cfg.Motion.ReleaseDelayMs,
	}, logger)
	lm.controller.Queue().AbortOnFailure = cfg.Motion.AbortOnFailure

	lm.cycle = workflow.NewMachine(link, lm.controller.Queue(), lm.controller.Planner(),
		lm.wsHub, workflow.Config{
			VacuumDelayMs:  cfg.Motion.VacuumDelayMs,
			ReleaseDelayMs: cfg.Motion.ReleaseDelayMs,
			MaxAttempts:    cfg.Workflow.MaxAttempts,
			RetryBackoff:   cfg.Workflow.RetryBackoff,
		}, logger)

	// A previously taught safety height survives restarts.
	if stored, err := positions.Load(context.Background()); err != nil {
		logger.Warn("Failed to load stored positions", zap.Error(err))
	} else if stored.SafeZ != nil {
		lm.controller.SetSafeZ(*stored.SafeZ)
	}

	return lm
}

// Start starts the entire system
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting BladeLoaderCore")

	lm.setState(StateInitializing)

	go lm.wsHub.Run()

	if lm.simulator != nil {
		lm.setConnectedPort("simulator")
	} else if lm.config.Serial.Port != "" {
		// Best effort: the operator can connect later over the API.
		if err := lm.ConnectHardware(lm.config.Serial.Port); err != nil {
			lm.logger.Warn("Initial hardware connect failed",
				zap.String("port", lm.config.Serial.Port),
				zap.Error(err))
		}
	}

	if err := lm.startRESTServer(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)
	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Bool("simulated", lm.simulator != nil))

	return nil
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub)
	return lm.restServer.Start()
}

// ConnectHardware opens the serial link. In simulation mode it only
// reports the already-available simulator.
func (lm *LifecycleManager) ConnectHardware(port string) error {
	if lm.simulator != nil {
		lm.simulator.Reconnect()
		lm.setConnectedPort("simulator")
		lm.wsHub.Broadcast(websocket.NewConnectionMessage(true, "simulator"))
		return nil
	}

	if port == "" {
		port = lm.config.Serial.Port
	}
	if port == "" {
		return fmt.Errorf("no serial port configured")
	}

	if err := lm.serial.Connect(port); err != nil {
		return err
	}
	lm.setConnectedPort(port)
	lm.wsHub.Broadcast(websocket.NewConnectionMessage(true, port))

	// The arm keeps its pose across reconnects; read it back so the
	// controller does not plan from a stale position.
	if _, err := lm.controller.SyncPosition(); err != nil {
		lm.logger.Warn("Position sync after connect failed", zap.Error(err))
	}
	return nil
}

// DisconnectHardware closes the serial link.
func (lm *LifecycleManager) DisconnectHardware() error {
	if lm.simulator != nil {
		lm.simulator.Disconnect()
		lm.setConnectedPort("")
		lm.wsHub.Broadcast(websocket.NewConnectionMessage(false, ""))
		return nil
	}

	err := lm.serial.Disconnect()
	lm.setConnectedPort("")
	lm.wsHub.Broadcast(websocket.NewConnectionMessage(false, ""))
	return err
}

// ConnectionInfo reports the hardware link state.
func (lm *LifecycleManager) ConnectionInfo() (bool, string) {
	lm.stateMu.RLock()
	port := lm.connectedPort
	lm.stateMu.RUnlock()

	if lm.simulator != nil {
		return lm.simulator.IsConnected(), port
	}
	return lm.serial.IsConnected(), port
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		// A running cycle ends at its next step boundary.
		lm.cycle.Stop()

		if lm.restServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}

		if connected, _ := lm.ConnectionInfo(); connected {
			if err := lm.DisconnectHardware(); err != nil {
				lm.logger.Warn("Hardware disconnect failed", zap.Error(err))
			}
		}

		lm.positions.Close()
		lm.setState(StateStopped)
	})

	return shutdownErr
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	connected, port := lm.ConnectionInfo()

	lm.stateMu.RLock()
	state := lm.currentState
	lm.stateMu.RUnlock()

	return interfaces.SystemStatus{
		State:      state.String(),
		Connected:  connected,
		Port:       port,
		CycleState: string(lm.cycle.State()),
	}
}

// Controller returns the motion controller
func (lm *LifecycleManager) Controller() *controller.Controller {
	return lm.controller
}

// Cycle returns the pick-and-place workflow machine
func (lm *LifecycleManager) Cycle() *workflow.Machine {
	return lm.cycle
}

// Positions returns the taught-position store
func (lm *LifecycleManager) Positions() store.Store {
	return lm.positions
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	if err := ValidateTransition(lm.currentState, state); err != nil && lm.currentState != state {
		lm.logger.Warn("Forcing state transition", zap.Error(err))
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setConnectedPort(port string) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.connectedPort = port
}
