package interfaces

import (
	"context"

	"github.com/KevinKickass/BladeLoaderCore/internal/config"
	"github.com/KevinKickass/BladeLoaderCore/internal/controller"
	"github.com/KevinKickass/BladeLoaderCore/internal/store"
	"github.com/KevinKickass/BladeLoaderCore/internal/workflow"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State      string `json:"state"`
	Connected  bool   `json:"connected"`
	Port       string `json:"port,omitempty"`
	CycleState string `json:"cycle_state"`
}

type LifecycleManager interface {
	Config() *config.Config
	Controller() *controller.Controller
	Cycle() *workflow.Machine
	Positions() store.Store

	ConnectHardware(port string) error
	DisconnectHardware() error
	ConnectionInfo() (connected bool, port string)

	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
