// Package controller is the high-level facade over planner, executor and
// transport. It owns the single live arm state and gates every operation
// on its preconditions.
package controller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/KevinKickass/BladeLoaderCore/internal/executor"
	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/KevinKickass/BladeLoaderCore/internal/transport"
	"go.uber.org/zap"
)

// RestPose is where the arm sits after homing.
var RestPose = motion.Position{X: 0, Y: 300, Z: 0}

// Sensor responses look like "X:100.00 Y:200.00 Z:50.00"; labels are
// matched case-insensitively and whitespace after the colon is
// tolerated.
var (
	sensorX = regexp.MustCompile(`(?i)X[:\s]*([-\d.]+)`)
	sensorY = regexp.MustCompile(`(?i)Y[:\s]*([-\d.]+)`)
	sensorZ = regexp.MustCompile(`(?i)Z[:\s]*([-\d.]+)`)
)

// Status is the externally visible arm state snapshot.
type Status struct {
	Position      motion.Position `json:"position"`
	Homed         bool            `json:"homed"`
	CarryingBlade bool            `json:"carrying_blade"`
	SuctionActive bool            `json:"suction_active"`
	MotorsEnabled bool            `json:"motors_enabled"`
	SafeZ         float64         `json:"safe_z"`
}

// Config carries the controller's motion tunables.
type Config struct {
	SafeZ          float64
	Feedrate       int
	VacuumDelayMs  int
	ReleaseDelayMs int
}

// Controller owns the live arm state. All movement goes through the
// planner so the safety invariants hold, and every command sent lands in
// the executor's audit history. State is mutated only after the command
// sequence for an operation has executed.
type Controller struct {
	logger    *zap.Logger
	transport transport.Transport
	queue     *executor.Queue
	planner   *motion.Planner

	vacuumDelayMs  int
	releaseDelayMs int

	mu            sync.Mutex
	position      motion.Position
	homed         bool
	carryingBlade bool
	suctionActive bool
	motorsEnabled bool
}

// New builds a controller over the given transport. The arm starts
// unhomed at the assumed rest pose with motors enabled.
func New(t transport.Transport, cfg Config, logger *zap.Logger) *Controller {
	if cfg.SafeZ == 0 {
		cfg.SafeZ = motion.DefaultSafeZ
	}
	if cfg.Feedrate == 0 {
		cfg.Feedrate = motion.DefaultFeedrate
	}
	if cfg.VacuumDelayMs == 0 {
		cfg.VacuumDelayMs = motion.DefaultVacuumDelayMs
	}
	if cfg.ReleaseDelayMs == 0 {
		cfg.ReleaseDelayMs = motion.DefaultReleaseDelayMs
	}

	return &Controller{
		logger:         logger,
		transport:      t,
		queue:          executor.NewQueue(),
		planner:        motion.NewPlanner(cfg.SafeZ, cfg.Feedrate),
		vacuumDelayMs:  cfg.VacuumDelayMs,
		releaseDelayMs: cfg.ReleaseDelayMs,
		position:       RestPose,
		motorsEnabled:  true,
	}
}

// Planner exposes the shared motion planner, configured with the
// controller's safe height and feedrate.
func (c *Controller) Planner() *motion.Planner { return c.planner }

// Queue exposes the shared command queue so the workflow layer records
// into the same audit history.
func (c *Controller) Queue() *executor.Queue { return c.queue }

// Transport returns the transport this controller drives.
func (c *Controller) Transport() transport.Transport { return c.transport }

// Home homes the arm (M1112). If already homed and sitting below safe Z
// it lifts first so the home path cannot sweep through fixtures. On
// success the tracked position is the rest pose, homed is set and any
// carried blade is considered lost.
func (c *Controller) Home() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.homed && c.position.Z < c.planner.SafeZ {
		c.logger.Info("Lifting to safe Z before homing", zap.Float64("safe_z", c.planner.SafeZ))
		c.queue.Enqueue(motion.MoveZ(c.planner.SafeZ, c.planner.Feedrate))
		c.queue.Enqueue(motion.Wait{})
		c.queue.ExecuteAll(c.transport)
	}

	c.logger.Info("Homing", zap.String("rest_pose", RestPose.String()))
	c.queue.Enqueue(motion.SetModule{Module: motion.ModulePneumatic})
	c.queue.Enqueue(motion.Home{})
	c.queue.Enqueue(motion.Wait{})
	c.queue.ExecuteAll(c.transport)

	c.position = RestPose
	c.homed = true
	c.carryingBlade = false
	c.logger.Info("Homing complete")
	return nil
}

// MoveTo is a direct move to target. No lift guarantee; use SafeMoveTo
// when Z may be low or a blade is carried.
func (c *Controller) MoveTo(target motion.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireHomed("move"); err != nil {
		return err
	}

	cmds, err := c.planner.PlanDirectMove(target)
	if err != nil {
		return err
	}
	c.queue.EnqueueMany(cmds)
	c.queue.ExecuteAll(c.transport)

	c.position = target
	return nil
}

// SafeMoveTo lifts Z to the safe height before any XY motion, then
// lowers to the target.
func (c *Controller) SafeMoveTo(target motion.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireHomed("safe move"); err != nil {
		return err
	}

	cmds, err := c.planner.PlanSafeMove(c.position, target)
	if err != nil {
		return err
	}
	c.queue.EnqueueMany(cmds)
	c.queue.ExecuteAll(c.transport)

	c.position = target
	return nil
}

// Jog moves a single axis by the given distance through the direct-move
// path, so the resulting position is still workspace-validated.
func (c *Controller) Jog(axis string, distance float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireHomed("jog"); err != nil {
		return err
	}

	target := c.position
	switch strings.ToLower(axis) {
	case "x":
		target.X += distance
	case "y":
		target.Y += distance
	case "z":
		target.Z += distance
	default:
		return fmt.Errorf("invalid axis %q", axis)
	}

	cmds, err := c.planner.PlanDirectMove(target)
	if err != nil {
		return err
	}
	c.queue.EnqueueMany(cmds)
	c.queue.ExecuteAll(c.transport)

	c.position = target
	return nil
}

// PickBlade runs the full pick sequence at pos. On success the arm is
// above the pick point at safe Z, carrying with suction active.
func (c *Controller) PickBlade(pos motion.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireHomed("pick"); err != nil {
		return err
	}

	cmds, err := c.planner.PlanPickSequence(c.position, pos, c.vacuumDelayMs)
	if err != nil {
		return err
	}
	c.logger.Info("Picking blade", zap.String("target", pos.String()))
	c.queue.EnqueueMany(cmds)
	c.queue.ExecuteAll(c.transport)

	c.position = pos.WithZ(c.planner.SafeZ)
	c.carryingBlade = true
	c.suctionActive = true
	return nil
}

// PlaceBlade runs the full place sequence at pos. Fails with a
// PreconditionError when no blade is carried; nothing is sent in that
// case.
func (c *Controller) PlaceBlade(pos motion.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireHomed("place"); err != nil {
		return err
	}
	if !c.carryingBlade {
		return &PreconditionError{Op: "place", Reason: "not carrying a blade"}
	}

	cmds, err := c.planner.PlanPlaceSequence(c.position, pos, c.releaseDelayMs)
	if err != nil {
		return err
	}
	c.logger.Info("Placing blade", zap.String("target", pos.String()))
	c.queue.EnqueueMany(cmds)
	c.queue.ExecuteAll(c.transport)

	c.position = pos.WithZ(c.planner.SafeZ)
	c.carryingBlade = false
	c.suctionActive = false
	return nil
}

// SuctionOn starts the pump (M1000).
func (c *Controller) SuctionOn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue.Enqueue(motion.Suction{Action: motion.SuctionOn})
	c.queue.ExecuteAll(c.transport)
	c.suctionActive = true
	return nil
}

// SuctionOff releases pressure and stops the pump (M1002, M1003).
func (c *Controller) SuctionOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.suctionOffLocked()
	return nil
}

func (c *Controller) suctionOffLocked() {
	c.queue.Enqueue(motion.Suction{Action: motion.SuctionRelease})
	c.queue.Enqueue(motion.Suction{Action: motion.SuctionOff})
	c.queue.ExecuteAll(c.transport)
	c.suctionActive = false
}

// MotorsOff de-energizes the steppers (teach mode). The arm can then be
// moved by hand and the tracked position is stale until MotorsOn
// re-syncs it.
func (c *Controller) MotorsOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.carryingBlade {
		c.logger.Warn("Entering teach mode while carrying a blade")
	}
	c.logger.Info("Motors off, entering teach mode")

	c.queue.Enqueue(motion.Motors{Enable: false})
	c.queue.ExecuteAll(c.transport)
	c.motorsEnabled = false
	return nil
}

// MotorsOn re-energizes the steppers and immediately re-reads the true
// position from the encoders. Skipping the read after teach mode would
// leave motion planning working from a stale position.
func (c *Controller) MotorsOn() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motorsOnLocked()
}

func (c *Controller) motorsOnLocked() error {
	c.logger.Info("Motors on, syncing position")
	c.queue.Enqueue(motion.Motors{Enable: true})
	c.queue.ExecuteAll(c.transport)
	c.motorsEnabled = true

	_, err := c.readPositionLocked()
	return err
}

// SyncPosition reads the true position from the encoders (M895) and
// overwrites the tracked position. Call after teach mode and before
// starting cycles.
func (c *Controller) SyncPosition() (motion.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readPositionLocked()
}

func (c *Controller) readPositionLocked() (motion.Position, error) {
	if !c.transport.IsConnected() {
		return c.position, &PreconditionError{Op: "sync position", Reason: "transport not connected"}
	}

	result := c.queue.ExecuteImmediate(motion.ReadEncoderPosition{}, c.transport)
	if !result.Success {
		return c.position, fmt.Errorf("encoder read failed: %s", result.Response)
	}

	pos, err := parseSensorPosition(result.Response)
	if err != nil {
		// Best effort: keep the stale position rather than fail the caller.
		c.logger.Warn("Sensor response unparseable, keeping stale position",
			zap.String("response", result.Response),
			zap.String("stale", c.position.String()))
		return c.position, nil
	}

	c.position = pos
	c.logger.Info("Position synced", zap.String("position", pos.String()))
	return pos, nil
}

func parseSensorPosition(response string) (motion.Position, error) {
	xm := sensorX.FindStringSubmatch(response)
	ym := sensorY.FindStringSubmatch(response)
	zm := sensorZ.FindStringSubmatch(response)
	if xm == nil || ym == nil || zm == nil {
		return motion.Position{}, &ParseError{Response: response}
	}

	x, errX := strconv.ParseFloat(xm[1], 64)
	y, errY := strconv.ParseFloat(ym[1], 64)
	z, errZ := strconv.ParseFloat(zm[1], 64)
	if errX != nil || errY != nil || errZ != nil {
		return motion.Position{}, &ParseError{Response: response}
	}
	return motion.Position{X: x, Y: y, Z: z}, nil
}

// EmergencyStop sends the quickstop through the transport's lock-free
// path, then best-effort shuts the suction off. It never fails.
func (c *Controller) EmergencyStop() executor.Result {
	c.logger.Warn("EMERGENCY STOP")
	result := c.queue.ExecuteEmergency(motion.EmergencyStop{}, c.transport)

	c.mu.Lock()
	c.suctionOffLocked()
	c.mu.Unlock()

	return result
}

// Status returns a snapshot of the tracked arm state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Position:      c.position,
		Homed:         c.homed,
		CarryingBlade: c.carryingBlade,
		SuctionActive: c.suctionActive,
		MotorsEnabled: c.motorsEnabled,
		SafeZ:         c.planner.SafeZ,
	}
}

// Position returns the current tracked position.
func (c *Controller) Position() motion.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// History returns the command audit history, most recent last.
func (c *Controller) History(limit int) []executor.Result {
	return c.queue.History(limit)
}

// SafeZ returns the configured safe height.
func (c *Controller) SafeZ() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.planner.SafeZ
}

// SetSafeZ updates the planner's safe height.
func (c *Controller) SetSafeZ(z float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.planner.SafeZ = z
	c.logger.Info("Safe Z updated", zap.Float64("safe_z", z))
}

// requireHomed gates movement. An unhomed arm is refused outright.
// Disabled motors are not a failure: the controller re-enables them,
// which re-syncs the position first.
func (c *Controller) requireHomed(op string) error {
	if !c.homed {
		return &PreconditionError{Op: op, Reason: "arm not homed"}
	}
	if !c.motorsEnabled {
		c.logger.Warn("Motors disabled, re-enabling and syncing before move", zap.String("op", op))
		if err := c.motorsOnLocked(); err != nil {
			return err
		}
	}
	return nil
}
