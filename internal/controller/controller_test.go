package controller

import (
	"errors"
	"strings"
	"testing"

	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/KevinKickass/BladeLoaderCore/internal/transport"
	"go.uber.org/zap"
)

func newTestController() (*Controller, *transport.Simulator) {
	sim := transport.NewSimulator()
	c := New(sim, Config{SafeZ: 50, Feedrate: 3000}, zap.NewNop())
	return c, sim
}

func TestFullPickPlaceScenario(t *testing.T) {
	c, sim := newTestController()

	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if err := c.PickBlade(motion.Position{X: 100, Y: 200, Z: 10}); err != nil {
		t.Fatalf("PickBlade: %v", err)
	}
	if !c.Status().CarryingBlade {
		t.Error("not carrying after pick")
	}
	if err := c.PlaceBlade(motion.Position{X: -100, Y: 200, Z: 10}); err != nil {
		t.Fatalf("PlaceBlade: %v", err)
	}

	st := c.Status()
	if st.CarryingBlade {
		t.Error("still carrying after place")
	}
	if st.SuctionActive {
		t.Error("suction still active after place")
	}
	if st.Position != (motion.Position{X: -100, Y: 200, Z: 50}) {
		t.Errorf("final position = %v, want (-100, 200, 50)", st.Position)
	}

	// History order: home, suction on (pick), suction release/off (place).
	wires := strings.Join(sim.SentCommands(), "\n")
	homeIdx := strings.Index(wires, "M1112")
	onIdx := strings.Index(wires, "M1000")
	offIdx := strings.Index(wires, "M1003")
	if offIdx == -1 {
		offIdx = strings.Index(wires, "M1002")
	}
	if homeIdx == -1 || onIdx == -1 || offIdx == -1 {
		t.Fatalf("missing commands in:\n%s", wires)
	}
	if !(homeIdx < onIdx && onIdx < offIdx) {
		t.Errorf("command order wrong (home=%d on=%d off=%d):\n%s", homeIdx, onIdx, offIdx, wires)
	}
}

func TestPlaceWithoutPickIsRefused(t *testing.T) {
	c, sim := newTestController()
	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	before := sim.CommandCount()

	err := c.PlaceBlade(motion.Position{X: -100, Y: 200, Z: 10})

	var perr *PreconditionError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PreconditionError", err)
	}
	if sim.CommandCount() != before {
		t.Errorf("commands sent despite refused place: %v", sim.SentCommands()[before:])
	}
}

func TestMoveBeforeHomeIsRefused(t *testing.T) {
	c, sim := newTestController()

	err := c.MoveTo(motion.Position{X: 0, Y: 300, Z: 50})

	var perr *PreconditionError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PreconditionError", err)
	}
	if sim.CommandCount() != 0 {
		t.Errorf("commands sent before homing: %v", sim.SentCommands())
	}
}

func TestUnreachableTargetIsRefusedBeforeSending(t *testing.T) {
	c, sim := newTestController()
	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	before := sim.CommandCount()

	// Reach of (300, 350) is ~461mm against a 400mm limit.
	err := c.MoveTo(motion.Position{X: 300, Y: 350, Z: 50})

	var verr *motion.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "reach") {
		t.Errorf("error %q does not mention reach", err.Error())
	}
	if sim.CommandCount() != before {
		t.Errorf("commands sent for invalid target: %v", sim.SentCommands()[before:])
	}
}

func TestHomeIsIdempotent(t *testing.T) {
	c, _ := newTestController()

	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	first := c.Status()

	if err := c.Home(); err != nil {
		t.Fatalf("second Home: %v", err)
	}
	second := c.Status()

	if first != second {
		t.Errorf("state changed across re-home:\n first=%+v\nsecond=%+v", first, second)
	}
	if !second.Homed || second.CarryingBlade {
		t.Errorf("state after home: %+v", second)
	}
}

func TestHomeLiftsFirstWhenLow(t *testing.T) {
	c, sim := newTestController()
	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if err := c.MoveTo(motion.Position{X: 0, Y: 300, Z: 10}); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	sim.ClearSent()

	if err := c.Home(); err != nil {
		t.Fatalf("re-Home: %v", err)
	}

	sent := sim.SentCommands()
	if len(sent) == 0 || sent[0] != "G1 F3000 Z50.00" {
		t.Errorf("re-home below safe Z did not lift first: %v", sent)
	}
}

func TestTeachModeResync(t *testing.T) {
	c, sim := newTestController()
	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}

	if err := c.MotorsOff(); err != nil {
		t.Fatalf("MotorsOff: %v", err)
	}
	if c.Status().MotorsEnabled {
		t.Error("motors still enabled")
	}

	// The arm is moved by hand while motors are off.
	sim.SetPosition(transport.SimPosition{X: 42, Y: 250, Z: 33})

	if err := c.MotorsOn(); err != nil {
		t.Fatalf("MotorsOn: %v", err)
	}

	got := c.Position()
	if got != (motion.Position{X: 42, Y: 250, Z: 33}) {
		t.Errorf("position after re-sync = %v, want the hand-moved position", got)
	}
}

func TestMotorsDisabledAutoRecovery(t *testing.T) {
	c, sim := newTestController()
	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if err := c.MotorsOff(); err != nil {
		t.Fatalf("MotorsOff: %v", err)
	}
	sim.SetPosition(transport.SimPosition{X: 10, Y: 200, Z: 0})
	sim.ClearSent()

	// A move with motors off must not fail: it re-enables and syncs first.
	if err := c.SafeMoveTo(motion.Position{X: 0, Y: 300, Z: 50}); err != nil {
		t.Fatalf("SafeMoveTo with motors off: %v", err)
	}

	sent := sim.SentCommands()
	if len(sent) < 2 || sent[0] != "M17" || sent[1] != "M895" {
		t.Errorf("auto-recovery did not enable motors and sync first: %v", sent)
	}
	if !c.Status().MotorsEnabled {
		t.Error("motors not enabled after auto-recovery")
	}
}

func TestSyncPositionFallsBackOnGarbage(t *testing.T) {
	c, _ := newTestController()
	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}

	pos, err := parseSensorPosition("whirr clunk\nok")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if pos != (motion.Position{}) {
		t.Errorf("parse returned %v for garbage", pos)
	}

	// Tolerant parsing: lowercase labels and extra whitespace.
	pos, err = parseSensorPosition("x: 1.50 y:2.00 z:  -3.25\nok")
	if err != nil {
		t.Fatalf("tolerant parse failed: %v", err)
	}
	if pos != (motion.Position{X: 1.5, Y: 2, Z: -3.25}) {
		t.Errorf("parsed = %v", pos)
	}
}

func TestEmergencyStopNeverFailsAndKillsSuction(t *testing.T) {
	c, sim := newTestController()
	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if err := c.PickBlade(motion.Position{X: 100, Y: 200, Z: 10}); err != nil {
		t.Fatalf("PickBlade: %v", err)
	}

	result := c.EmergencyStop()
	if !result.Success {
		t.Errorf("emergency stop result: %+v", result)
	}
	if result.Wire != "M410" {
		t.Errorf("emergency wire = %q, want M410", result.Wire)
	}
	if c.Status().SuctionActive {
		t.Error("suction still active after emergency stop")
	}
	if got := sim.SuctionState(); got != "off" {
		t.Errorf("simulated pump state = %q, want off", got)
	}
}

func TestJogValidatesResult(t *testing.T) {
	c, _ := newTestController()
	if err := c.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}

	if err := c.Jog("y", 50); err != nil {
		t.Fatalf("Jog: %v", err)
	}
	if got := c.Position(); got != (motion.Position{X: 0, Y: 350, Z: 0}) {
		t.Errorf("position after jog = %v", got)
	}

	// Jogging past the workspace edge is refused.
	if err := c.Jog("y", 200); err == nil {
		t.Error("jog past workspace edge accepted")
	}
	if err := c.Jog("w", 10); err == nil {
		t.Error("invalid axis accepted")
	}
}
