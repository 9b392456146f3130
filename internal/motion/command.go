package motion

import (
	"errors"
	"fmt"
	"strings"
)

// Command is a single hardware instruction. Every variant maps to exactly
// one wire command; Wire is pure and total per variant. Commands are
// immutable values and carry no execution state.
type Command interface {
	Wire() string
}

// Move is a linear move (G1). At least one axis must be set; axes left
// nil are omitted from the wire command and the arm keeps their current
// value.
type Move struct {
	X        *float64
	Y        *float64
	Z        *float64
	Feedrate int
}

// ErrNoAxis is returned by NewMove when no axis is given.
var ErrNoAxis = errors.New("move requires at least one axis")

// NewMove builds a Move from optional axes.
func NewMove(x, y, z *float64, feedrate int) (Move, error) {
	if x == nil && y == nil && z == nil {
		return Move{}, ErrNoAxis
	}
	return Move{X: x, Y: y, Z: z, Feedrate: feedrate}, nil
}

// MoveXYZ moves all three axes.
func MoveXYZ(x, y, z float64, feedrate int) Move {
	return Move{X: &x, Y: &y, Z: &z, Feedrate: feedrate}
}

// MoveXY moves X and Y, keeping the current Z.
func MoveXY(x, y float64, feedrate int) Move {
	return Move{X: &x, Y: &y, Feedrate: feedrate}
}

// MoveZ moves Z only.
func MoveZ(z float64, feedrate int) Move {
	return Move{Z: &z, Feedrate: feedrate}
}

func (m Move) Wire() string {
	var b strings.Builder
	fmt.Fprintf(&b, "G1 F%d", m.Feedrate)
	if m.X != nil {
		fmt.Fprintf(&b, " X%.2f", *m.X)
	}
	if m.Y != nil {
		fmt.Fprintf(&b, " Y%.2f", *m.Y)
	}
	if m.Z != nil {
		fmt.Fprintf(&b, " Z%.2f", *m.Z)
	}
	return b.String()
}

// ChangesXY reports whether the move touches X or Y.
func (m Move) ChangesXY() bool { return m.X != nil || m.Y != nil }

// ChangesZ reports whether the move touches Z.
func (m Move) ChangesZ() bool { return m.Z != nil }

// IsZOnly reports whether the move touches Z and nothing else.
func (m Move) IsZOnly() bool { return m.Z != nil && m.X == nil && m.Y == nil }

// IsXYOnly reports whether the move touches XY and leaves Z alone.
func (m Move) IsXYOnly() bool { return (m.X != nil || m.Y != nil) && m.Z == nil }

// Wait blocks until all queued motion is complete (M400).
type Wait struct{}

func (Wait) Wire() string { return "M400" }

// Home homes the arm. M1112 is the arm-specific home command,
// not the generic full-stop code.
type Home struct{}

func (Home) Wire() string { return "M1112" }

// SuctionAction selects what the pneumatic pump does.
type SuctionAction string

const (
	SuctionOn      SuctionAction = "on"      // M1000: pump in, grab object
	SuctionBlow    SuctionAction = "blow"    // M1001: pump out, blow air
	SuctionRelease SuctionAction = "release" // M1002: neutral pressure
	SuctionOff     SuctionAction = "off"     // M1003: stop pump
)

// Suction controls the pneumatic pump.
type Suction struct {
	Action SuctionAction
}

func (s Suction) Wire() string {
	switch s.Action {
	case SuctionOn:
		return "M1000"
	case SuctionBlow:
		return "M1001"
	case SuctionRelease:
		return "M1002"
	default:
		return "M1003"
	}
}

// Delay dwells for the given number of milliseconds (G4).
type Delay struct {
	Millis int
}

func (d Delay) Wire() string { return fmt.Sprintf("G4 P%d", d.Millis) }

// Module identifies a front-end module for M888.
type Module int

const (
	ModulePen Module = iota
	ModuleLaser
	ModulePneumatic
	Module3DPrint
)

// SetModule selects the front-end module (M888 P0..P3).
type SetModule struct {
	Module Module
}

func (s SetModule) Wire() string { return fmt.Sprintf("M888 P%d", int(s.Module)) }

// Motors enables (M17) or disables (M84) the stepper motors.
// Disabled motors put the arm in teach mode.
type Motors struct {
	Enable bool
}

func (m Motors) Wire() string {
	if m.Enable {
		return "M17"
	}
	return "M84"
}

// GetPosition queries the firmware's tracked position (M114).
type GetPosition struct{}

func (GetPosition) Wire() string { return "M114" }

// ReadEncoderPosition reads the magnetic encoders and converts to
// Cartesian coordinates (M895). This is the only reliable position read
// after the arm was moved by hand in teach mode.
type ReadEncoderPosition struct{}

func (ReadEncoderPosition) Wire() string { return "M895" }

// EmergencyStop is a quickstop (M410) that can be resumed.
// M112 would require a full re-init and is deliberately not used.
type EmergencyStop struct{}

func (EmergencyStop) Wire() string { return "M410" }
