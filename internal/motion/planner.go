package motion

import "fmt"

// ValidationError reports a target outside the workspace. It is raised
// before any command is emitted, so a failed plan never moves the arm.
type ValidationError struct {
	Target Position
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("position invalid: %s", e.Reason)
}

// Defaults used when a Planner field is left zero by the caller.
const (
	DefaultSafeZ          = 50.0
	DefaultFeedrate       = 3000
	DefaultVacuumDelayMs  = 200
	DefaultReleaseDelayMs = 100
)

// Planner converts movement goals into command sequences that satisfy
// the safety invariants:
//
//   - Z is lifted to SafeZ before any XY motion (safe moves)
//   - every move is followed by an M400 wait
//   - every target is validated against the workspace first
//
// Planner is stateless apart from its configuration and safe to share.
type Planner struct {
	SafeZ     float64
	Feedrate  int
	Workspace WorkspaceLimits
}

// NewPlanner returns a planner with the given safe height and feedrate
// over the default workspace.
func NewPlanner(safeZ float64, feedrate int) *Planner {
	return &Planner{
		SafeZ:     safeZ,
		Feedrate:  feedrate,
		Workspace: DefaultWorkspace,
	}
}

func (p *Planner) validate(pos Position) error {
	if ok, reason := p.Workspace.Validate(pos); !ok {
		return &ValidationError{Target: pos, Reason: reason}
	}
	return nil
}

// PlanDirectMove plans a single G1 to the target plus a wait.
// There is no lift guarantee; use PlanSafeMove when Z may be low.
func (p *Planner) PlanDirectMove(target Position) ([]Command, error) {
	if err := p.validate(target); err != nil {
		return nil, err
	}
	return []Command{
		MoveXYZ(target.X, target.Y, target.Z, p.Feedrate),
		Wait{},
	}, nil
}

// PlanSafeMove plans Z-up, then XY, then Z-down:
//
//  1. if current.Z < SafeZ, lift Z only to SafeZ
//  2. if XY differs, move XY only (Z stays at the lifted height)
//  3. if the resulting Z differs from target.Z, lower to target.Z
//
// Each phase is followed by a wait. A no-op move still returns a single
// wait so the sequence is never empty.
func (p *Planner) PlanSafeMove(current, target Position) ([]Command, error) {
	if err := p.validate(target); err != nil {
		return nil, err
	}

	var cmds []Command

	if current.Z < p.SafeZ {
		cmds = append(cmds, MoveZ(p.SafeZ, p.Feedrate), Wait{})
	}

	if current.X != target.X || current.Y != target.Y {
		cmds = append(cmds, MoveXY(target.X, target.Y, p.Feedrate), Wait{})
	}

	// Z after the lift phase, whether or not a lift was emitted.
	moveZ := current.Z
	if moveZ < p.SafeZ {
		moveZ = p.SafeZ
	}
	if target.Z != moveZ {
		cmds = append(cmds, MoveZ(target.Z, p.Feedrate), Wait{})
	}

	if len(cmds) == 0 {
		cmds = append(cmds, Wait{})
	}
	return cmds, nil
}

// PlanPickSequence plans a complete pick:
// safe-move above the pick point at SafeZ, suction on, lower, dwell for
// the vacuum to establish, lift back to SafeZ. Suction is switched on
// before lowering; lowering onto an unpowered cup risks slip.
func (p *Planner) PlanPickSequence(current, pick Position, vacuumDelayMs int) ([]Command, error) {
	if err := p.validate(pick); err != nil {
		return nil, err
	}
	if vacuumDelayMs <= 0 {
		vacuumDelayMs = DefaultVacuumDelayMs
	}

	abovePick := pick.WithZ(p.SafeZ)
	cmds, err := p.PlanSafeMove(current, abovePick)
	if err != nil {
		return nil, err
	}

	cmds = append(cmds,
		Suction{Action: SuctionOn},
		MoveZ(pick.Z, p.Feedrate),
		Wait{},
		Delay{Millis: vacuumDelayMs},
		MoveZ(p.SafeZ, p.Feedrate),
		Wait{},
	)
	return cmds, nil
}

// PlanPlaceSequence plans a complete place:
// safe-move above the place point at SafeZ, lower, blow to release,
// dwell, pump off, lift back to SafeZ.
func (p *Planner) PlanPlaceSequence(current, place Position, releaseDelayMs int) ([]Command, error) {
	if err := p.validate(place); err != nil {
		return nil, err
	}
	if releaseDelayMs <= 0 {
		releaseDelayMs = DefaultReleaseDelayMs
	}

	abovePlace := place.WithZ(p.SafeZ)
	cmds, err := p.PlanSafeMove(current, abovePlace)
	if err != nil {
		return nil, err
	}

	cmds = append(cmds,
		MoveZ(place.Z, p.Feedrate),
		Wait{},
		Suction{Action: SuctionBlow},
		Delay{Millis: releaseDelayMs},
		Suction{Action: SuctionOff},
		MoveZ(p.SafeZ, p.Feedrate),
		Wait{},
	)
	return cmds, nil
}

// VerifySafeLift checks that a sequence starting below safeZ lifts Z to
// at least safeZ before the first XY-changing move. Usable as a test
// oracle against any planner output.
func VerifySafeLift(cmds []Command, start Position, safeZ float64) (bool, string) {
	if start.Z >= safeZ {
		return true, "already at safe Z"
	}

	firstXY := -1
	firstLift := -1
	for i, cmd := range cmds {
		m, ok := cmd.(Move)
		if !ok {
			continue
		}
		if m.ChangesXY() && firstXY == -1 {
			firstXY = i
		}
		if m.IsZOnly() && firstLift == -1 && *m.Z >= safeZ {
			firstLift = i
		}
	}

	if firstXY != -1 {
		if firstLift == -1 {
			return false, "XY motion without prior Z lift to safe height"
		}
		if firstLift > firstXY {
			return false, fmt.Sprintf("Z lift (idx %d) after XY motion (idx %d)", firstLift, firstXY)
		}
	}
	return true, "OK"
}

// VerifyWaitBetweenMoves checks that no two moves are adjacent without an
// intervening wait. [Move, Move] is invalid; [Move, Wait, Move] is fine.
func VerifyWaitBetweenMoves(cmds []Command) (bool, string) {
	prevWasMove := false
	for i, cmd := range cmds {
		switch cmd.(type) {
		case Move:
			if prevWasMove {
				return false, fmt.Sprintf("consecutive moves at index %d and %d without wait", i-1, i)
			}
			prevWasMove = true
		default:
			prevWasMove = false
		}
	}
	return true, "OK"
}
