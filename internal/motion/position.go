package motion

import (
	"fmt"
	"math"
)

// Position is an immutable 3D point in millimeters.
//
// Coordinate system (from the arm documentation):
//   - X: left/right (0 = center)
//   - Y: forward (300 = home, cannot go behind the base)
//   - Z: up/down (0 = home height)
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DistanceTo returns the Euclidean distance to another position.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// XYDistanceTo returns the distance in the XY plane only (ignores Z).
func (p Position) XYDistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Reach returns the distance from the origin in the XY plane (arm reach).
func (p Position) Reach() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y)
}

// WithZ returns a copy with a different Z.
func (p Position) WithZ(z float64) Position {
	return Position{X: p.X, Y: p.Y, Z: z}
}

// WithXY returns a copy with different X and Y.
func (p Position) WithXY(x, y float64) Position {
	return Position{X: x, Y: y, Z: p.Z}
}

func (p Position) String() string {
	return fmt.Sprintf("X=%.1f Y=%.1f Z=%.1f", p.X, p.Y, p.Z)
}

// WorkspaceLimits are the hardware boundaries of the arm.
// Exceeding them can damage the arm.
type WorkspaceLimits struct {
	XMin     float64 `json:"x_min"`
	XMax     float64 `json:"x_max"`
	YMin     float64 `json:"y_min"`
	YMax     float64 `json:"y_max"`
	ZMin     float64 `json:"z_min"`
	ZMax     float64 `json:"z_max"`
	MaxReach float64 `json:"max_reach"`
}

// Validate checks whether pos is inside the workspace.
// Returns (true, "OK") when valid, otherwise the violated bound.
func (w WorkspaceLimits) Validate(pos Position) (bool, string) {
	if pos.X < w.XMin || pos.X > w.XMax {
		return false, fmt.Sprintf("X=%.1f out of range [%g, %g]", pos.X, w.XMin, w.XMax)
	}
	if pos.Y < w.YMin || pos.Y > w.YMax {
		return false, fmt.Sprintf("Y=%.1f out of range [%g, %g]", pos.Y, w.YMin, w.YMax)
	}
	if pos.Z < w.ZMin || pos.Z > w.ZMax {
		return false, fmt.Sprintf("Z=%.1f out of range [%g, %g]", pos.Z, w.ZMin, w.ZMax)
	}
	if reach := pos.Reach(); reach > w.MaxReach {
		return false, fmt.Sprintf("reach=%.1fmm exceeds max %gmm", reach, w.MaxReach)
	}
	return true, "OK"
}

// DefaultWorkspace is the safe envelope of the physical arm.
// Standard reach is ~320mm but usable space varies with mounting,
// so the reach limit is set conservatively high.
var DefaultWorkspace = WorkspaceLimits{
	XMin:     -300,
	XMax:     300,
	YMin:     100, // cannot go behind the base
	YMax:     450,
	ZMin:     -100, // allow lower for blade picking
	ZMax:     200,
	MaxReach: 400,
}
