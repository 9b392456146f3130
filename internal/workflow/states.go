package workflow

// State names one node in the pick-and-place cycle graph. The graph is
// mostly linear; the only branch is after LiftingFromPlace, which loops
// back to MovingToPick while hooks remain.
type State string

const (
	StateIdle              State = "idle"
	StateMovingToPick      State = "moving_to_pick"
	StateLoweringToPick    State = "lowering_to_pick"
	StateActivatingSuction State = "activating_suction"
	StateLiftingFromPick   State = "lifting_from_pick"
	StateMovingToPlace     State = "moving_to_place"
	StateLoweringToPlace   State = "lowering_to_place"
	StateReleasing         State = "releasing"
	StateLiftingFromPlace  State = "lifting_from_place"
	StateComplete          State = "complete"
	StateErrored           State = "error"
)

// transitions is the fixed advance table. LiftingFromPlace is handled in
// code because it branches on remaining hooks.
var transitions = map[State]State{
	StateMovingToPick:      StateLoweringToPick,
	StateLoweringToPick:    StateActivatingSuction,
	StateActivatingSuction: StateLiftingFromPick,
	StateLiftingFromPick:   StateMovingToPlace,
	StateMovingToPlace:     StateLoweringToPlace,
	StateLoweringToPlace:   StateReleasing,
	StateReleasing:         StateLiftingFromPlace,
}

// Terminal reports whether the machine has nowhere to go without a reset.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateErrored
}
