package motion

import (
	"errors"
	"testing"
)

func TestCommandWireFormats(t *testing.T) {
	z := 50.0
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"move xyz", MoveXYZ(100, 200, 10, 3000), "G1 F3000 X100.00 Y200.00 Z10.00"},
		{"move xy", MoveXY(-100, 200, 3000), "G1 F3000 X-100.00 Y200.00"},
		{"move z", Move{Z: &z, Feedrate: 1500}, "G1 F1500 Z50.00"},
		{"wait", Wait{}, "M400"},
		{"home", Home{}, "M1112"},
		{"suction on", Suction{Action: SuctionOn}, "M1000"},
		{"suction blow", Suction{Action: SuctionBlow}, "M1001"},
		{"suction release", Suction{Action: SuctionRelease}, "M1002"},
		{"suction off", Suction{Action: SuctionOff}, "M1003"},
		{"delay", Delay{Millis: 200}, "G4 P200"},
		{"module pen", SetModule{Module: ModulePen}, "M888 P0"},
		{"module pneumatic", SetModule{Module: ModulePneumatic}, "M888 P2"},
		{"motors on", Motors{Enable: true}, "M17"},
		{"motors off", Motors{Enable: false}, "M84"},
		{"get position", GetPosition{}, "M114"},
		{"encoder read", ReadEncoderPosition{}, "M895"},
		{"quickstop", EmergencyStop{}, "M410"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Wire(); got != tt.want {
				t.Errorf("Wire() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewMoveRequiresAxis(t *testing.T) {
	if _, err := NewMove(nil, nil, nil, 3000); !errors.Is(err, ErrNoAxis) {
		t.Errorf("NewMove with no axis: err = %v, want ErrNoAxis", err)
	}

	x := 10.0
	m, err := NewMove(&x, nil, nil, 3000)
	if err != nil {
		t.Fatalf("NewMove with X: %v", err)
	}
	if m.Wire() != "G1 F3000 X10.00" {
		t.Errorf("Wire() = %q", m.Wire())
	}
}

func TestMoveAxisPredicates(t *testing.T) {
	zOnly := MoveZ(50, 3000)
	if !zOnly.IsZOnly() || zOnly.ChangesXY() || !zOnly.ChangesZ() {
		t.Errorf("MoveZ predicates wrong: %+v", zOnly)
	}

	xyOnly := MoveXY(1, 2, 3000)
	if !xyOnly.IsXYOnly() || !xyOnly.ChangesXY() || xyOnly.ChangesZ() {
		t.Errorf("MoveXY predicates wrong: %+v", xyOnly)
	}

	full := MoveXYZ(1, 2, 3, 3000)
	if full.IsZOnly() || full.IsXYOnly() || !full.ChangesXY() || !full.ChangesZ() {
		t.Errorf("MoveXYZ predicates wrong: %+v", full)
	}
}
