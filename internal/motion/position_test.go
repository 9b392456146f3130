package motion

import (
	"encoding/json"
	"math"
	"testing"
)

func TestPositionDistances(t *testing.T) {
	a := Position{X: 0, Y: 0, Z: 0}
	b := Position{X: 3, Y: 4, Z: 0}

	if got := a.DistanceTo(b); math.Abs(got-5) > 1e-9 {
		t.Errorf("DistanceTo = %f, want 5", got)
	}

	c := Position{X: 3, Y: 4, Z: 100}
	if got := a.XYDistanceTo(c); math.Abs(got-5) > 1e-9 {
		t.Errorf("XYDistanceTo = %f, want 5 (Z must be ignored)", got)
	}
}

func TestPositionReach(t *testing.T) {
	p := Position{X: 300, Y: 400, Z: -50}
	if got := p.Reach(); math.Abs(got-500) > 1e-9 {
		t.Errorf("Reach = %f, want 500", got)
	}
}

func TestPositionWithAxisReplaced(t *testing.T) {
	p := Position{X: 1, Y: 2, Z: 3}

	q := p.WithZ(50)
	if q != (Position{X: 1, Y: 2, Z: 50}) {
		t.Errorf("WithZ = %+v", q)
	}
	r := p.WithXY(-7, 8)
	if r != (Position{X: -7, Y: 8, Z: 3}) {
		t.Errorf("WithXY = %+v", r)
	}
	// Original is untouched.
	if p != (Position{X: 1, Y: 2, Z: 3}) {
		t.Errorf("original mutated: %+v", p)
	}
}

func TestPositionJSONRoundTrip(t *testing.T) {
	positions := []Position{
		{X: 0, Y: 300, Z: 0},
		{X: -123.456, Y: 0.001, Z: -99.99},
		{X: 1e-12, Y: 450, Z: 200},
	}

	for _, p := range positions {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal %v: %v", p, err)
		}
		var q Position
		if err := json.Unmarshal(data, &q); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if p != q {
			t.Errorf("round trip %v -> %s -> %v", p, data, q)
		}
	}
}

func TestWorkspaceValidate(t *testing.T) {
	tests := []struct {
		name  string
		pos   Position
		valid bool
	}{
		{"home", Position{X: 0, Y: 300, Z: 0}, true},
		{"x too low", Position{X: -301, Y: 300, Z: 0}, false},
		{"y behind base", Position{X: 0, Y: 99, Z: 0}, false},
		{"z too high", Position{X: 0, Y: 300, Z: 201}, false},
		{"reach exceeded", Position{X: 300, Y: 350, Z: 50}, false},
		{"corner in reach", Position{X: 100, Y: 200, Z: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := DefaultWorkspace.Validate(tt.pos)
			if ok != tt.valid {
				t.Errorf("Validate(%v) = %v (%s), want %v", tt.pos, ok, reason, tt.valid)
			}
			if ok && reason != "OK" {
				t.Errorf("valid position must report OK, got %q", reason)
			}
		})
	}
}
