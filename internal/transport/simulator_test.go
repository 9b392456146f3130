package transport

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestSimulatorTracksMoves(t *testing.T) {
	sim := NewSimulator()

	resp, err := sim.Send("G1 F3000 X100.00 Y200.00 Z10.00")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp != "ok" {
		t.Errorf("response = %q, want ok", resp)
	}
	if got := sim.Position(); got != (SimPosition{X: 100, Y: 200, Z: 10}) {
		t.Errorf("position = %+v", got)
	}

	// Z-only move keeps XY.
	if _, err := sim.Send("G1 F3000 Z50.00"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := sim.Position(); got != (SimPosition{X: 100, Y: 200, Z: 50}) {
		t.Errorf("position after Z move = %+v", got)
	}
}

func TestSimulatorHomeResetsPosition(t *testing.T) {
	sim := NewSimulator()
	sim.SetPosition(SimPosition{X: 50, Y: 150, Z: -20})

	if _, err := sim.Send("M1112"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := sim.Position(); got != (SimPosition{X: 0, Y: 300, Z: 0}) {
		t.Errorf("position after home = %+v", got)
	}
}

func TestSimulatorEncoderRead(t *testing.T) {
	sim := NewSimulator()
	sim.SetPosition(SimPosition{X: 12.34, Y: 250, Z: 42})

	resp, err := sim.Send("M895")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(resp, "X:12.34") || !strings.Contains(resp, "Y:250.00") || !strings.Contains(resp, "Z:42.00") {
		t.Errorf("M895 response = %q", resp)
	}
	if !strings.Contains(strings.ToLower(resp), "ok") {
		t.Errorf("M895 response %q missing ok terminator", resp)
	}
}

func TestSimulatorSuctionStates(t *testing.T) {
	sim := NewSimulator()

	for wire, want := range map[string]string{
		"M1000": "on",
		"M1001": "blow",
		"M1002": "release",
		"M1003": "off",
	} {
		if _, err := sim.Send(wire); err != nil {
			t.Fatalf("Send(%s): %v", wire, err)
		}
		if got := sim.SuctionState(); got != want {
			t.Errorf("after %s suction = %q, want %q", wire, got, want)
		}
	}
}

func TestSimulatorDisconnected(t *testing.T) {
	sim := NewSimulator()
	sim.Disconnect()

	if sim.IsConnected() {
		t.Error("IsConnected after Disconnect")
	}
	if _, err := sim.Send("M400"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send while disconnected: err = %v, want ErrNotConnected", err)
	}

	sim.Reconnect()
	if _, err := sim.Send("M400"); err != nil {
		t.Errorf("Send after Reconnect: %v", err)
	}
}

func TestSimulatorEmergencyIsRecorded(t *testing.T) {
	sim := NewSimulator()
	sim.Disconnect()

	// Emergency path works even while "disconnected" and never errors.
	sim.SendEmergency("M410")

	cmds := sim.SentCommands()
	if len(cmds) != 1 || cmds[0] != "M410" {
		t.Errorf("sent = %v", cmds)
	}
}

func TestSimulatorConcurrentSends(t *testing.T) {
	sim := NewSimulator()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = sim.Send("G1 F3000 Z50.00")
		}()
	}
	wg.Wait()

	if got := sim.CommandCount(); got != 20 {
		t.Errorf("command count = %d, want 20", got)
	}
}
