package workflow

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/BladeLoaderCore/internal/executor"
	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/KevinKickass/BladeLoaderCore/internal/transport"
	"go.uber.org/zap"
)

func newTestMachine() (*Machine, *transport.Simulator) {
	sim := transport.NewSimulator()
	m := NewMachine(sim, executor.NewQueue(), motion.NewPlanner(50, 3000),
		nil, Config{RetryBackoff: time.Millisecond, PausePoll: time.Millisecond}, zap.NewNop())
	return m, sim
}

// failingTransport wraps a simulator and rejects any command whose wire
// contains failOn.
type failingTransport struct {
	*transport.Simulator
	failOn string
}

func (f *failingTransport) Send(wire string) (string, error) {
	if f.failOn != "" && strings.Contains(wire, f.failOn) {
		return "", errors.New("injected fault")
	}
	return f.Simulator.Send(wire)
}

// recordingSink collects events synchronously.
type recordingSink struct {
	events []Event
}

func (s *recordingSink) Publish(e Event) { s.events = append(s.events, e) }

func TestSingleHookVisitsEveryStateOnce(t *testing.T) {
	m, _ := newTestMachine()
	m.Configure(
		motion.Position{X: 100, Y: 200, Z: 10},
		[]motion.Position{{X: -100, Y: 200, Z: 10}},
		nil,
	)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []State{
		StateLoweringToPick,
		StateActivatingSuction,
		StateLiftingFromPick,
		StateMovingToPlace,
		StateLoweringToPlace,
		StateReleasing,
		StateLiftingFromPlace,
		StateComplete,
	}
	for i, next := range want {
		got, err := m.Step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != next {
			t.Fatalf("step %d: state = %s, want %s", i, got, next)
		}
	}
	if !m.State().Terminal() {
		t.Error("machine not terminal after complete cycle")
	}
}

func TestStartWithoutConfigurationFails(t *testing.T) {
	m, _ := newTestMachine()

	err := m.Start()
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}

	m.Configure(motion.Position{X: 1, Y: 200, Z: 0}, nil, nil)
	err = m.Start()
	if !errors.As(err, &cerr) {
		t.Fatalf("err with no hooks = %v, want ConfigurationError", err)
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	m, _ := newTestMachine()
	m.Configure(
		motion.Position{X: 100, Y: 200, Z: 10},
		[]motion.Position{{X: -100, Y: 200, Z: 10}},
		nil,
	)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := m.Start()
	var serr *StateError
	if !errors.As(err, &serr) {
		t.Fatalf("second start err = %v, want StateError", err)
	}
}

func TestActionFailureRetriesThenErrors(t *testing.T) {
	sim := transport.NewSimulator()
	ft := &failingTransport{Simulator: sim, failOn: "M1000"}
	sink := &recordingSink{}
	m := NewMachine(ft, executor.NewQueue(), motion.NewPlanner(50, 3000),
		sink, Config{RetryBackoff: time.Millisecond, PausePoll: time.Millisecond}, zap.NewNop())
	m.Configure(
		motion.Position{X: 100, Y: 200, Z: 10},
		[]motion.Position{{X: -100, Y: 200, Z: 10}},
		nil,
	)

	err := m.Run()
	if err == nil {
		t.Fatal("Run succeeded despite a permanently failing suction command")
	}
	if m.State() != StateErrored {
		t.Errorf("state = %s, want %s", m.State(), StateErrored)
	}
	if m.ErrorMessage() == "" {
		t.Error("no error message recorded")
	}

	failed := 0
	for _, e := range sink.events {
		if e.Type == EventCycleFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("cycle_failed events = %d, want 1", failed)
	}

	// The machine made it past the approach before the suction fault.
	wires := strings.Join(sim.SentCommands(), "\n")
	if !strings.Contains(wires, "G1") {
		t.Errorf("no motion before failure:\n%s", wires)
	}
}

func TestResetRecoversFromError(t *testing.T) {
	sim := transport.NewSimulator()
	ft := &failingTransport{Simulator: sim, failOn: "M1000"}
	m := NewMachine(ft, executor.NewQueue(), motion.NewPlanner(50, 3000),
		nil, Config{RetryBackoff: time.Millisecond}, zap.NewNop())
	m.Configure(
		motion.Position{X: 100, Y: 200, Z: 10},
		[]motion.Position{{X: -100, Y: 200, Z: 10}},
		nil,
	)

	if err := m.Run(); err == nil {
		t.Fatal("Run should have failed")
	}
	if m.State() != StateErrored {
		t.Fatalf("state = %s, want error", m.State())
	}

	m.Reset()
	if m.State() != StateIdle {
		t.Fatalf("state after reset = %s, want idle", m.State())
	}

	// The fault cleared; a fresh cycle runs to completion.
	ft.failOn = ""
	if err := m.Run(); err != nil {
		t.Fatalf("Run after reset: %v", err)
	}
	if m.State() != StateComplete {
		t.Errorf("state = %s, want complete", m.State())
	}
}

func TestMultipleHooksLoopBackToPick(t *testing.T) {
	m, sim := newTestMachine()
	sink := &recordingSink{}
	m.sink = sink
	m.Configure(
		motion.Position{X: 100, Y: 200, Z: 10},
		[]motion.Position{
			{X: -100, Y: 200, Z: 10},
			{X: -150, Y: 250, Z: 20},
		},
		nil,
	)

	done := make(chan struct{})
	m.OnComplete = func() { close(done) }

	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired")
	}

	hookEvents := 0
	for _, e := range sink.events {
		if e.Type == EventHookCompleted {
			hookEvents++
		}
	}
	if hookEvents != 2 {
		t.Errorf("hook_completed events = %d, want 2", hookEvents)
	}

	// Two picks means two suction-on commands.
	ons := 0
	for _, wire := range sim.SentCommands() {
		if wire == "M1000" {
			ons++
		}
	}
	if ons != 2 {
		t.Errorf("suction-on commands = %d, want 2", ons)
	}
	if st := m.Status(); st.HookIndex != 2 || st.HookCount != 2 {
		t.Errorf("progress = %d/%d, want 2/2", st.HookIndex, st.HookCount)
	}
}

func TestPauseHoldsBetweenSteps(t *testing.T) {
	m, _ := newTestMachine()
	m.Configure(
		motion.Position{X: 100, Y: 200, Z: 10},
		[]motion.Position{{X: -100, Y: 200, Z: 10}},
		nil,
	)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	m.Pause()
	before := m.State()

	// A paused machine does not advance.
	if got, err := m.Step(); err != nil || got != before {
		t.Errorf("paused Step moved %s -> %s (err %v)", before, got, err)
	}
	if !m.Status().Paused {
		t.Error("status does not report paused")
	}

	m.Resume()
	if got, _ := m.Step(); got == before {
		t.Error("machine did not advance after resume")
	}
}

// stoppingTransport requests a cycle stop from within the first
// command, as an operator would mid-step.
type stoppingTransport struct {
	*transport.Simulator
	stop func()
	once sync.Once
}

func (st *stoppingTransport) Send(wire string) (string, error) {
	st.once.Do(st.stop)
	return st.Simulator.Send(wire)
}

func TestStopEndsRunCleanly(t *testing.T) {
	sim := transport.NewSimulator()
	st := &stoppingTransport{Simulator: sim}
	sink := &recordingSink{}
	m := NewMachine(st, executor.NewQueue(), motion.NewPlanner(50, 3000),
		sink, Config{RetryBackoff: time.Millisecond, PausePoll: time.Millisecond}, zap.NewNop())
	st.stop = m.Stop
	m.Configure(
		motion.Position{X: 100, Y: 200, Z: 10},
		[]motion.Position{{X: -100, Y: 200, Z: 10}},
		nil,
	)
	completed := false
	m.OnComplete = func() { completed = true }

	// The stop lands mid-step and takes effect at the step boundary.
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if m.State() != StateIdle {
		t.Errorf("state after stop = %s, want idle", m.State())
	}
	if completed {
		t.Error("completion callback fired for a stopped cycle")
	}
	stopEvents := 0
	for _, e := range sink.events {
		if e.Type == EventCycleStopped {
			stopEvents++
		}
	}
	if stopEvents != 1 {
		t.Errorf("cycle_stopped events = %d, want 1", stopEvents)
	}

	// The pump is shut off even when the cycle never picked anything.
	wires := strings.Join(sim.SentCommands(), "\n")
	if !strings.Contains(wires, "M1002") || !strings.Contains(wires, "M1003") {
		t.Errorf("suction shutoff missing from:\n%s", wires)
	}
}
