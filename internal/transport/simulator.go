package transport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	simXPattern = regexp.MustCompile(`X([-\d.]+)`)
	simYPattern = regexp.MustCompile(`Y([-\d.]+)`)
	simZPattern = regexp.MustCompile(`Z([-\d.]+)`)
)

// SimPosition is the simulator's own notion of where the arm is. The
// simulator must not depend on the motion package (the motion tests use
// the simulator), so it keeps a plain triple.
type SimPosition struct {
	X, Y, Z float64
}

// Simulator is a deterministic in-memory transport. It tracks position
// from G1 commands, answers position queries and acknowledges every
// command, so planner/executor/controller correctness is verifiable
// without hardware.
type Simulator struct {
	mu           sync.Mutex
	sent         []string
	position     SimPosition
	suctionState string
	connected    bool
}

// NewSimulator returns a connected simulator at the rest pose.
func NewSimulator() *Simulator {
	return &Simulator{
		position:     SimPosition{X: 0, Y: 300, Z: 0},
		suctionState: "off",
		connected:    true,
	}
}

func (s *Simulator) Send(wire string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}
	s.sent = append(s.sent, wire)
	return s.respond(wire), nil
}

// SendEmergency records the command and discards nothing; the simulator
// has no pending input to preempt.
func (s *Simulator) SendEmergency(wire string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, wire)
}

func (s *Simulator) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Simulator) respond(wire string) string {
	switch {
	case wire == "M1112":
		s.position = SimPosition{X: 0, Y: 300, Z: 0}
		return "ok"

	case strings.HasPrefix(wire, "G1"):
		s.applyMove(wire)
		return "ok"

	case wire == "M114":
		return fmt.Sprintf("X:%.2f Y:%.2f Z:%.2f E:0.00\nok",
			s.position.X, s.position.Y, s.position.Z)

	case wire == "M895":
		// Encoder read: reflects the true position even after teach mode.
		return fmt.Sprintf("X:%.2f Y:%.2f Z:%.2f\nok",
			s.position.X, s.position.Y, s.position.Z)

	case wire == "M1000":
		s.suctionState = "on"
		return "ok"
	case wire == "M1001":
		s.suctionState = "blow"
		return "ok"
	case wire == "M1002":
		s.suctionState = "release"
		return "ok"
	case wire == "M1003":
		s.suctionState = "off"
		return "ok"

	default:
		// M400, G4, M888, M17/M84, M410 and anything unknown just ack.
		return "ok"
	}
}

func (s *Simulator) applyMove(wire string) {
	if m := simXPattern.FindStringSubmatch(wire); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			s.position.X = v
		}
	}
	if m := simYPattern.FindStringSubmatch(wire); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			s.position.Y = v
		}
	}
	if m := simZPattern.FindStringSubmatch(wire); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			s.position.Z = v
		}
	}
}

// SentCommands returns a copy of everything sent so far.
func (s *Simulator) SentCommands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// CommandCount returns the number of commands sent.
func (s *Simulator) CommandCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// Position returns the simulated position.
func (s *Simulator) Position() SimPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// SetPosition overrides the simulated position, standing in for the arm
// being moved by hand in teach mode.
func (s *Simulator) SetPosition(p SimPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = p
}

// SuctionState returns the simulated pump state: on, blow, release, off.
func (s *Simulator) SuctionState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suctionState
}

// Disconnect simulates losing the device, for error-path tests.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// Reconnect restores the simulated connection.
func (s *Simulator) Reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
}

// ClearSent drops the recorded command list, keeping position and state.
func (s *Simulator) ClearSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

var _ Transport = (*Simulator)(nil)
var _ Transport = (*Serial)(nil)
