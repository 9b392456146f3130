// Package workflow drives a whole pick-and-place cycle through an
// explicit state machine. It is deliberately independent of the
// controller's own bookkeeping: each state performs one small, retryable
// hardware action, so a cycle can survive partial failures and be
// paused, resumed or stopped between steps.
package workflow

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevinKickass/BladeLoaderCore/internal/executor"
	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/KevinKickass/BladeLoaderCore/internal/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 100 * time.Millisecond
)

// Config tunes one machine instance.
type Config struct {
	VacuumDelayMs  int
	ReleaseDelayMs int
	MaxAttempts    int           // attempts per state before Error
	RetryBackoff   time.Duration // fixed backoff between attempts
	PausePoll      time.Duration // how often Run re-checks a pause
}

func (c Config) withDefaults() Config {
	if c.VacuumDelayMs == 0 {
		c.VacuumDelayMs = motion.DefaultVacuumDelayMs
	}
	if c.ReleaseDelayMs == 0 {
		c.ReleaseDelayMs = motion.DefaultReleaseDelayMs
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.PausePoll == 0 {
		c.PausePoll = 50 * time.Millisecond
	}
	return c
}

// Status is the externally visible cycle state.
type Status struct {
	CycleID   uuid.UUID `json:"cycle_id,omitempty"`
	State     State     `json:"state"`
	HookIndex int       `json:"hook_index"`
	HookCount int       `json:"hook_count"`
	Paused    bool      `json:"paused"`
	Error     string    `json:"error,omitempty"`
}

// Machine executes the cycle graph: pick from the taught pick point,
// place at each configured hook in order. It plans with the shared
// planner and executes through the shared queue, so every command it
// sends lands in the same audit history as the controller's.
type Machine struct {
	logger    *zap.Logger
	transport transport.Transport
	queue     *executor.Queue
	planner   *motion.Planner
	sink      EventSink
	config    Config

	// Callbacks fire outside internal locking.
	OnStateChange func(old, new State)
	OnComplete    func()
	OnError       func(msg string)

	mu        sync.Mutex
	state     State
	pick      *motion.Position
	hooks     []motion.Position
	hookIndex int
	current   motion.Position
	cycleID   uuid.UUID
	errMsg    string

	// Pause and stop requests are atomics, not mutex-guarded: a step
	// holds the mutex while hardware commands run, and operators must
	// be able to request a stop during one.
	paused  atomic.Bool
	stopped atomic.Bool
}

// NewMachine builds an idle machine. sink may be nil.
func NewMachine(t transport.Transport, queue *executor.Queue, planner *motion.Planner, sink EventSink, cfg Config, logger *zap.Logger) *Machine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Machine{
		logger:    logger,
		transport: t,
		queue:     queue,
		planner:   planner,
		sink:      sink,
		config:    cfg.withDefaults(),
		state:     StateIdle,
		current:   motion.Position{X: 0, Y: 300, Z: 0},
	}
}

// Configure sets the cycle positions. current may be nil to keep the
// assumed rest pose. Must be called before Start.
func (m *Machine) Configure(pick motion.Position, hooks []motion.Position, current *motion.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pick
	m.pick = &p
	m.hooks = append([]motion.Position(nil), hooks...)
	if current != nil {
		m.current = *current
	}
}

// Start begins a new cycle. Fails with ConfigurationError when the
// positions are missing and with StateError unless the machine is idle.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return &StateError{State: m.state, Op: "start"}
	}
	if m.pick == nil {
		return &ConfigurationError{Reason: "no pick position set"}
	}
	if len(m.hooks) == 0 {
		return &ConfigurationError{Reason: "no hooks defined"}
	}

	m.cycleID = uuid.New()
	m.hookIndex = 0
	m.errMsg = ""
	m.paused.Store(false)
	m.stopped.Store(false)

	m.logger.Info("Cycle started",
		zap.String("cycle_id", m.cycleID.String()),
		zap.Int("hooks", len(m.hooks)))
	m.setStateLocked(StateMovingToPick)
	m.publishLocked(EventCycleStarted, "")
	return nil
}

// Step executes the current state's action, then advances through the
// transition table. An action that still fails after the configured
// attempts transitions to Error; Error is terminal until Reset.
func (m *Machine) Step() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle || m.state.Terminal() {
		return m.state, nil
	}
	if m.paused.Load() {
		return m.state, nil
	}

	if err := m.executeWithRetry(); err != nil {
		m.failLocked(err)
		return m.state, err
	}

	m.advanceLocked()
	return m.state, nil
}

// Run drives Start then repeated Step until the cycle completes or
// fails. Pause and Stop are honored between steps, never mid-step.
// Whatever way the cycle ends, the pump is shut off on the way out; the
// completion callback fires only on Complete.
func (m *Machine) Run() error {
	if err := m.Start(); err != nil {
		return err
	}
	defer m.shutoffSuction()

	for {
		m.mu.Lock()
		state := m.state
		m.mu.Unlock()

		if state.Terminal() {
			break
		}
		if m.stopped.Load() {
			m.mu.Lock()
			m.setStateLocked(StateIdle)
			m.publishLocked(EventCycleStopped, "stopped by request")
			m.mu.Unlock()
			m.logger.Info("Cycle stopped")
			return nil
		}
		if m.paused.Load() {
			time.Sleep(m.config.PausePoll)
			continue
		}

		if _, err := m.Step(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state == StateComplete {
		if m.OnComplete != nil {
			m.OnComplete()
		}
		return nil
	}
	return fmt.Errorf("cycle ended in state %s: %s", state, m.ErrorMessage())
}

// Pause suspends the machine between steps. Safe to call while a step
// is executing; it takes effect at the next boundary.
func (m *Machine) Pause() {
	m.paused.Store(true)
	m.logger.Info("Cycle pause requested")
}

// Resume lifts a pause.
func (m *Machine) Resume() {
	m.paused.Store(false)
}

// Stop requests the running cycle to end at the next step boundary.
func (m *Machine) Stop() {
	m.stopped.Store(true)
	m.paused.Store(false)
}

// Reset forces the machine back to Idle from any state, including
// Error. This is the only recovery path from Error.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStateLocked(StateIdle)
	m.errMsg = ""
	m.hookIndex = 0
	m.paused.Store(false)
	m.stopped.Store(false)
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ErrorMessage returns the failure message of an errored cycle.
func (m *Machine) ErrorMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Status returns a snapshot for the API layer.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		CycleID:   m.cycleID,
		State:     m.state,
		HookIndex: m.hookIndex,
		HookCount: len(m.hooks),
		Paused:    m.paused.Load(),
		Error:     m.errMsg,
	}
}

// executeWithRetry runs the current state's action, retrying with a
// fixed backoff before giving up. Callers hold the lock.
func (m *Machine) executeWithRetry() error {
	var err error
	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		err = m.executeState()
		if err == nil {
			return nil
		}
		m.logger.Warn("State action failed",
			zap.String("state", string(m.state)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < m.config.MaxAttempts {
			time.Sleep(m.config.RetryBackoff)
		}
	}
	return err
}

func (m *Machine) executeState() error {
	switch m.state {
	case StateMovingToPick:
		above := m.pick.WithZ(m.planner.SafeZ)
		cmds, err := m.planner.PlanSafeMove(m.current, above)
		if err != nil {
			return err
		}
		if err := m.runBatch(cmds); err != nil {
			return err
		}
		m.current = above
		return nil

	case StateLoweringToPick:
		if err := m.runBatch([]motion.Command{
			motion.MoveZ(m.pick.Z, m.planner.Feedrate),
			motion.Wait{},
		}); err != nil {
			return err
		}
		m.current = *m.pick
		return nil

	case StateActivatingSuction:
		return m.runBatch([]motion.Command{
			motion.Suction{Action: motion.SuctionOn},
			motion.Delay{Millis: m.config.VacuumDelayMs},
		})

	case StateLiftingFromPick:
		if err := m.runBatch([]motion.Command{
			motion.MoveZ(m.planner.SafeZ, m.planner.Feedrate),
			motion.Wait{},
		}); err != nil {
			return err
		}
		m.current = m.current.WithZ(m.planner.SafeZ)
		return nil

	case StateMovingToPlace:
		hook := m.hooks[m.hookIndex]
		above := hook.WithZ(m.planner.SafeZ)
		cmds, err := m.planner.PlanSafeMove(m.current, above)
		if err != nil {
			return err
		}
		if err := m.runBatch(cmds); err != nil {
			return err
		}
		m.current = above
		return nil

	case StateLoweringToPlace:
		hook := m.hooks[m.hookIndex]
		if err := m.runBatch([]motion.Command{
			motion.MoveZ(hook.Z, m.planner.Feedrate),
			motion.Wait{},
		}); err != nil {
			return err
		}
		m.current = hook
		return nil

	case StateReleasing:
		return m.runBatch([]motion.Command{
			motion.Suction{Action: motion.SuctionRelease},
			motion.Delay{Millis: m.config.ReleaseDelayMs},
			motion.Suction{Action: motion.SuctionOff},
		})

	case StateLiftingFromPlace:
		if err := m.runBatch([]motion.Command{
			motion.MoveZ(m.planner.SafeZ, m.planner.Feedrate),
			motion.Wait{},
		}); err != nil {
			return err
		}
		m.current = m.current.WithZ(m.planner.SafeZ)
		return nil

	default:
		return fmt.Errorf("no action for state %s", m.state)
	}
}

// runBatch executes commands and fails on the first unacknowledged one,
// so the retry layer sees hardware trouble.
func (m *Machine) runBatch(cmds []motion.Command) error {
	m.queue.EnqueueMany(cmds)
	for _, result := range m.queue.ExecuteAll(m.transport) {
		if !result.Success {
			return fmt.Errorf("command %q failed: %s", result.Wire, result.Response)
		}
	}
	return nil
}

// advanceLocked moves through the transition table. After lifting from a
// place, the machine loops back for the next hook or completes.
func (m *Machine) advanceLocked() {
	if m.state == StateLiftingFromPlace {
		m.hookIndex++
		m.publishLocked(EventHookCompleted, fmt.Sprintf("hook %d/%d done", m.hookIndex, len(m.hooks)))
		if m.hookIndex < len(m.hooks) {
			m.setStateLocked(StateMovingToPick)
		} else {
			m.setStateLocked(StateComplete)
			m.publishLocked(EventCycleCompleted, "")
			m.logger.Info("Cycle complete", zap.String("cycle_id", m.cycleID.String()))
		}
		return
	}

	if next, ok := transitions[m.state]; ok {
		m.setStateLocked(next)
	}
}

func (m *Machine) failLocked(err error) {
	m.errMsg = err.Error()
	m.setStateLocked(StateErrored)
	m.publishLocked(EventCycleFailed, m.errMsg)
	m.logger.Error("Cycle failed",
		zap.String("cycle_id", m.cycleID.String()),
		zap.String("state", string(m.state)),
		zap.Error(err))
	if m.OnError != nil {
		cb := m.OnError
		msg := m.errMsg
		go cb(msg)
	}
}

func (m *Machine) setStateLocked(next State) {
	old := m.state
	if old == next {
		return
	}
	m.state = next
	m.logger.Debug("Workflow transition",
		zap.String("from", string(old)),
		zap.String("to", string(next)))
	if next != StateIdle && next != StateErrored {
		m.publishLocked(EventStateChanged, "")
	}
	if m.OnStateChange != nil {
		cb := m.OnStateChange
		go cb(old, next)
	}
}

func (m *Machine) publishLocked(t EventType, msg string) {
	m.sink.Publish(Event{
		ID:        uuid.New(),
		CycleID:   m.cycleID,
		Type:      t,
		State:     m.state,
		HookIndex: m.hookIndex,
		HookCount: len(m.hooks),
		Message:   msg,
		Timestamp: time.Now(),
	})
}

// shutoffSuction releases and stops the pump regardless of how the
// cycle ended. Best effort: failures are only logged.
func (m *Machine) shutoffSuction() {
	m.queue.EnqueueMany([]motion.Command{
		motion.Suction{Action: motion.SuctionRelease},
		motion.Suction{Action: motion.SuctionOff},
	})
	for _, result := range m.queue.ExecuteAll(m.transport) {
		if !result.Success {
			m.logger.Warn("Suction shutoff not acknowledged", zap.String("wire", result.Wire))
		}
	}
}
