// Package executor runs command sequences against a transport and keeps
// an append-only audit history of everything sent to the hardware.
package executor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/KevinKickass/BladeLoaderCore/internal/motion"
	"github.com/KevinKickass/BladeLoaderCore/internal/transport"
)

// Result is the audit record for one executed command. Immutable once
// created.
type Result struct {
	Command   motion.Command `json:"-"`
	Wire      string         `json:"wire"`
	Response  string         `json:"response"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
}

func (r Result) String() string {
	status := "ok"
	if !r.Success {
		status = "FAIL"
	}
	return fmt.Sprintf("[%s] %s %s -> %s", r.Timestamp.Format("15:04:05"), status, r.Wire, r.Response)
}

// Queue is an ordered, auditable command buffer. Enqueue appends without
// side effects; ExecuteAll drains the pending FIFO against a transport.
// A mutex serializes execution so only one batch talks to the hardware
// at a time.
type Queue struct {
	mu      sync.Mutex
	pending []motion.Command
	history []Result

	// AbortOnFailure stops a batch at the first failed acknowledgment.
	// Off by default: the historical behavior is best effort, inspect
	// history afterward.
	AbortOnFailure bool
}

// NewQueue returns an empty queue with best-effort batch semantics.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends one command to the pending FIFO.
func (q *Queue) Enqueue(cmd motion.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, cmd)
}

// EnqueueMany appends commands in order.
func (q *Queue) EnqueueMany(cmds []motion.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, cmds...)
}

// PendingCount returns the number of commands waiting to execute.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending returns a copy of the pending commands.
func (q *Queue) Pending() []motion.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]motion.Command(nil), q.pending...)
}

// ExecuteAll drains the pending queue in order. Each command is
// converted to wire text, sent, classified and recorded in history.
// Unless AbortOnFailure is set, the batch continues past individual
// failures. The pending queue is cleared afterwards either way; only
// this batch's results are returned.
func (q *Queue) ExecuteAll(t transport.Transport) []Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []Result
	for _, cmd := range q.pending {
		result := execute(cmd, t)
		q.history = append(q.history, result)
		batch = append(batch, result)
		if !result.Success && q.AbortOnFailure {
			break
		}
	}

	q.pending = nil
	return batch
}

// ExecuteImmediate bypasses the queue and runs a single command
// synchronously. Still recorded in history.
func (q *Queue) ExecuteImmediate(cmd motion.Command, t transport.Transport) Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := execute(cmd, t)
	q.history = append(q.history, result)
	return result
}

// ExecuteEmergency sends via the transport's lock-free emergency path.
// No acknowledgment is awaited and no error can surface; the attempt is
// recorded in history. This is the only path for the emergency stop.
func (q *Queue) ExecuteEmergency(cmd motion.Command, t transport.Transport) Result {
	wire := cmd.Wire()
	t.SendEmergency(wire)

	result := Result{
		Command:   cmd,
		Wire:      wire,
		Response:  "sent (no ack)",
		Timestamp: time.Now(),
		Success:   true,
	}

	q.mu.Lock()
	q.history = append(q.history, result)
	q.mu.Unlock()
	return result
}

func execute(cmd motion.Command, t transport.Transport) Result {
	wire := cmd.Wire()
	timestamp := time.Now()

	response, err := t.Send(wire)
	success := err == nil && strings.Contains(strings.ToLower(response), "ok")
	if err != nil {
		response = fmt.Sprintf("ERROR: %v", err)
	}

	return Result{
		Command:   cmd,
		Wire:      wire,
		Response:  response,
		Timestamp: timestamp,
		Success:   success,
	}
}

// History returns execution history, newest last. A positive limit
// returns only that many most recent entries.
func (q *Queue) History(limit int) []Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	start := 0
	if limit > 0 && len(q.history) > limit {
		start = len(q.history) - limit
	}
	return append([]Result(nil), q.history[start:]...)
}

// LastResult returns the most recent execution result, if any.
func (q *Queue) LastResult() (Result, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.history) == 0 {
		return Result{}, false
	}
	return q.history[len(q.history)-1], true
}

// Clear drops pending commands. History is preserved.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
}

// ClearHistory drops the audit history.
func (q *Queue) ClearHistory() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = nil
}
