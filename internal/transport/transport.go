// Package transport carries wire commands to the arm over a single
// serial channel. All implementations serialize concurrent sends; the
// emergency path deliberately bypasses that lock.
package transport

import (
	"errors"
	"fmt"
	"time"
)

// Transport is the contract the core depends on. Send blocks until a
// response line containing "ok" arrives or the ack timeout elapses;
// multi-line responses (position queries) are returned joined by
// newlines.
//
// SendEmergency writes without taking the send lock and discards
// pending input, so an emergency stop can preempt an in-flight
// wait-for-acknowledgment. It never returns an error.
type Transport interface {
	Send(wire string) (string, error)
	SendEmergency(wire string)
	IsConnected() bool
}

// ErrNotConnected is returned by Send when no device is attached.
var ErrNotConnected = errors.New("transport not connected")

// TimeoutError reports that no "ok" arrived within the ack window.
type TimeoutError struct {
	Command string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for ok after %s (command %q)", e.After, e.Command)
}
