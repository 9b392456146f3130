package controller

import "fmt"

// PreconditionError reports an operation refused before any command was
// sent: not homed, not carrying a blade, motors disabled. Always
// recoverable by the caller.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// ParseError reports a sensor response that did not match the expected
// format. It is logged, not raised: position reads fall back to the
// last known position.
type ParseError struct {
	Response string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse sensor response %q", e.Response)
}
