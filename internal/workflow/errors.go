package workflow

import "fmt"

// StateError reports an operation outside the machine's valid
// transition graph, e.g. starting a machine that is not idle.
type StateError struct {
	State State
	Op    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
}

// ConfigurationError reports a cycle started without the positions it
// needs.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("workflow not configured: %s", e.Reason)
}
