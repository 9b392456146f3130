package websocket

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Workflow cycle messages
	MessageTypeCycleEvent MessageType = "cycle_event"

	// Controller state messages
	MessageTypeMachineStatus MessageType = "machine_status"

	// Hardware link messages
	MessageTypeConnection MessageType = "connection"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConnectionData reports a serial link change.
type ConnectionData struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port,omitempty"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewMachineStatusMessage(status interface{}) Message {
	return NewMessage(MessageTypeMachineStatus, status)
}

func NewConnectionMessage(connected bool, port string) Message {
	return NewMessage(MessageTypeConnection, ConnectionData{
		Connected: connected,
		Port:      port,
	})
}
