package transport

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	DefaultBaudRate   = 115200
	DefaultAckTimeout = 10 * time.Second

	// The arm resets when the port opens; give the firmware time to boot
	// before the first command.
	DefaultConnectDelay = 2 * time.Second
)

// SerialConfig holds the tunables of the serial link.
type SerialConfig struct {
	BaudRate     int
	AckTimeout   time.Duration
	ConnectDelay time.Duration
}

func (c SerialConfig) withDefaults() SerialConfig {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.ConnectDelay == 0 {
		c.ConnectDelay = DefaultConnectDelay
	}
	return c
}

// Serial talks to the arm over a serial port. A mutex serializes Send
// calls so interleaved byte streams from concurrent API requests cannot
// corrupt the command/response protocol.
type Serial struct {
	config SerialConfig
	logger *zap.Logger

	mu        sync.Mutex
	port      serial.Port
	connected bool
}

// NewSerial returns an unconnected serial transport.
func NewSerial(config SerialConfig, logger *zap.Logger) *Serial {
	return &Serial{config: config.withDefaults(), logger: logger}
}

// ListPorts lists the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Connect opens the given port and waits for the firmware to boot.
func (s *Serial) Connect(portName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: s.config.BaudRate})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", portName, err)
	}

	time.Sleep(s.config.ConnectDelay)

	s.port = port
	s.connected = true
	s.logger.Info("Serial port connected",
		zap.String("port", portName),
		zap.Int("baud_rate", s.config.BaudRate))
	return nil
}

// Disconnect closes the port.
func (s *Serial) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	err := s.port.Close()
	s.port = nil
	s.connected = false
	s.logger.Info("Serial port disconnected")
	return err
}

func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Send writes one wire command and blocks until a line containing "ok"
// arrives or the ack timeout elapses. All response lines are returned
// joined by newlines so query responses keep their data lines.
func (s *Serial) Send(wire string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	s.logger.Debug("serial >>>", zap.String("command", wire))
	if _, err := s.port.Write([]byte(wire + "\r")); err != nil {
		return "", fmt.Errorf("serial write failed: %w", err)
	}

	return s.waitForOK(wire)
}

// SendEmergency writes without taking the send lock and clears pending
// input. Use only for the emergency stop: it interrupts whatever
// exchange is in progress and is strictly best effort.
func (s *Serial) SendEmergency(wire string) {
	port := s.port
	if port == nil {
		return
	}

	s.logger.Warn("serial emergency write", zap.String("command", wire))
	if _, err := port.Write([]byte(wire + "\r")); err != nil {
		s.logger.Error("emergency write failed", zap.Error(err))
		return
	}
	if err := port.ResetInputBuffer(); err != nil {
		s.logger.Error("emergency buffer reset failed", zap.Error(err))
	}
}

// waitForOK reads lines until one contains "ok" (case-insensitive).
// Must be called with the lock held.
func (s *Serial) waitForOK(wire string) (string, error) {
	deadline := time.Now().Add(s.config.AckTimeout)
	if err := s.port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return "", fmt.Errorf("failed to set read timeout: %w", err)
	}

	var lines []string
	var partial []byte
	buf := make([]byte, 256)

	for time.Now().Before(deadline) {
		n, err := s.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("serial read failed: %w", err)
		}
		for _, b := range buf[:n] {
			if b != '\n' {
				partial = append(partial, b)
				continue
			}
			line := strings.TrimSpace(string(partial))
			partial = partial[:0]
			if line == "" {
				continue
			}
			s.logger.Debug("serial <<<", zap.String("response", line))
			lines = append(lines, line)
			if strings.Contains(strings.ToLower(line), "ok") {
				return strings.Join(lines, "\n"), nil
			}
		}
	}

	if err := s.port.ResetInputBuffer(); err != nil {
		s.logger.Error("buffer reset after timeout failed", zap.Error(err))
	}
	s.logger.Error("timeout waiting for ok",
		zap.String("command", wire),
		zap.Duration("timeout", s.config.AckTimeout))
	return "", &TimeoutError{Command: wire, After: s.config.AckTimeout}
}
