package arm

import (
	"errors"
	"fmt"

	"github.com/gwillem/robotross/pkg/robot"
)

var (
	ErrDeviceNotFound    = errors.New("no drawing arm found")
	ErrConnection        = errors.New("connection failed")
	ErrTransportTimeout  = errors.New("timed out waiting for acknowledgement")
	ErrTransportProtocol = errors.New("malformed acknowledgement")
	ErrArmFault          = errors.New("arm fault")
	ErrClosed            = errors.New("arm disconnected")
)

// ConnectionError is returned when the serial port cannot be opened or the
// arm does not answer the initial handshake.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// ArmFaultError aborts a plan after a command failed on every attempt. The
// arm is left where it last acknowledged.
type ArmFaultError struct {
	Command  robot.Command
	Attempts int
	Err      error
}

func (e *ArmFaultError) Error() string {
	return fmt.Sprintf("arm fault on %s after %d attempts: %v", e.Command, e.Attempts, e.Err)
}

func (e *ArmFaultError) Unwrap() error { return e.Err }

func (e *ArmFaultError) Is(target error) bool { return target == ErrArmFault }

// protocolError carries the offending line.
type protocolError struct {
	line string
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("%v: %q", ErrTransportProtocol, e.line)
}

func (e *protocolError) Is(target error) bool { return target == ErrTransportProtocol }
