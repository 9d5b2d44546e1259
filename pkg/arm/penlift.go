package arm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// PenLift raises and lowers the pen with a dedicated actuator instead of
// the arm's Z axis.
type PenLift interface {
	Lift(ctx context.Context) error
	Lower(ctx context.Context) error
	Close() error
}

// ServoLiftConfig describes a Feetech STS servo holding the pen.
type ServoLiftConfig struct {
	Port string
	ID   int
	// Raw servo positions for the two pen states.
	Up   int
	Down int
	// MoveTime is how long the servo takes to travel between them.
	MoveTime time.Duration
}

// positionTolerance is the raw servo error accepted after a move.
const positionTolerance = 30

// penServo is the part of *feetech.Servo the lift uses.
type penServo interface {
	SetPositionWithTime(ctx context.Context, position, timeMs int) error
	Position(ctx context.Context) (int, error)
	Disable(ctx context.Context) error
}

// ServoLift is a PenLift backed by a single Feetech servo.
type ServoLift struct {
	bus   io.Closer
	servo penServo
	cfg   ServoLiftConfig
}

// NewServoLift opens the servo bus and enables torque on the pen servo.
func NewServoLift(ctx context.Context, cfg ServoLiftConfig) (*ServoLift, error) {
	if cfg.MoveTime <= 0 {
		cfg.MoveTime = 300 * time.Millisecond
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, &ConnectionError{Port: cfg.Port, Err: fmt.Errorf("open bus: %w", err)}
	}

	scanCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	found, err := bus.Scan(scanCtx, cfg.ID, cfg.ID)
	if err != nil || len(found) == 0 {
		bus.Close()
		if err == nil {
			err = fmt.Errorf("servo %d not found", cfg.ID)
		}
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}

	servo := feetech.NewServo(bus, found[0].ID, found[0].Model)
	if err := servo.Enable(ctx); err != nil {
		bus.Close()
		return nil, &ConnectionError{Port: cfg.Port, Err: fmt.Errorf("enable servo: %w", err)}
	}

	return &ServoLift{bus: bus, servo: servo, cfg: cfg}, nil
}

// Lift moves the pen off the paper.
func (l *ServoLift) Lift(ctx context.Context) error {
	return l.moveTo(ctx, l.cfg.Up)
}

// Lower puts the pen on the paper.
func (l *ServoLift) Lower(ctx context.Context) error {
	return l.moveTo(ctx, l.cfg.Down)
}

func (l *ServoLift) moveTo(ctx context.Context, target int) error {
	ms := int(l.cfg.MoveTime / time.Millisecond)
	if err := l.servo.SetPositionWithTime(ctx, target, ms); err != nil {
		return fmt.Errorf("set pen servo: %w", err)
	}

	select {
	case <-time.After(l.cfg.MoveTime + 50*time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	pos, err := l.servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read pen servo position: %w", err)
	}
	if d := pos - target; d > positionTolerance || d < -positionTolerance {
		return fmt.Errorf("%w: pen servo at %d, want %d", ErrTransportTimeout, pos, target)
	}
	return nil
}

// Close disables torque and closes the servo bus.
func (l *ServoLift) Close() error {
	l.servo.Disable(context.Background())
	return l.bus.Close()
}

// ServoInfo is a servo answering on a bus.
type ServoInfo struct {
	ID       int
	Model    string
	Position int
}

// ScanServos lists the servos with IDs lo..hi on port, with their current
// positions, to find the pen servo and its raw up and down values.
func ScanServos(ctx context.Context, port string, lo, hi int) ([]ServoInfo, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, &ConnectionError{Port: port, Err: fmt.Errorf("open bus: %w", err)}
	}
	defer bus.Close()

	scanCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	found, err := bus.Scan(scanCtx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", port, err)
	}

	out := make([]ServoInfo, 0, len(found))
	for _, f := range found {
		info := ServoInfo{ID: f.ID, Model: fmt.Sprint(f.Model), Position: -1}
		if pos, err := feetech.NewServo(bus, f.ID, f.Model).Position(ctx); err == nil {
			info.Position = pos
		}
		out = append(out, info)
	}
	return out, nil
}
