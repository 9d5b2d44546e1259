// Package arm drives a G-code pen plotter arm over a serial port.
//
// Every command is acknowledged before the next one is written, and each
// motion is followed by M400 so Send only returns once the arm has stopped.
// Coordinates are absolute from the session origin, which makes a retried
// command idempotent.
package arm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gwillem/robotross/pkg/robot"
)

// maxAttempts is one try plus one retry.
const maxAttempts = 2

// Moves shorter than this are acknowledged without touching the arm.
const minMove = 0.01

var okPattern = regexp.MustCompile(`(?i)\bok\b`)

// Port is the byte stream the arm speaks G-code over. serial.Port satisfies
// it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Options configures a connection.
type Options struct {
	// Port is the serial device. Empty means auto-detect.
	Port string
	Baud int

	AckTimeout    time.Duration
	MotionTimeout time.Duration
	RetryBackoff  time.Duration

	// Feed rates in mm/min.
	DrawFeed   int
	TravelFeed int

	Profile robot.Profile

	// PenLift replaces Z axis pen moves when set.
	PenLift PenLift
}

func (o *Options) setDefaults() {
	if o.Baud == 0 {
		o.Baud = 115200
	}
	if o.AckTimeout == 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.MotionTimeout == 0 {
		o.MotionTimeout = 30 * time.Second
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = 250 * time.Millisecond
	}
	if o.DrawFeed == 0 {
		o.DrawFeed = 400
	}
	if o.TravelFeed == 0 {
		o.TravelFeed = 800
	}
	if o.Profile == (robot.Profile{}) {
		o.Profile = robot.DefaultProfile()
	}
}

// Arm is a connected drawing arm.
type Arm struct {
	port Port
	name string
	opts Options

	lines    chan string
	done     chan struct{}
	readDone chan struct{}

	closeOnce sync.Once
	closeErr  error

	// mu serializes commands; the arm accepts one at a time.
	mu    sync.Mutex
	pos   robot.Point
	z     float64
	penUp bool
}

var openPort = func(name string, baud int) (Port, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// Connect opens the arm's serial port, auto-detecting it when opts.Port is
// empty, and makes the current pen position the session origin.
func Connect(ctx context.Context, opts Options) (*Arm, error) {
	opts.setDefaults()

	name := opts.Port
	if name == "" {
		var err error
		if name, err = Detect(); err != nil {
			return nil, err
		}
		logrus.WithField("port", name).Info("auto-detected drawing arm")
	}

	p, err := openPort(name, opts.Baud)
	if err != nil {
		return nil, &ConnectionError{Port: name, Err: err}
	}

	return New(ctx, p, name, opts)
}

// New takes over an open port. The pen is assumed to be up.
func New(ctx context.Context, port Port, name string, opts Options) (*Arm, error) {
	opts.setDefaults()

	// Short reads keep the reader responsive to Disconnect.
	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		port.Close()
		return nil, &ConnectionError{Port: name, Err: err}
	}

	a := &Arm{
		port:     port,
		name:     name,
		opts:     opts,
		lines:    make(chan string, 64),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		z:        opts.Profile.PenUpHeight,
		penUp:    true,
	}
	go a.readLoop()

	handshake := []string{
		"G21", // millimeters
		"G90", // absolute positioning
		fmt.Sprintf("G92 X0 Y0 Z%.2f", a.z),
	}
	for _, line := range handshake {
		if err := a.exchange(ctx, line, opts.AckTimeout); err != nil {
			a.Disconnect()
			return nil, &ConnectionError{Port: name, Err: err}
		}
	}

	logrus.WithFields(logrus.Fields{"port": name, "baud": opts.Baud}).Info("arm connected")
	return a, nil
}

// Name returns the serial port name.
func (a *Arm) Name() string {
	return a.name
}

// Position returns the last acknowledged pen position.
func (a *Arm) Position() robot.Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

// PenIsUp reports whether the pen was last acknowledged as lifted.
func (a *Arm) PenIsUp() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.penUp
}

// SetProfile applies a new calibration to subsequent pen moves.
func (a *Arm) SetProfile(p robot.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opts.Profile = p
}

// Send executes one command and waits until the arm completed it. A failed
// attempt is retried once; a second failure returns an *ArmFaultError.
func (a *Arm) Send(ctx context.Context, cmd robot.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := tracer.Start(ctx, "arm.send", trace.WithAttributes(
		attribute.String("arm.command", cmd.String()),
	))
	defer span.End()

	if cmd.Kind < robot.KindMoveTo || cmd.Kind > robot.KindDwell {
		return fmt.Errorf("unknown command %v", cmd)
	}

	var (
		err     error
		attempt int
	)
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		if err = a.execute(ctx, cmd); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if errors.Is(err, ErrClosed) || attempt == maxAttempts {
			break
		}

		logrus.WithFields(logrus.Fields{
			"command": cmd.String(),
			"attempt": attempt,
		}).WithError(err).Warn("arm command failed, retrying")
		span.AddEvent("retry")

		select {
		case <-time.After(a.opts.RetryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fault := &ArmFaultError{Command: cmd, Attempts: min(attempt, maxAttempts), Err: err}
	span.RecordError(fault)
	span.SetStatus(codes.Error, fault.Error())
	return fault
}

func (a *Arm) execute(ctx context.Context, cmd robot.Command) error {
	switch cmd.Kind {
	case robot.KindPenUp:
		if a.penUp {
			return nil
		}
		if err := a.movePen(ctx, true); err != nil {
			return err
		}
		a.penUp = true

	case robot.KindPenDown:
		if !a.penUp {
			return nil
		}
		if err := a.movePen(ctx, false); err != nil {
			return err
		}
		a.penUp = false

	case robot.KindMoveTo:
		target := cmd.Target()
		if math.Abs(target.X-a.pos.X) < minMove && math.Abs(target.Y-a.pos.Y) < minMove {
			return nil
		}
		feed := a.opts.DrawFeed
		if cmd.Feed > 0 {
			feed = cmd.Feed
		}
		if a.penUp {
			feed = a.opts.TravelFeed
		}
		line := fmt.Sprintf("G1 X%.3f Y%.3f F%d", target.X, target.Y, feed)
		if p := a.opts.Profile; p.TiltSlope != 0 {
			line = fmt.Sprintf("G1 X%.3f Y%.3f Z%.3f F%d", target.X, target.Y, p.ZAt(a.z, target.Y), feed)
		}
		if err := a.move(ctx, line); err != nil {
			return err
		}
		a.pos = target

	case robot.KindDwell:
		if cmd.Duration <= 0 {
			return nil
		}
		return a.move(ctx, fmt.Sprintf("G4 P%d", cmd.Duration.Milliseconds()))
	}
	return nil
}

func (a *Arm) movePen(ctx context.Context, up bool) error {
	if a.opts.PenLift != nil {
		if up {
			return a.opts.PenLift.Lift(ctx)
		}
		return a.opts.PenLift.Lower(ctx)
	}

	h := a.opts.Profile.PenDownHeight
	if up {
		h = a.opts.Profile.PenUpHeight
	}
	return a.moveZ(ctx, h)
}

// moveZ sets the nominal pen height h, corrected for tilt at the current Y.
func (a *Arm) moveZ(ctx context.Context, h float64) error {
	z := a.opts.Profile.ZAt(h, a.pos.Y)
	if err := a.move(ctx, fmt.Sprintf("G1 Z%.2f F%d", z, a.opts.TravelFeed)); err != nil {
		return err
	}
	a.z = h
	return nil
}

// move writes a motion line and blocks until the motion finished.
func (a *Arm) move(ctx context.Context, line string) error {
	if err := a.exchange(ctx, line, a.opts.AckTimeout); err != nil {
		return err
	}
	return a.exchange(ctx, "M400", a.opts.MotionTimeout)
}

// Park lifts the pen and returns to the session origin.
func (a *Arm) Park(ctx context.Context) error {
	if err := a.Send(ctx, robot.PenUp()); err != nil {
		return err
	}
	return a.Send(ctx, robot.MoveTo(0, 0))
}

// SetOrigin declares the current position as the origin with the pen at
// height z. Used by calibration, where the user placed the pen by hand.
func (a *Arm) SetOrigin(ctx context.Context, z float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.exchange(ctx, fmt.Sprintf("G92 X0 Y0 Z%.2f", z), a.opts.AckTimeout); err != nil {
		return err
	}
	a.pos = robot.Point{}
	a.z = z
	a.penUp = z > a.opts.Profile.PenDownHeight
	return nil
}

// Jog moves the pen vertically by dz millimeters.
func (a *Arm) Jog(ctx context.Context, dz float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.moveZ(ctx, a.z+dz); err != nil {
		return err
	}
	a.penUp = a.z > a.opts.Profile.PenDownHeight
	return nil
}

// CheckReady tests the connection with a position query. It never moves
// the arm.
func (a *Arm) CheckReady(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.exchange(ctx, "M114", a.opts.AckTimeout); err != nil {
		logrus.WithError(err).Debug("arm readiness check failed")
		return false
	}
	return true
}

// Closed reports whether the arm was disconnected or its port failed.
func (a *Arm) Closed() bool {
	select {
	case <-a.done:
		return true
	case <-a.readDone:
		return true
	default:
		return false
	}
}

// Disconnect releases the port. It is safe to call more than once.
func (a *Arm) Disconnect() error {
	a.closeOnce.Do(func() {
		close(a.done)
		var errs []error
		if a.opts.PenLift != nil {
			if err := a.opts.PenLift.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := a.port.Close(); err != nil {
			errs = append(errs, err)
		}
		a.closeErr = errors.Join(errs...)
		logrus.WithField("port", a.name).Info("arm disconnected")
	})
	return a.closeErr
}

// exchange writes one line and waits for its acknowledgement.
func (a *Arm) exchange(ctx context.Context, line string, timeout time.Duration) error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}

	a.drain()
	if _, err := a.port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write %q: %w", line, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w after %s: %s", ErrTransportTimeout, timeout, line)
		case <-a.readDone:
			return ErrClosed
		case resp := <-a.lines:
			switch {
			case isErrorReply(resp):
				return &protocolError{line: resp}
			case okPattern.MatchString(resp):
				return nil
			default:
				logrus.WithField("line", resp).Trace("arm report")
			}
		}
	}
}

// drain discards replies left over from an earlier, timed out command.
func (a *Arm) drain() {
	for {
		select {
		case resp := <-a.lines:
			logrus.WithField("line", resp).Debug("discarding stale arm reply")
		default:
			return
		}
	}
}

func isErrorReply(line string) bool {
	l := strings.ToLower(line)
	return strings.HasPrefix(l, "error") || strings.HasPrefix(l, "!!")
}

func (a *Arm) readLoop() {
	defer close(a.readDone)

	buf := make([]byte, 256)
	var pending []byte
	for {
		n, err := a.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := strings.TrimSpace(string(pending[:i]))
				pending = pending[i+1:]
				if line == "" {
					continue
				}
				select {
				case a.lines <- line:
				case <-a.done:
					return
				}
			}
		}
		if err != nil {
			select {
			case <-a.done:
			default:
				logrus.WithError(err).Warn("arm serial read failed")
			}
			return
		}
		select {
		case <-a.done:
			return
		default:
		}
	}
}
