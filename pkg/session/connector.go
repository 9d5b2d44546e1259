package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gwillem/robotross/pkg/arm"
	"github.com/gwillem/robotross/pkg/robot"
)

// Arm is the part of the arm transport a session drives.
type Arm interface {
	Send(ctx context.Context, cmd robot.Command) error
	Park(ctx context.Context) error
	CheckReady(ctx context.Context) bool
	Position() robot.Point
	SetProfile(p robot.Profile)
}

// ArmProvider hands out the arm connection. The connection outlives a
// session so the arm is not re-homed for every drawing.
type ArmProvider interface {
	// Locate returns the serial port that would be used, without opening it.
	Locate(p robot.Profile) (string, error)
	Arm(ctx context.Context, p robot.Profile) (Arm, error)
	Close() error
}

// Connector connects to the arm on first use and keeps the handle.
type Connector struct {
	Options arm.Options

	// Resolve picks the port for a profile. Empty means auto-detect.
	Resolve func(robot.Profile) string

	// PenLift builds an optional pen lift for each new connection.
	PenLift func() (arm.PenLift, error)

	mu  sync.Mutex
	arm *arm.Arm
}

var connect = arm.Connect

func (c *Connector) port(p robot.Profile) string {
	if c.Resolve != nil {
		return c.Resolve(p)
	}
	if c.Options.Port != "" {
		return c.Options.Port
	}
	return p.PortOverride
}

func (c *Connector) Locate(p robot.Profile) (string, error) {
	name := c.port(p)
	if name == "" {
		return arm.Detect()
	}
	if _, err := os.Stat(name); err != nil {
		return "", fmt.Errorf("%w: %s", arm.ErrDeviceNotFound, name)
	}
	return name, nil
}

func (c *Connector) Arm(ctx context.Context, p robot.Profile) (Arm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.arm != nil && !c.arm.Closed() {
		c.arm.SetProfile(p)
		return c.arm, nil
	}

	opts := c.Options
	opts.Port = c.port(p)
	opts.Profile = p
	if c.PenLift != nil {
		lift, err := c.PenLift()
		if err != nil {
			return nil, fmt.Errorf("pen lift: %w", err)
		}
		opts.PenLift = lift
	}

	a, err := connect(ctx, opts)
	if err != nil {
		if opts.PenLift != nil {
			opts.PenLift.Close()
		}
		return nil, err
	}
	logrus.WithField("port", a.Name()).Debug("arm handle created")
	c.arm = a
	return a, nil
}

// Current returns the open arm, or nil.
func (c *Connector) Current() *arm.Arm {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.arm == nil || c.arm.Closed() {
		return nil
	}
	return c.arm
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.arm == nil {
		return nil
	}
	err := c.arm.Disconnect()
	c.arm = nil
	return err
}
