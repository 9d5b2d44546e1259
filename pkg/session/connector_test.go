package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gwillem/robotross/pkg/arm"
	"github.com/gwillem/robotross/pkg/narrate"
	"github.com/gwillem/robotross/pkg/plan"
	"github.com/gwillem/robotross/pkg/robot"
)

// serialStub acknowledges every line unless drop says otherwise.
type serialStub struct {
	mu      sync.Mutex
	written []string
	drop    func(line string) bool

	rx        chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newSerialStub(drop func(string) bool) *serialStub {
	return &serialStub{drop: drop, rx: make(chan string, 256), closed: make(chan struct{})}
}

func (s *serialStub) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	s.mu.Lock()
	s.written = append(s.written, line)
	s.mu.Unlock()
	if s.drop == nil || !s.drop(line) {
		s.rx <- "ok\n"
	}
	return len(p), nil
}

func (s *serialStub) Read(p []byte) (int, error) {
	select {
	case r := <-s.rx:
		return copy(p, r), nil
	case <-s.closed:
		return 0, errors.New("closed")
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (s *serialStub) SetReadTimeout(time.Duration) error { return nil }

func (s *serialStub) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *serialStub) count(pred func(string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.written {
		if pred(l) {
			n++
		}
	}
	return n
}

func stubConnect(t *testing.T, port *serialStub) *int {
	t.Helper()
	orig := connect
	t.Cleanup(func() { connect = orig })

	var opened int
	connect = func(ctx context.Context, opts arm.Options) (*arm.Arm, error) {
		opened++
		return arm.New(ctx, port, "stub", opts)
	}
	return &opened
}

func testConnector() *Connector {
	return &Connector{Options: arm.Options{
		AckTimeout:    50 * time.Millisecond,
		MotionTimeout: 50 * time.Millisecond,
		RetryBackoff:  time.Millisecond,
	}}
}

func TestConnector_KeepsHandle(t *testing.T) {
	port := newSerialStub(nil)
	opened := stubConnect(t, port)
	c := testConnector()
	defer c.Close()

	ctx := context.Background()
	a1, err := c.Arm(ctx, robot.DefaultProfile())
	if err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	a2, err := c.Arm(ctx, robot.DefaultProfile())
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 || *opened != 1 {
		t.Errorf("connected %d times, want a single persistent handle", *opened)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.Current() != nil {
		t.Error("Current() after Close")
	}
}

func TestConnector_Locate(t *testing.T) {
	dev := filepath.Join(t.TempDir(), "ttyUSB0")
	if err := os.WriteFile(dev, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Connector{}
	got, err := c.Locate(robot.Profile{PortOverride: dev})
	if err != nil || got != dev {
		t.Errorf("Locate(override) = %q, %v", got, err)
	}

	c.Resolve = func(robot.Profile) string { return dev + ".missing" }
	if _, err := c.Locate(robot.Profile{PortOverride: dev}); !errors.Is(err, arm.ErrDeviceNotFound) {
		t.Errorf("Locate(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRun_RetryThenFailOverSerial(t *testing.T) {
	drawMove := func(l string) bool { return strings.HasPrefix(l, "G1 X") && strings.HasSuffix(l, "F400") }
	var dropped []string
	port := newSerialStub(func(l string) bool {
		if drawMove(l) {
			dropped = append(dropped, l)
			return true
		}
		return false
	})
	stubConnect(t, port)
	conn := testConnector()
	defer conn.Close()

	narrator := narrate.NewCoordinator(nil, narrate.Muted(true))
	o := New(Config{
		Planner:  plan.New(),
		Arms:     conn,
		Profiles: &memStore{profile: robot.DefaultProfile(), ready: true, exists: true},
		Narrator: narrator,
	})

	res, err := o.Run(context.Background(), robot.Shape("square", 0))
	if !errors.Is(err, arm.ErrArmFault) || !errors.Is(err, arm.ErrTransportTimeout) {
		t.Fatalf("Run() error = %v, want timed out arm fault", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %s", res.Outcome)
	}
	if n := port.count(drawMove); n != 2 {
		t.Errorf("first drawing move written %d times, want 2 (%q)", n, dropped)
	}
	if n := port.count(func(l string) bool { return strings.HasPrefix(l, "G1 X0.000 Y0.000") }); n != 0 {
		t.Error("arm parked after a fault")
	}
	if conn.Current() == nil {
		t.Error("arm handle closed after a fault")
	}
	if o.State() != Idle {
		t.Errorf("State() = %v, want Idle", o.State())
	}
}
