package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/robotross/pkg/robot"
)

var ErrSessionBusy = errors.New("a drawing session is already active")

// State is the phase of the current session.
type State int

const (
	Idle State = iota
	Warning
	Introducing
	Drawing
	Outroing
	Stopped
	Failed
)

var stateNames = map[State]string{
	Idle:        "idle",
	Warning:     "warning",
	Introducing: "introducing",
	Drawing:     "drawing",
	Outroing:    "outroing",
	Stopped:     "stopped",
	Failed:      "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateChange is sent on every transition.
type StateChange struct {
	Session string
	From    State
	To      State
	Time    time.Time
	Err     error
}

// Progress is sent after every acknowledged command.
type Progress struct {
	Session  string
	Index    int
	Total    int
	Segment  string
	Command  robot.Command
	Position robot.Point
}

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
	// OutcomeRejected means the request never started: it could not be
	// planned or the calibration could not be read.
	OutcomeRejected Outcome = "rejected"
)

// Result summarizes a finished session.
type Result struct {
	ID       string               `json:"id"`
	Request  robot.DrawingRequest `json:"-"`
	Outcome  Outcome              `json:"outcome"`
	Message  string               `json:"message"`
	Executed int                  `json:"executed"`
	Total    int                  `json:"total"`
	Elapsed  time.Duration        `json:"elapsed"`
}

// OK reports whether the drawing completed.
func (r Result) OK() bool {
	return r.Outcome == OutcomeCompleted
}

// Lock admits one session at a time.
type Lock struct {
	mu    sync.Mutex
	owner string
}

// TryAcquire takes the lock for owner, or reports false if it is held.
func (l *Lock) TryAcquire(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" {
		return false
	}
	l.owner = owner
	return true
}

// Release frees the lock.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owner = ""
}

// Holder returns the current owner, if any.
func (l *Lock) Holder() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner, l.owner != ""
}
