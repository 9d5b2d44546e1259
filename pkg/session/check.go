package session

import (
	"context"
	"fmt"
	"time"

	"github.com/gwillem/robotross/pkg/robot"
)

// CheckItem is one line of a readiness report.
type CheckItem struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Readiness is the result of Check.
type Readiness struct {
	Items []CheckItem `json:"items"`
}

// Ready reports whether every item passed.
func (r Readiness) Ready() bool {
	for _, it := range r.Items {
		if !it.OK {
			return false
		}
	}
	return true
}

// Issues returns the details of the failed items.
func (r Readiness) Issues() []string {
	var out []string
	for _, it := range r.Items {
		if !it.OK {
			out = append(out, fmt.Sprintf("%s: %s", it.Name, it.Detail))
		}
	}
	return out
}

func (r *Readiness) add(name string, err error, ok string) {
	if err != nil {
		r.Items = append(r.Items, CheckItem{Name: name, Detail: err.Error()})
		return
	}
	r.Items = append(r.Items, CheckItem{Name: name, OK: true, Detail: ok})
}

type availability interface {
	Available() error
}

// Check reports whether a session could start now. It never moves the arm.
func (o *Orchestrator) Check(ctx context.Context) Readiness {
	var r Readiness

	profile, err := o.cfg.Profiles.Load()
	switch {
	case err != nil:
		r.add("calibration", err, "")
	case !o.cfg.Profiles.Exists():
		r.add("calibration", fmt.Errorf("no calibration file, run calibrate"), "")
	default:
		r.add("calibration", nil, fmt.Sprintf("pen down %.1f mm, up %.1f mm",
			profile.PenDownHeight, profile.PenUpHeight))
	}

	if o.cfg.Profiles.IsReady() {
		r.add("session", nil, "calibrated since boot")
	} else {
		r.add("session", fmt.Errorf("not calibrated this session, run calibrate"), "")
	}

	port, err := o.cfg.Arms.Locate(profile)
	r.add("port", err, port)

	if !o.cfg.Narrator.IsMuted() {
		if s, ok := o.cfg.Narrator.Speaker().(availability); ok {
			r.add("voice", s.Available(), "available")
		}
	}
	if b, ok := o.cfg.Beeper.(availability); ok {
		r.add("warning", b.Available(), "available")
	}

	if id, busy := o.Active(); busy {
		r.add("arm", nil, "busy with "+id)
		return r
	}
	if err == nil {
		r.add("arm", o.pingArm(ctx, profile), "answering")
	}
	return r
}

func (o *Orchestrator) pingArm(ctx context.Context, profile robot.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	a, err := o.cfg.Arms.Arm(ctx, profile)
	if err != nil {
		return err
	}
	if !a.CheckReady(ctx) {
		return fmt.Errorf("arm did not acknowledge")
	}
	return nil
}
