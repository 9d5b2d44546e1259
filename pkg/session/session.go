// Package session runs drawing sessions: the warning, the narrated drawing
// and the outro, one session at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gwillem/robotross/pkg/narrate"
	"github.com/gwillem/robotross/pkg/plan"
	"github.com/gwillem/robotross/pkg/robot"
)

// Planner turns a request into arm commands.
type Planner interface {
	Plan(req robot.DrawingRequest, profile robot.Profile) (*plan.Plan, error)
}

// ProfileStore persists the calibration. *robot.Store satisfies it.
type ProfileStore interface {
	Load() (robot.Profile, error)
	Save(p robot.Profile) error
	MarkReady(p robot.Profile) error
	IsReady() bool
	Exists() bool
}

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Planner  Planner
	Arms     ArmProvider
	Profiles ProfileStore
	Narrator *narrate.Coordinator
	Beeper   narrate.Beeper
	Scripts  narrate.ScriptSource
	Lock     *Lock

	// CommentaryInterval is the minimum time between commentary phrases.
	CommentaryInterval time.Duration
	// OutroWait bounds how long the outro waits for earlier speech.
	OutroWait time.Duration
}

// Orchestrator sequences warning, narration and motion for one session at
// a time.
type Orchestrator struct {
	cfg Config

	mu       sync.RWMutex
	state    State
	id       string
	cancel   context.CancelFunc
	stopping bool

	stateCh    chan StateChange
	logCh      chan string
	progressCh chan Progress
}

// New creates an orchestrator. Planner, Arms and Profiles are required.
func New(cfg Config) *Orchestrator {
	if cfg.Narrator == nil {
		cfg.Narrator = narrate.NewCoordinator(nil, narrate.Muted(true))
	}
	if cfg.Scripts == nil {
		cfg.Scripts = narrate.Fallback{}
	}
	if cfg.Lock == nil {
		cfg.Lock = &Lock{}
	}
	if cfg.OutroWait == 0 {
		cfg.OutroWait = 10 * time.Second
	}

	return &Orchestrator{
		cfg:        cfg,
		stateCh:    make(chan StateChange, 16),
		logCh:      make(chan string, 32),
		progressCh: make(chan Progress, 1),
	}
}

// States returns a channel that receives state transitions.
func (o *Orchestrator) States() <-chan StateChange {
	return o.stateCh
}

// Logs returns a channel that receives human readable progress lines.
func (o *Orchestrator) Logs() <-chan string {
	return o.logCh
}

// Progress returns a channel that receives the latest command progress.
func (o *Orchestrator) Progress() <-chan Progress {
	return o.progressCh
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Active returns the id of the running session, if any.
func (o *Orchestrator) Active() (string, bool) {
	return o.cfg.Lock.Holder()
}

func (o *Orchestrator) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case o.logCh <- msg:
	default:
		// Drop if channel full
	}
}

func (o *Orchestrator) transition(to State, err error) {
	o.mu.Lock()
	from := o.state
	o.state = to
	id := o.id
	o.mu.Unlock()

	logrus.WithFields(logrus.Fields{"session": id, "from": from, "to": to}).Debug("session state")
	select {
	case o.stateCh <- StateChange{Session: id, From: from, To: to, Time: time.Now(), Err: err}:
	default:
	}
}

func (o *Orchestrator) sendProgress(p Progress) {
	select {
	case o.progressCh <- p:
	default:
		// Replace the stale update
		select {
		case <-o.progressCh:
		default:
		}
		select {
		case o.progressCh <- p:
		default:
		}
	}
}

// Stop asks the running session to halt after the command in flight and
// silences narration right away. It is a no-op when idle.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	if cancel != nil {
		o.stopping = true
	}
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	o.log("Stop requested")
	o.cfg.Narrator.StopAll()
	cancel()
}

func (o *Orchestrator) stopRequested() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stopping
}

// Run executes one drawing session and blocks until it ends. Planning and
// calibration errors are returned before anything moves. A stopped session
// returns a nil error with OutcomeStopped.
func (o *Orchestrator) Run(ctx context.Context, req robot.DrawingRequest) (res Result, err error) {
	id := uuid.NewString()
	res = Result{ID: id, Request: req}

	if !o.cfg.Lock.TryAcquire(id) {
		return res, ErrSessionBusy
	}
	defer o.cfg.Lock.Release()

	log := logrus.WithFields(logrus.Fields{"session": id, "request": req.String()})

	ctx, span := tracer.Start(ctx, "session.run", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("session.kind", req.Kind.String()),
	))
	defer span.End()

	// Stop cancels runCtx. Arm commands use moveCtx so the move in flight
	// completes.
	runCtx, cancel := context.WithCancel(ctx)
	moveCtx := context.WithoutCancel(ctx)
	stopOnCancel := context.AfterFunc(ctx, o.Stop)

	o.mu.Lock()
	o.id = id
	o.cancel = cancel
	o.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
			o.cfg.Narrator.StopAll()
			o.transition(Failed, err)
			res.Outcome, res.Message = OutcomeFailed, err.Error()
		}
		stopOnCancel()
		cancel()

		res.Elapsed = time.Since(start)
		span.SetAttributes(
			attribute.String("session.outcome", string(res.Outcome)),
			attribute.Int("session.executed", res.Executed),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		log.WithFields(logrus.Fields{
			"outcome":  res.Outcome,
			"executed": res.Executed,
			"elapsed":  res.Elapsed.Round(100 * time.Millisecond),
		}).Info("session finished")

		o.mu.Lock()
		o.cancel = nil
		o.stopping = false
		o.mu.Unlock()
		// Rejected requests never left Idle.
		if o.State() != Idle {
			o.transition(Idle, nil)
		}
	}()

	profile, err := o.cfg.Profiles.Load()
	if err != nil {
		return o.reject(res, err), err
	}
	p, err := o.cfg.Planner.Plan(req, profile)
	if err != nil {
		return o.reject(res, err), err
	}
	res.Total = p.Len()
	span.SetAttributes(attribute.Int("session.commands", res.Total))

	script := o.script(runCtx, req)
	if o.stopRequested() || ctx.Err() != nil {
		return o.stopped(moveCtx, res, nil, narrate.AbortNotice), nil
	}

	log.WithField("commands", res.Total).Info("session started")
	o.log("Session %s: %s (%d commands)", id[:8], req, res.Total)

	// Warning
	o.transition(Warning, nil)
	o.warn(runCtx)
	if o.stopRequested() {
		return o.stopped(moveCtx, res, nil, narrate.AbortNotice), nil
	}

	// Intro
	o.transition(Introducing, nil)
	o.log("Intro: %s", script.Intro)
	o.cfg.Narrator.SpeakAsync(runCtx, narrate.Intro(script.Intro))

	// Drawing
	o.transition(Drawing, nil)
	a, err := o.cfg.Arms.Arm(moveCtx, profile)
	if err != nil {
		err = fmt.Errorf("connect arm: %w", err)
		return o.failed(moveCtx, res, err), err
	}

	commentary := &commentator{phrases: script.Commentary, interval: o.cfg.CommentaryInterval, last: time.Now()}
	for seg := range p.Segments() {
		for _, cmd := range seg.Commands {
			if o.stopRequested() || ctx.Err() != nil {
				return o.stopped(moveCtx, res, a, narrate.StopNotice), nil
			}
			if err := a.Send(moveCtx, cmd); err != nil {
				return o.failed(moveCtx, res, err), err
			}
			res.Executed++
			o.sendProgress(Progress{
				Session:  id,
				Index:    res.Executed,
				Total:    res.Total,
				Segment:  seg.Label,
				Command:  cmd,
				Position: a.Position(),
			})
		}
		o.log("Finished %s", seg.Label)
		commentary.next(runCtx, o)
	}

	// Outro
	o.transition(Outroing, nil)
	if err := a.Park(moveCtx); err != nil {
		log.WithError(err).Warn("park after drawing failed")
		o.log("Warning: park failed: %v", err)
	}
	if u := o.cfg.Narrator.Current(); u != nil {
		wctx, wcancel := context.WithTimeout(runCtx, o.cfg.OutroWait)
		u.Wait(wctx)
		wcancel()
	}
	o.log("Outro: %s", script.Outro)
	if err := o.cfg.Narrator.Speak(runCtx, narrate.Outro(script.Outro)); err != nil {
		log.WithError(err).Debug("outro not spoken")
	}

	res.Outcome = OutcomeCompleted
	res.Message = fmt.Sprintf("%s finished", req)
	return res, nil
}

func (o *Orchestrator) reject(res Result, err error) Result {
	logrus.WithError(err).WithField("request", res.Request.String()).Warn("request rejected")
	o.log("Rejected %s: %v", res.Request, err)
	res.Outcome = OutcomeRejected
	res.Message = err.Error()
	return res
}

func (o *Orchestrator) script(ctx context.Context, req robot.DrawingRequest) narrate.Script {
	if o.cfg.Narrator.IsMuted() {
		return narrate.Script{}
	}
	s, err := o.cfg.Scripts.Script(ctx, req)
	if err != nil {
		logrus.WithError(err).Warn("narration script unavailable, using fallback")
		o.log("Using fallback narration")
		return narrate.FallbackScript(req)
	}
	return s
}

// warn plays the warning beeps, and speaks the warning if no beep could be
// played. Either way it returns only once the warning is over.
func (o *Orchestrator) warn(ctx context.Context) {
	o.log("Warning: stand clear")
	if o.cfg.Beeper != nil {
		err := o.cfg.Beeper.Beep(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		logrus.WithError(err).Warn("warning beep failed, speaking the warning")
	}
	if err := o.cfg.Narrator.Speak(ctx, narrate.Warning(narrate.WarningNotice)); err != nil {
		logrus.WithError(err).Warn("warning not spoken")
	}
}

func (o *Orchestrator) stopped(ctx context.Context, res Result, a Arm, notice string) Result {
	o.transition(Stopped, nil)
	o.cfg.Narrator.StopAll()

	if a != nil {
		if err := a.Send(ctx, robot.PenUp()); err != nil {
			logrus.WithError(err).Warn("lift pen after stop failed")
		}
	}
	o.log("Stopped after %d of %d commands", res.Executed, res.Total)
	o.cfg.Narrator.Speak(ctx, narrate.Outro(notice))

	res.Outcome = OutcomeStopped
	res.Message = fmt.Sprintf("stopped after %d of %d commands", res.Executed, res.Total)
	return res
}

// failed leaves the arm where it last acknowledged and keeps the handle.
func (o *Orchestrator) failed(ctx context.Context, res Result, err error) Result {
	o.transition(Failed, err)
	o.cfg.Narrator.StopAll()

	logrus.WithError(err).WithField("executed", res.Executed).Error("session failed")
	o.log("Failed: %v", err)
	o.cfg.Narrator.Speak(ctx, narrate.Outro(narrate.FailureNotice))

	res.Outcome = OutcomeFailed
	res.Message = err.Error()
	return res
}

// Calibrate validates and saves a profile and marks the arm ready. It is
// refused while a session runs.
func (o *Orchestrator) Calibrate(ctx context.Context, p robot.Profile) error {
	if !o.cfg.Lock.TryAcquire("calibrate") {
		return ErrSessionBusy
	}
	defer o.cfg.Lock.Release()

	if err := o.cfg.Profiles.Save(p); err != nil {
		return err
	}
	if err := o.cfg.Profiles.MarkReady(p); err != nil {
		return err
	}
	logrus.WithFields(p.LogrusFields()).Info("calibration saved")
	o.log("Calibration saved")
	return nil
}

type commentator struct {
	phrases  []string
	interval time.Duration
	last     time.Time
	i        int
}

// next speaks the next phrase once the interval elapsed and nothing else
// is being said.
func (c *commentator) next(ctx context.Context, o *Orchestrator) {
	if c.i >= len(c.phrases) || time.Since(c.last) < c.interval {
		return
	}
	if o.cfg.Narrator.Current() != nil {
		return
	}
	phrase := c.phrases[c.i]
	c.i++
	c.last = time.Now()
	o.log("Commentary: %s", phrase)
	o.cfg.Narrator.SpeakAsync(ctx, narrate.Commentary(phrase))
}

// IsRejected reports whether err aborted a request before anything moved.
func IsRejected(err error) bool {
	return errors.Is(err, plan.ErrUnsupportedShape) ||
		errors.Is(err, plan.ErrUnsupportedGlyph) ||
		errors.Is(err, plan.ErrEmptyDrawing) ||
		errors.Is(err, plan.ErrInvalidSVG) ||
		errors.Is(err, robot.ErrConfiguration)
}
