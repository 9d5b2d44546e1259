// Package narrate plays spoken segments alongside arm motion.
//
// Each segment becomes an Utterance that runs on its own goroutine, so the
// caller is never blocked by a slow or failing voice. Failures are logged
// and reported through Utterance.Wait only.
package narrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Role is the part a segment plays in a session.
type Role int

const (
	RoleWarning Role = iota + 1
	RoleIntro
	RoleCommentary
	RoleOutro
)

func (r Role) String() string {
	switch r {
	case RoleWarning:
		return "warning"
	case RoleIntro:
		return "intro"
	case RoleCommentary:
		return "commentary"
	case RoleOutro:
		return "outro"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Segment is one piece of narration.
type Segment struct {
	Role Role
	Text string
}

func Warning(text string) Segment    { return Segment{Role: RoleWarning, Text: text} }
func Intro(text string) Segment      { return Segment{Role: RoleIntro, Text: text} }
func Commentary(text string) Segment { return Segment{Role: RoleCommentary, Text: text} }
func Outro(text string) Segment      { return Segment{Role: RoleOutro, Text: text} }

// Speaker says a piece of text and returns when it has been spoken.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Beeper plays the audible warning before the arm moves.
type Beeper interface {
	Beep(ctx context.Context) error
}

var ErrNarration = errors.New("narration failed")

// NarrationError is returned by Utterance.Wait when the speaker failed.
type NarrationError struct {
	Segment Segment
	Err     error
}

func (e *NarrationError) Error() string {
	return fmt.Sprintf("narrate %s: %v", e.Segment.Role, e.Err)
}

func (e *NarrationError) Unwrap() error { return e.Err }

func (e *NarrationError) Is(target error) bool { return target == ErrNarration }

// Utterance is a segment being spoken.
type Utterance struct {
	Segment Segment

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed once the utterance finished, failed or was cancelled.
func (u *Utterance) Done() <-chan struct{} {
	return u.done
}

// Finished reports whether Done is closed.
func (u *Utterance) Finished() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the utterance ends. It returns nil or a
// *NarrationError, or ctx.Err() when ctx ends first. A cancelled utterance
// is not a failure.
func (u *Utterance) Wait(ctx context.Context) error {
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel silences this utterance.
func (u *Utterance) Cancel() {
	u.cancel()
}

func finished(seg Segment) *Utterance {
	u := &Utterance{Segment: seg, cancel: func() {}, done: make(chan struct{})}
	close(u.done)
	return u
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// Muted makes every utterance complete immediately without speaking.
func Muted(muted bool) Option {
	return func(c *Coordinator) { c.muted = muted }
}

// WithTimeout bounds a single utterance.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// Coordinator dispatches utterances to a Speaker.
type Coordinator struct {
	speaker Speaker
	muted   bool
	timeout time.Duration

	mu      sync.Mutex
	current *Utterance
	active  map[*Utterance]struct{}
	wg      sync.WaitGroup
}

// NewCoordinator returns a coordinator speaking through s.
func NewCoordinator(s Speaker, opts ...Option) *Coordinator {
	c := &Coordinator{
		speaker: s,
		timeout: 90 * time.Second,
		active:  make(map[*Utterance]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Speaker returns the underlying speaker.
func (c *Coordinator) Speaker() Speaker {
	return c.speaker
}

// IsMuted reports whether the coordinator was muted.
func (c *Coordinator) IsMuted() bool {
	return c.muted
}

// SpeakAsync starts speaking seg and returns immediately. Cancelling ctx
// cancels the utterance.
func (c *Coordinator) SpeakAsync(ctx context.Context, seg Segment) *Utterance {
	if c.muted || c.speaker == nil || seg.Text == "" {
		return finished(seg)
	}

	uctx, cancel := context.WithTimeout(ctx, c.timeout)
	u := &Utterance{Segment: seg, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.current = u
	c.active[u] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.play(uctx, u)
	return u
}

// Speak speaks seg and waits for it to end.
func (c *Coordinator) Speak(ctx context.Context, seg Segment) error {
	return c.SpeakAsync(ctx, seg).Wait(ctx)
}

func (c *Coordinator) play(ctx context.Context, u *Utterance) {
	defer c.wg.Done()
	defer u.cancel()

	ctx, span := tracer.Start(ctx, "narrate.speak", trace.WithAttributes(
		attribute.String("narrate.role", u.Segment.Role.String()),
	))
	defer span.End()

	log := logrus.WithField("role", u.Segment.Role.String())
	log.WithField("text", u.Segment.Text).Debug("speaking")

	err := c.speaker.Speak(ctx, u.Segment.Text)
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.Canceled):
		log.Debug("narration cancelled")
		err = nil
	default:
		log.WithError(err).Warn("narration failed")
		err = &NarrationError{Segment: u.Segment, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	c.mu.Lock()
	u.err = err
	delete(c.active, u)
	if c.current == u {
		c.current = nil
	}
	c.mu.Unlock()
	close(u.done)
}

// Current returns the most recently dispatched utterance while it is still
// playing, or nil.
func (c *Coordinator) Current() *Utterance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// StopAll cancels every utterance in flight.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for u := range c.active {
		u.cancel()
	}
	if n := len(c.active); n > 0 {
		logrus.WithField("count", n).Debug("narration stopped")
	}
}

// Close stops all narration and waits for the speaker goroutines to exit.
func (c *Coordinator) Close() {
	c.StopAll()
	c.wg.Wait()
}
