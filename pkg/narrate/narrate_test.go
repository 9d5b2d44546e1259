package narrate

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gwillem/robotross/pkg/robot"
)

// fakeSpeaker blocks every utterance until released or cancelled.
type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	fail    error
	release chan struct{}
	started chan string
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{
		release: make(chan struct{}),
		started: make(chan string, 16),
	}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	fail := f.fail
	f.mu.Unlock()
	f.started <- text

	if fail != nil {
		return fail
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitDone(t *testing.T, u *Utterance) {
	t.Helper()
	select {
	case <-u.Done():
	case <-time.After(time.Second):
		t.Fatalf("utterance %q did not finish", u.Segment.Text)
	}
}

func TestSpeakAsync_DoesNotBlock(t *testing.T) {
	s := newFakeSpeaker()
	c := NewCoordinator(s)
	defer c.Close()

	u := c.SpeakAsync(context.Background(), Intro("hello"))
	<-s.started
	if u.Finished() {
		t.Fatal("utterance finished before the speaker returned")
	}
	if c.Current() != u {
		t.Error("Current() is not the dispatched utterance")
	}

	close(s.release)
	if err := u.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if c.Current() != nil {
		t.Error("Current() still set after the utterance finished")
	}
}

func TestSpeak_FailureIsNarrationError(t *testing.T) {
	s := newFakeSpeaker()
	s.fail = errors.New("no voice")
	c := NewCoordinator(s)

	err := c.Speak(context.Background(), Outro("bye"))
	if !errors.Is(err, ErrNarration) {
		t.Fatalf("Speak() error = %v, want ErrNarration", err)
	}
	var nerr *NarrationError
	if !errors.As(err, &nerr) || nerr.Segment.Role != RoleOutro {
		t.Errorf("error = %#v, want outro NarrationError", err)
	}
}

func TestStopAll_CancelsInFlight(t *testing.T) {
	s := newFakeSpeaker()
	c := NewCoordinator(s)

	first := c.SpeakAsync(context.Background(), Intro("one"))
	second := c.SpeakAsync(context.Background(), Commentary("two"))
	<-s.started
	<-s.started

	if c.Current() != second {
		t.Error("Current() is not the most recent utterance")
	}

	start := time.Now()
	c.StopAll()
	waitDone(t, first)
	waitDone(t, second)
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Errorf("StopAll took %s", d)
	}

	for _, u := range []*Utterance{first, second} {
		if err := u.Wait(context.Background()); err != nil {
			t.Errorf("cancelled utterance Wait() = %v, want nil", err)
		}
	}
}

func TestWait_ContextEndsFirst(t *testing.T) {
	s := newFakeSpeaker()
	c := NewCoordinator(s)
	defer c.Close()

	u := c.SpeakAsync(context.Background(), Intro("long"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := u.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
	if u.Finished() {
		t.Error("utterance ended with the waiter's context")
	}
}

func TestUtteranceTimeout(t *testing.T) {
	s := newFakeSpeaker()
	c := NewCoordinator(s, WithTimeout(20*time.Millisecond))

	err := c.Speak(context.Background(), Commentary("stuck"))
	if !errors.Is(err, ErrNarration) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Speak() error = %v, want timed out narration", err)
	}
}

func TestMutedAndEmpty(t *testing.T) {
	s := newFakeSpeaker()

	tests := []struct {
		name string
		c    *Coordinator
		seg  Segment
	}{
		{"muted", NewCoordinator(s, Muted(true)), Intro("hello")},
		{"empty text", NewCoordinator(s), Outro("")},
		{"no speaker", NewCoordinator(nil), Intro("hello")},
	}

	for _, tt := range tests {
		u := tt.c.SpeakAsync(context.Background(), tt.seg)
		if !u.Finished() {
			t.Errorf("%s: utterance not finished immediately", tt.name)
		}
		if tt.c.Current() != nil {
			t.Errorf("%s: Current() set", tt.name)
		}
	}
	if len(s.spoken) != 0 {
		t.Errorf("speaker called with %q", s.spoken)
	}
}

func TestFallbackScript(t *testing.T) {
	tests := []struct {
		req  robot.DrawingRequest
		want string
	}{
		{robot.Shape(" Star ", 0), "lovely request for a star today"},
		{robot.Text("HI", 0), "lovely request for the words HI today"},
		{robot.SVG("logo.svg", "<svg/>", 0), "lovely request for a picture from logo.svg today"},
	}

	for _, tt := range tests {
		s, err := Fallback{}.Script(context.Background(), tt.req)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(s.Intro, tt.want) {
			t.Errorf("Intro = %q, want it to contain %q", s.Intro, tt.want)
		}
		if len(s.Commentary) != 5 || s.Outro == "" {
			t.Errorf("script = %+v", s)
		}
	}
}

func TestSaySpeaker(t *testing.T) {
	for _, bin := range []string{"true", "false"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}

	ok := SaySpeaker{Binary: "true"}
	if err := ok.Speak(context.Background(), "hello"); err != nil {
		t.Errorf("Speak() error = %v", err)
	}
	if err := ok.Available(); err != nil {
		t.Errorf("Available() error = %v", err)
	}

	bad := SaySpeaker{Binary: "false"}
	if err := bad.Speak(context.Background(), "hello"); err == nil {
		t.Error("Speak() succeeded with a failing binary")
	}
	if err := (SaySpeaker{Binary: "no-such-speech-binary"}).Available(); err == nil {
		t.Error("Available() found a missing binary")
	}
}

func TestAfplayBeeper(t *testing.T) {
	for _, bin := range []string{"true", "false"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}

	tests := []struct {
		name     string
		player   string
		fallback string
		wantErr  bool
	}{
		{"sound plays", "true", "false", false},
		{"spoken fallback", "false", "true", false},
		{"both fail", "false", "false", true},
	}

	for _, tt := range tests {
		b := AfplayBeeper{Player: tt.player, Fallback: tt.fallback, Gap: time.Millisecond}
		err := b.Beep(context.Background())
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Beep() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
