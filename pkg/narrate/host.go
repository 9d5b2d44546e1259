package narrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultVoice        = "Evan"
	DefaultRate         = 160
	DefaultWarningSound = "/System/Library/Sounds/Ping.aiff"
)

// run executes a host program and folds its output into the error.
func run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := bytes.TrimSpace(out); len(msg) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// SaySpeaker speaks through the macOS say command.
type SaySpeaker struct {
	Voice string
	Rate  int

	// Binary defaults to "say".
	Binary string
}

func (s SaySpeaker) binary() string {
	if s.Binary == "" {
		return "say"
	}
	return s.Binary
}

func (s SaySpeaker) Speak(ctx context.Context, text string) error {
	voice, rate := s.Voice, s.Rate
	if voice == "" {
		voice = DefaultVoice
	}
	if rate <= 0 {
		rate = DefaultRate
	}
	return run(ctx, s.binary(), "-v", voice, "-r", strconv.Itoa(rate), text)
}

// Available reports whether the speech binary can be found.
func (s SaySpeaker) Available() error {
	_, err := exec.LookPath(s.binary())
	return err
}

// AfplayBeeper plays a system sound a few times, falling back to a spoken
// "beep" when the sound cannot be played.
type AfplayBeeper struct {
	Sound string
	Count int
	Gap   time.Duration
	Voice string

	// Player and Fallback default to afplay and say.
	Player   string
	Fallback string
}

func (b AfplayBeeper) withDefaults() AfplayBeeper {
	if b.Sound == "" {
		b.Sound = DefaultWarningSound
	}
	if b.Count <= 0 {
		b.Count = 3
	}
	if b.Gap == 0 {
		b.Gap = 500 * time.Millisecond
	}
	if b.Voice == "" {
		b.Voice = DefaultVoice
	}
	if b.Player == "" {
		b.Player = "afplay"
	}
	if b.Fallback == "" {
		b.Fallback = "say"
	}
	return b
}

// Beep plays the warning. It fails only when neither the sound nor the
// spoken fallback could be played.
func (b AfplayBeeper) Beep(ctx context.Context) error {
	b = b.withDefaults()

	for i := range b.Count {
		if i > 0 {
			select {
			case <-time.After(b.Gap):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := b.once(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b AfplayBeeper) once(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := run(ctx, b.Player, b.Sound)
	if err == nil {
		return nil
	}
	logrus.WithError(err).Debug("warning sound failed, saying beep")

	if ferr := run(ctx, b.Fallback, "-v", b.Voice, "beep"); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}

// Available reports whether the warning sound and its player exist.
func (b AfplayBeeper) Available() error {
	b = b.withDefaults()
	if _, err := exec.LookPath(b.Player); err != nil {
		return err
	}
	if _, err := os.Stat(b.Sound); err != nil {
		return err
	}
	return nil
}
