package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gwillem/robotross/pkg/arm"
	"github.com/gwillem/robotross/pkg/narrate"
	"github.com/gwillem/robotross/pkg/plan"
	"github.com/gwillem/robotross/pkg/robot"
	"github.com/gwillem/robotross/pkg/session"
	"github.com/gwillem/robotross/pkg/telemetry"
)

// app is the wiring shared by all commands.
type app struct {
	cfg          *robot.Config
	store        *robot.Store
	conn         *session.Connector
	narrator     *narrate.Coordinator
	orchestrator *session.Orchestrator

	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, noVoice bool) (*app, error) {
	cfg, err := robot.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, "robotross", cfg.OTelEndpoint)
	if err != nil {
		logrus.WithError(err).Warn("tracing disabled")
		shutdown = func(context.Context) error { return nil }
	}

	conn := &session.Connector{
		Options: arm.Options{
			Baud:          cfg.Baud,
			AckTimeout:    cfg.AckTimeout,
			MotionTimeout: cfg.MotionTimeout,
			RetryBackoff:  cfg.RetryBackoff,
			DrawFeed:      cfg.DrawFeed,
			TravelFeed:    cfg.TravelFeed,
		},
		Resolve: cfg.ResolvePort,
	}
	if cfg.PenServoPort != "" {
		conn.PenLift = func() (arm.PenLift, error) {
			lift, err := arm.NewServoLift(context.Background(), arm.ServoLiftConfig{
				Port: cfg.PenServoPort,
				ID:   cfg.PenServoID,
				Up:   cfg.PenServoUp,
				Down: cfg.PenServoDown,
			})
			if err != nil {
				return nil, err
			}
			return lift, nil
		}
	}

	speaker := narrate.SaySpeaker{Voice: cfg.Voice, Rate: cfg.VoiceRate}
	narrator := narrate.NewCoordinator(speaker, narrate.Muted(noVoice))

	var scripts narrate.ScriptSource
	if cfg.ScriptFile != "" {
		scripts = narrate.FileSource{Path: cfg.ScriptFile}
	}

	store := cfg.Store()
	o := session.New(session.Config{
		Planner:  plan.New(),
		Arms:     conn,
		Profiles: store,
		Narrator: narrator,
		Beeper: narrate.AfplayBeeper{
			Sound: cfg.WarningSound,
			Voice: cfg.Voice,
		},
		Scripts:            scripts,
		CommentaryInterval: cfg.CommentaryInterval,
	})

	return &app{
		cfg:             cfg,
		store:           store,
		conn:            conn,
		narrator:        narrator,
		orchestrator:    o,
		shutdownTracing: shutdown,
	}, nil
}

func (a *app) Close() {
	a.narrator.Close()
	if err := a.conn.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close arm connection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		logrus.WithError(err).Debug("failed to flush traces")
	}
}
