package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/gwillem/robotross/pkg/api"
)

type ServeCommand struct {
	Listen  string `long:"listen" description:"Address to listen on (default from ROBOTROSS_LISTEN)"`
	NoVoice bool   `long:"no-voice" description:"Draw without narration"`
}

func (c *ServeCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.NoVoice)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := c.Listen
	if addr == "" {
		addr = a.cfg.Listen
	}

	if err := api.Serve(ctx, addr, a.orchestrator); err != nil {
		return err
	}
	logrus.Info("exiting")
	return nil
}
