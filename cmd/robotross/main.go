package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	LogLevel string `long:"log-level" default:"info" description:"Log level (trace, debug, info, warn, error)"`

	Write     WriteCommand     `command:"write" description:"Write text on the paper"`
	Draw      DrawCommand      `command:"draw" description:"Draw a shape (square, triangle, circle, star, diamond)"`
	SVG       SVGCommand       `command:"svg" description:"Draw the paths of an SVG file"`
	Check     CheckCommand     `command:"check" description:"Check that the arm, calibration and voice are ready"`
	Calibrate CalibrateCommand `command:"calibrate" description:"Set the pen heights for this session"`
	Serve     ServeCommand     `command:"serve" description:"Accept drawing requests over HTTP"`
	Ports     PortsCommand     `command:"ports" description:"List serial ports and scan for pen servos"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

var errNotReady = errors.New("system not ready")

func main() {
	parser.LongDescription = "robotross - narrated drawing with a desktop robot arm"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if err := setupLogger(opts.LogLevel); err != nil {
			return err
		}
		return cmd.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
