package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/robotross/pkg/robot"
	"github.com/gwillem/robotross/pkg/session"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var errIncomplete = errors.New("drawing did not complete")

type WriteCommand struct {
	Size    float64 `long:"size" description:"Letter height in mm (default 10)"`
	NoVoice bool    `long:"no-voice" description:"Draw without narration"`

	Args struct {
		Text []string `positional-arg-name:"TEXT" required:"1"`
	} `positional-args:"yes"`
}

func (c *WriteCommand) Execute(args []string) error {
	return runSession(robot.Text(strings.Join(c.Args.Text, " "), c.Size), c.NoVoice)
}

type DrawCommand struct {
	Size    float64 `long:"size" description:"Shape size in mm (default 30)"`
	NoVoice bool    `long:"no-voice" description:"Draw without narration"`

	Args struct {
		Shape string `positional-arg-name:"SHAPE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *DrawCommand) Execute(args []string) error {
	return runSession(robot.Shape(c.Args.Shape, c.Size), c.NoVoice)
}

type SVGCommand struct {
	Size    float64 `long:"size" description:"Largest dimension in mm (default 80)"`
	NoVoice bool    `long:"no-voice" description:"Draw without narration"`

	Args struct {
		File string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *SVGCommand) Execute(args []string) error {
	req, err := loadSVG(c.Args.File, c.Size)
	if err != nil {
		return err
	}
	return runSession(req, c.NoVoice)
}

// maxSVGSize bounds the documents read into memory.
const maxSVGSize = 4 << 20

func loadSVG(path string, size float64) (robot.DrawingRequest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return robot.DrawingRequest{}, fmt.Errorf("svg file: %w", err)
	}
	if info.Size() > maxSVGSize {
		return robot.DrawingRequest{}, fmt.Errorf("svg file %s is %d bytes, the limit is %d", path, info.Size(), maxSVGSize)
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return robot.DrawingRequest{}, fmt.Errorf("svg file: %w", err)
	}
	return robot.SVG(filepath.Base(path), string(doc), size), nil
}

func runSession(req robot.DrawingRequest, noVoice bool) error {
	ctx := context.Background()

	a, err := newApp(ctx, noVoice)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.store.IsReady() {
		logrus.Warn("arm not calibrated this session, run 'robotross calibrate' first")
	}

	var res session.Result
	if isTerminal() {
		res, err = runWithView(ctx, a, req)
	} else {
		res, err = runPlain(ctx, a.orchestrator, req)
	}

	switch {
	case err != nil:
		fmt.Println(failStyle.Render("Failed: ") + err.Error())
		return errIncomplete
	case !res.OK():
		fmt.Println(failStyle.Render("Stopped: ") + res.Message)
		return errIncomplete
	default:
		fmt.Println(successStyle.Render("Done: ") + res.Message +
			dimStyle.Render(fmt.Sprintf(" (%d commands in %s)", res.Executed, res.Elapsed.Round(100*time.Millisecond))))
		return nil
	}
}

// runPlain prints progress lines and turns SIGINT/SIGTERM into a stop.
func runPlain(ctx context.Context, o *session.Orchestrator, req robot.DrawingRequest) (session.Result, error) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case sig := <-sigc:
				logrus.Infof("caught signal \"%s\": stopping the arm", sig)
				o.Stop()
			case line := <-o.Logs():
				fmt.Println(line)
			case <-done:
				return
			}
		}
	}()

	res, err := o.Run(ctx, req)
	if errors.Is(err, session.ErrSessionBusy) {
		return res, fmt.Errorf("%w, try again later", err)
	}
	return res, err
}
