package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/robotross/pkg/arm"
	"github.com/gwillem/robotross/pkg/robot"
)

type CalibrateCommand struct{}

var errAborted = errors.New("calibration aborted")

func (c *CalibrateCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("robotross calibrate"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	ctx := context.Background()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	profile, err := a.store.Load()
	if err != nil {
		logrus.WithError(err).Warn("ignoring unreadable calibration")
		profile = robot.DefaultProfile()
	}

	port, detected := a.cfg.ResolvePort(profile), false
	if port == "" {
		if port, err = arm.Detect(); err != nil {
			return err
		}
		detected = true
	}
	if _, err := a.conn.Arm(ctx, withPort(profile, port)); err != nil {
		return fmt.Errorf("connect to arm: %w", err)
	}
	handle := a.conn.Current()
	fmt.Printf("Connected to the arm on %s\n\n", port)

	fmt.Println(subHeaderStyle.Render("Step 1: pen on the paper"))
	if !confirm("Is the pen touching the paper?", "Yes", "Abort") {
		return errAborted
	}
	if err := handle.SetOrigin(ctx, 0); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("Step 2: travel height"))
	up := robot.DefaultPenUpHeight
	for {
		up, err = askHeight(up)
		if err != nil {
			return errAborted
		}

		fmt.Printf("Lifting pen %.1f mm...\n", up)
		if err := handle.Jog(ctx, up); err != nil {
			return err
		}

		answer := chooseClearance(up)
		if answer == "yes" {
			break
		}
		// Back onto the paper before trying another height or leaving.
		if err := handle.Jog(ctx, -up); err != nil {
			return err
		}
		if answer == "abort" {
			fmt.Println(dimStyle.Render("Calibration aborted, pen returned to the paper."))
			return errAborted
		}
	}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("Step 3: drawing centre (optional)"))
	center, err := findCenter(ctx, handle, profile.OriginOffset)
	if err != nil {
		return err
	}

	profile.PenDownHeight = 0
	profile.PenUpHeight = up
	profile.OriginOffset = center
	if detected && confirm(fmt.Sprintf("Remember %s as the arm's port?", port), "Yes", "No") {
		profile.PortOverride = port
	}

	if err := a.orchestrator.Calibrate(ctx, profile); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render(fmt.Sprintf("Saved! Pen lifts %.1f mm and is up and ready.", up)))
	fmt.Printf("Calibration saved to %s\n", a.store.Path())
	return nil
}

// findCenter jogs the raised pen over the paper until the user settles on
// the drawing centre, then parks. Skipping keeps prev.
func findCenter(ctx context.Context, handle *arm.Arm, prev robot.Point) (robot.Point, error) {
	if !confirm("Move the pen to the centre of the paper?", "Yes", "Keep "+prev.String()) {
		return prev, nil
	}

	p := prev
	for {
		if err := handle.Send(ctx, robot.MoveTo(p.X, p.Y)); err != nil {
			return prev, err
		}
		step := chooseNudge(p)
		if step == "done" {
			break
		}
		p = nudge(p, step)
	}

	fmt.Println(dimStyle.Render("Returning to the rest position..."))
	if err := handle.Park(ctx); err != nil {
		return prev, err
	}
	return p, nil
}

// nudge applies a step like "x+10" or "y-1" to p. Unknown steps leave p
// unchanged.
func nudge(p robot.Point, step string) robot.Point {
	if len(step) < 3 {
		return p
	}
	d, err := strconv.ParseFloat(step[1:], 64)
	if err != nil {
		return p
	}
	switch step[0] {
	case 'x':
		p.X += d
	case 'y':
		p.Y += d
	}
	return p
}

func chooseNudge(p robot.Point) string {
	var step string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Pen is at %s from the rest position. Is it over the centre?", p)).
				Options(
					huh.NewOption("Yes, this is the centre", "done"),
					huh.NewOption("Right 10 mm", "x+10"),
					huh.NewOption("Left 10 mm", "x-10"),
					huh.NewOption("Away 10 mm", "y+10"),
					huh.NewOption("Closer 10 mm", "y-10"),
					huh.NewOption("Right 1 mm", "x+1"),
					huh.NewOption("Left 1 mm", "x-1"),
					huh.NewOption("Away 1 mm", "y+1"),
					huh.NewOption("Closer 1 mm", "y-1"),
				).
				Value(&step),
		),
	)
	if err := form.Run(); err != nil {
		return "done"
	}
	return step
}

func withPort(p robot.Profile, port string) robot.Profile {
	p.PortOverride = port
	return p
}

func confirm(title, yes, no string) bool {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative(yes).
				Negative(no).
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false
	}
	return ok
}

func askHeight(prev float64) (float64, error) {
	raw := strconv.FormatFloat(prev, 'f', -1, 64)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Travel height in mm").
				Description("Recommended 5-8").
				Value(&raw).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil {
						return fmt.Errorf("please enter a number")
					}
					if v <= 0 {
						return fmt.Errorf("must be positive")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}

func chooseClearance(up float64) string {
	var answer string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Pen is now %.1f mm above the paper. Does it clear the paper well?", up)).
				Options(
					huh.NewOption("Yes, save it", "yes"),
					huh.NewOption("Try another height", "retry"),
					huh.NewOption("Abort", "abort"),
				).
				Value(&answer),
		),
	)
	if err := form.Run(); err != nil {
		return "abort"
	}
	return answer
}
