// Package plan turns drawing requests into ordered pen commands.
//
// Plans are generated lazily from the shape and font tables, so iterating a
// plan twice yields the same commands without side effects.
package plan

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode"

	"github.com/gwillem/robotross/pkg/robot"
)

var (
	ErrUnsupportedShape = errors.New("unsupported shape")
	ErrUnsupportedGlyph = errors.New("unsupported glyph")
	ErrEmptyDrawing     = errors.New("nothing to draw")
)

// UnsupportedShapeError is returned for a shape name without a template.
type UnsupportedShapeError struct {
	Name string
}

func (e *UnsupportedShapeError) Error() string {
	return fmt.Sprintf("unsupported shape %q (known: %s)", e.Name, strings.Join(Shapes(), ", "))
}

func (e *UnsupportedShapeError) Is(target error) bool {
	return target == ErrUnsupportedShape
}

// UnsupportedGlyphError is returned for a character without strokes.
type UnsupportedGlyphError struct {
	Char rune
	// Offset is the rune index of Char within the requested text.
	Offset int
}

func (e *UnsupportedGlyphError) Error() string {
	return fmt.Sprintf("unsupported glyph %q at position %d", e.Char, e.Offset)
}

func (e *UnsupportedGlyphError) Is(target error) bool {
	return target == ErrUnsupportedGlyph
}

// Segment is a group of consecutive commands after which the caller may
// interleave commentary: one edge of a shape, or one glyph of text.
type Segment struct {
	Label    string
	Commands []robot.Command
}

// Planner converts drawing requests into plans. The zero value is ready to
// use.
type Planner struct{}

// New returns a Planner.
func New() *Planner {
	return &Planner{}
}

// Plan validates req and returns its plan. Validation is eager, so a
// returned plan can always be executed completely.
func (p *Planner) Plan(req robot.DrawingRequest, profile robot.Profile) (*Plan, error) {
	switch req.Kind {
	case robot.ShapeRequest:
		return planShape(req, profile)
	case robot.TextRequest:
		return planText(req, profile)
	case robot.SVGRequest:
		return planSVG(req, profile)
	default:
		return nil, fmt.Errorf("unknown request kind %d", req.Kind)
	}
}

// Plan is a finite, restartable sequence of pen commands.
type Plan struct {
	req    robot.DrawingRequest
	origin robot.Point
	size   float64

	// Set for shape plans.
	shape *shapeTemplate
	// Set for text plans.
	lines []textLine
	// Set for SVG plans, already in paper coordinates.
	svg []svgElement
}

type textLine struct {
	glyphs []rune
	start  robot.Point
}

// Request returns the request the plan was built for.
func (p *Plan) Request() robot.DrawingRequest {
	return p.req
}

// All yields every command in execution order.
func (p *Plan) All() iter.Seq[robot.Command] {
	return func(yield func(robot.Command) bool) {
		for seg := range p.Segments() {
			for _, c := range seg.Commands {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Commands collects All into a slice.
func (p *Plan) Commands() []robot.Command {
	var cmds []robot.Command
	for c := range p.All() {
		cmds = append(cmds, c)
	}
	return cmds
}

// Len returns the number of commands in the plan.
func (p *Plan) Len() int {
	n := 0
	for seg := range p.Segments() {
		n += len(seg.Commands)
	}
	return n
}

// Bounds returns the corners of the box enclosing every MoveTo target.
func (p *Plan) Bounds() (lo, hi robot.Point) {
	first := true
	for c := range p.All() {
		if c.Kind != robot.KindMoveTo {
			continue
		}
		if first {
			lo, hi = c.Target(), c.Target()
			first = false
			continue
		}
		lo.X, lo.Y = min(lo.X, c.X), min(lo.Y, c.Y)
		hi.X, hi.Y = max(hi.X, c.X), max(hi.Y, c.Y)
	}
	return lo, hi
}

// Segments yields the plan grouped at commentary checkpoints. The first
// segment starts with PenUp and the last one ends with PenUp.
func (p *Plan) Segments() iter.Seq[Segment] {
	switch {
	case p.shape != nil:
		return p.shapeSegments
	case p.svg != nil:
		return p.svgSegments
	}
	return p.textSegments
}

func planShape(req robot.DrawingRequest, profile robot.Profile) (*Plan, error) {
	name := req.Subject()
	tmpl, ok := shapes[name]
	if !ok {
		return nil, &UnsupportedShapeError{Name: req.Shape}
	}

	size := req.Size
	if size <= 0 {
		size = DefaultShapeSize
	}

	return &Plan{
		req:    req,
		origin: profile.OriginOffset,
		size:   size,
		shape:  &tmpl,
	}, nil
}

func (p *Plan) shapeSegments(yield func(Segment) bool) {
	pts := p.shape.points
	at := func(i int) robot.Command {
		return robot.MoveTo(p.origin.X+pts[i].X*p.size, p.origin.Y+pts[i].Y*p.size)
	}

	for i := 1; i < len(pts); i++ {
		var cmds []robot.Command
		if i == 1 {
			cmds = append(cmds, robot.PenUp(), at(0), robot.PenDown())
		}
		cmds = append(cmds, at(i))
		if i == len(pts)-1 {
			cmds = append(cmds, robot.PenUp())
		}

		seg := Segment{
			Label:    fmt.Sprintf("%s edge %d/%d", p.req.Subject(), i, len(pts)-1),
			Commands: cmds,
		}
		if !yield(seg) {
			return
		}
	}
}

func planText(req robot.DrawingRequest, profile robot.Profile) (*Plan, error) {
	height := req.Size
	if height <= 0 {
		height = DefaultLetterHeight
	}

	// Accept the escaped form too, since chat front ends rarely send real
	// newlines.
	text := strings.ReplaceAll(req.Text, `\n`, "\n")

	var (
		lines   []textLine
		strokes int
		offset  int
	)
	for i, raw := range strings.Split(text, "\n") {
		runes := []rune(raw)
		width := 0.0
		for j, r := range runes {
			gl, ok := font[foldRune(r)]
			if !ok {
				return nil, &UnsupportedGlyphError{Char: r, Offset: offset + j}
			}
			runes[j] = foldRune(r)
			strokes += len(gl.strokes)
			width += height*gl.width + letterSpacing
		}
		if len(runes) > 0 {
			width -= letterSpacing
		}
		// Count the separator too.
		offset += len(runes) + 1

		lines = append(lines, textLine{
			glyphs: runes,
			start: robot.Point{
				X: profile.OriginOffset.X - width/2,
				Y: profile.OriginOffset.Y - float64(i)*height*lineSpacing,
			},
		})
	}

	if strokes == 0 {
		return nil, fmt.Errorf("%w: %q has no strokes", ErrEmptyDrawing, req.Text)
	}

	return &Plan{
		req:    req,
		origin: profile.OriginOffset,
		size:   height,
		lines:  lines,
	}, nil
}

func (p *Plan) textSegments(yield func(Segment) bool) {
	first := true
	for _, line := range p.lines {
		x := line.start.X
		for _, r := range line.glyphs {
			gl := font[r]
			var cmds []robot.Command
			if first && len(gl.strokes) > 0 {
				cmds = append(cmds, robot.PenUp())
				first = false
			}
			for _, st := range gl.strokes {
				if len(st) < 2 {
					continue
				}
				for k, pt := range st {
					cmds = append(cmds, robot.MoveTo(x+pt.X*p.size, line.start.Y+pt.Y*p.size))
					if k == 0 {
						cmds = append(cmds, robot.PenDown())
					}
				}
				cmds = append(cmds, robot.PenUp())
			}
			x += p.size*gl.width + letterSpacing

			if len(cmds) == 0 {
				continue
			}
			if !yield(Segment{Label: string(r), Commands: cmds}) {
				return
			}
		}
	}
}

func foldRune(r rune) rune {
	return unicode.ToUpper(r)
}
