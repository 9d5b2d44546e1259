// Package robot holds the shared vocabulary of the drawing arm: pen commands,
// drawing requests, calibration and configuration.
package robot

import (
	"fmt"
	"strings"
	"time"
)

// CommandKind identifies a pen command.
type CommandKind int

// Pen command kinds.
const (
	KindMoveTo CommandKind = iota + 1
	KindPenUp
	KindPenDown
	KindDwell
)

func (k CommandKind) String() string {
	switch k {
	case KindMoveTo:
		return "MoveTo"
	case KindPenUp:
		return "PenUp"
	case KindPenDown:
		return "PenDown"
	case KindDwell:
		return "Dwell"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Point is a position on the paper in millimeters, relative to the
// session origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f, %.1f) mm", p.X, p.Y)
}

// Command is a single pen step. X and Y are only meaningful for MoveTo,
// Duration only for Dwell. Feed overrides the arm's drawing feed rate in
// mm/min for a MoveTo with the pen down; zero keeps the default.
type Command struct {
	Kind     CommandKind
	X, Y     float64
	Duration time.Duration
	Feed     int
}

// MoveTo returns a command moving the pen to (x, y).
func MoveTo(x, y float64) Command {
	return Command{Kind: KindMoveTo, X: x, Y: y}
}

// PenUp returns a command lifting the pen off the paper.
func PenUp() Command {
	return Command{Kind: KindPenUp}
}

// PenDown returns a command lowering the pen onto the paper.
func PenDown() Command {
	return Command{Kind: KindPenDown}
}

// Dwell returns a command pausing the arm for d.
func Dwell(d time.Duration) Command {
	return Command{Kind: KindDwell, Duration: d}
}

// Target returns the position of a MoveTo command.
func (c Command) Target() Point {
	return Point{X: c.X, Y: c.Y}
}

func (c Command) String() string {
	switch c.Kind {
	case KindMoveTo:
		if c.Feed > 0 {
			return fmt.Sprintf("MoveTo(%.3f, %.3f) F%d", c.X, c.Y, c.Feed)
		}
		return fmt.Sprintf("MoveTo(%.3f, %.3f)", c.X, c.Y)
	case KindDwell:
		return fmt.Sprintf("Dwell(%s)", c.Duration)
	default:
		return c.Kind.String()
	}
}

// RequestKind tells whether a drawing request is a shape, text or an SVG
// document.
type RequestKind int

const (
	ShapeRequest RequestKind = iota + 1
	TextRequest
	SVGRequest
)

func (k RequestKind) String() string {
	switch k {
	case ShapeRequest:
		return "draw"
	case TextRequest:
		return "write"
	case SVGRequest:
		return "svg"
	default:
		return "unknown"
	}
}

// DrawingRequest asks for a named shape, a text string or an SVG document.
// Size is the shape size, the letter height or the largest SVG dimension in
// millimeters; zero selects the default.
type DrawingRequest struct {
	Kind  RequestKind `json:"kind"`
	Shape string      `json:"shape,omitempty"`
	Text  string      `json:"text,omitempty"`
	Size  float64     `json:"size,omitempty"`

	// Name labels the SVG document, usually its file name.
	Name string `json:"name,omitempty"`
	SVG  string `json:"-"`
}

// Shape returns a request to draw the named shape.
func Shape(name string, size float64) DrawingRequest {
	return DrawingRequest{Kind: ShapeRequest, Shape: name, Size: size}
}

// Text returns a request to write s.
func Text(s string, size float64) DrawingRequest {
	return DrawingRequest{Kind: TextRequest, Text: s, Size: size}
}

// SVG returns a request to draw the SVG document doc.
func SVG(name, doc string, size float64) DrawingRequest {
	return DrawingRequest{Kind: SVGRequest, Name: name, SVG: doc, Size: size}
}

// Subject returns the shape name, the text or the SVG name of the request.
func (r DrawingRequest) Subject() string {
	switch r.Kind {
	case TextRequest:
		return r.Text
	case SVGRequest:
		return r.Name
	}
	return strings.ToLower(strings.TrimSpace(r.Shape))
}

func (r DrawingRequest) String() string {
	return fmt.Sprintf("%s %q", r.Kind, r.Subject())
}
