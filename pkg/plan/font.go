package plan

import "github.com/gwillem/robotross/pkg/robot"

const (
	DefaultLetterHeight = 10.0
	letterSpacing       = 2.0
	lineSpacing         = 1.5
)

// glyph is a letter on a unit grid with the origin at its bottom-left
// corner. Each stroke is drawn without lifting the pen.
type glyph struct {
	width   float64
	strokes [][]robot.Point
}

func glyphOf(width float64, strokes ...[]robot.Point) glyph {
	return glyph{width: width, strokes: strokes}
}

// strokeOf builds a stroke from x, y pairs.
func strokeOf(xy ...float64) []robot.Point {
	pts := make([]robot.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		pts = append(pts, robot.Point{X: xy[i], Y: xy[i+1]})
	}
	return pts
}

const (
	narrow  = 0.6
	regular = 0.9
	wide    = 1.0
)

var font = map[rune]glyph{
	'A': glyphOf(regular, strokeOf(0, 0, 0.5, 1, 1, 0), strokeOf(0.2, 0.4, 0.8, 0.4)),
	'B': glyphOf(regular,
		strokeOf(0, 0, 0, 1, 0.7, 1, 0.9, 0.85, 0.9, 0.65, 0.7, 0.5, 0, 0.5),
		strokeOf(0.7, 0.5, 0.9, 0.35, 0.9, 0.15, 0.7, 0, 0, 0)),
	'C': glyphOf(regular, strokeOf(1, 0.85, 0.7, 1, 0.3, 1, 0, 0.7, 0, 0.3, 0.3, 0, 0.7, 0, 1, 0.15)),
	'D': glyphOf(regular, strokeOf(0, 0, 0, 1, 0.6, 1, 0.9, 0.75, 0.9, 0.25, 0.6, 0, 0, 0)),
	'E': glyphOf(regular, strokeOf(0.8, 0, 0, 0, 0, 0.5, 0.6, 0.5), strokeOf(0, 0.5, 0, 1, 0.8, 1)),
	'F': glyphOf(regular, strokeOf(0, 0, 0, 0.5, 0.6, 0.5), strokeOf(0, 0.5, 0, 1, 0.8, 1)),
	'G': glyphOf(regular, strokeOf(1, 0.85, 0.7, 1, 0.3, 1, 0, 0.7, 0, 0.3, 0.3, 0, 0.7, 0, 1, 0.3, 1, 0.5, 0.5, 0.5)),
	'H': glyphOf(regular, strokeOf(0, 0, 0, 1), strokeOf(0, 0.5, 0.8, 0.5), strokeOf(0.8, 0, 0.8, 1)),
	'I': glyphOf(narrow, strokeOf(0.2, 0, 0.6, 0), strokeOf(0.4, 0, 0.4, 1), strokeOf(0.2, 1, 0.6, 1)),
	'J': glyphOf(regular, strokeOf(0.2, 1, 0.8, 1), strokeOf(0.6, 1, 0.6, 0.2, 0.4, 0, 0.2, 0, 0, 0.2)),
	'K': glyphOf(regular, strokeOf(0, 0, 0, 1), strokeOf(0.8, 1, 0, 0.4, 0.8, 0)),
	'L': glyphOf(regular, strokeOf(0, 1, 0, 0, 0.7, 0)),
	'M': glyphOf(wide, strokeOf(0, 0, 0, 1, 0.5, 0.5, 1, 1, 1, 0)),
	'N': glyphOf(regular, strokeOf(0, 0, 0, 1, 0.8, 0, 0.8, 1)),
	'O': glyphOf(regular, strokeOf(0.3, 0, 0.7, 0, 1, 0.3, 1, 0.7, 0.7, 1, 0.3, 1, 0, 0.7, 0, 0.3, 0.3, 0)),
	'P': glyphOf(regular, strokeOf(0, 0, 0, 1, 0.7, 1, 0.9, 0.85, 0.9, 0.6, 0.7, 0.45, 0, 0.45)),
	'Q': glyphOf(regular,
		strokeOf(0.3, 0, 0.7, 0, 1, 0.3, 1, 0.7, 0.7, 1, 0.3, 1, 0, 0.7, 0, 0.3, 0.3, 0),
		strokeOf(0.6, 0.3, 1, 0)),
	'R': glyphOf(regular,
		strokeOf(0, 0, 0, 1, 0.7, 1, 0.9, 0.85, 0.9, 0.6, 0.7, 0.45, 0, 0.45),
		strokeOf(0.5, 0.45, 0.9, 0)),
	'S': glyphOf(regular, strokeOf(0.9, 0.85, 0.7, 1, 0.3, 1, 0, 0.8, 0, 0.6, 0.3, 0.5, 0.7, 0.5, 1, 0.4, 1, 0.2, 0.7, 0, 0.3, 0, 0.1, 0.15)),
	'T': glyphOf(regular, strokeOf(0, 1, 1, 1), strokeOf(0.5, 1, 0.5, 0)),
	'U': glyphOf(regular, strokeOf(0, 1, 0, 0.2, 0.2, 0, 0.6, 0, 0.8, 0.2, 0.8, 1)),
	'V': glyphOf(regular, strokeOf(0, 1, 0.5, 0, 1, 1)),
	'W': glyphOf(wide, strokeOf(0, 1, 0.25, 0, 0.5, 0.6, 0.75, 0, 1, 1)),
	'X': glyphOf(regular, strokeOf(0, 0, 0.8, 1), strokeOf(0, 1, 0.8, 0)),
	'Y': glyphOf(regular, strokeOf(0, 1, 0.4, 0.5, 0.4, 0), strokeOf(0.8, 1, 0.4, 0.5)),
	'Z': glyphOf(regular, strokeOf(0, 1, 0.8, 1, 0, 0, 0.8, 0)),

	'0': glyphOf(regular, strokeOf(0.3, 0, 0.7, 0, 1, 0.3, 1, 0.7, 0.7, 1, 0.3, 1, 0, 0.7, 0, 0.3, 0.3, 0)),
	'1': glyphOf(narrow, strokeOf(0.2, 0.8, 0.5, 1, 0.5, 0), strokeOf(0.2, 0, 0.8, 0)),
	'2': glyphOf(regular, strokeOf(0, 0.8, 0.2, 1, 0.7, 1, 0.9, 0.8, 0.9, 0.6, 0, 0, 0.9, 0)),
	'3': glyphOf(regular,
		strokeOf(0, 0.85, 0.3, 1, 0.7, 1, 0.9, 0.8, 0.9, 0.6, 0.6, 0.5),
		strokeOf(0.6, 0.5, 0.9, 0.4, 0.9, 0.2, 0.7, 0, 0.3, 0, 0, 0.15)),
	'4': glyphOf(regular, strokeOf(0.7, 0, 0.7, 1, 0, 0.35, 0.9, 0.35)),
	'5': glyphOf(regular, strokeOf(0.9, 1, 0.1, 1, 0, 0.55, 0.6, 0.6, 0.9, 0.4, 0.9, 0.2, 0.6, 0, 0.2, 0, 0, 0.15)),
	'6': glyphOf(regular, strokeOf(0.8, 0.9, 0.5, 1, 0.2, 0.9, 0, 0.6, 0, 0.2, 0.3, 0, 0.7, 0, 0.9, 0.2, 0.9, 0.4, 0.6, 0.55, 0.3, 0.55, 0, 0.4)),
	'7': glyphOf(regular, strokeOf(0, 1, 0.9, 1, 0.3, 0)),
	'8': glyphOf(regular, strokeOf(0.45, 0.5, 0.15, 0.65, 0.15, 0.9, 0.35, 1, 0.55, 1, 0.75, 0.9, 0.75, 0.65, 0.45, 0.5,
		0.05, 0.3, 0.05, 0.1, 0.25, 0, 0.65, 0, 0.85, 0.1, 0.85, 0.3, 0.45, 0.5)),
	'9': glyphOf(regular, strokeOf(0.9, 0.6, 0.6, 0.45, 0.3, 0.45, 0, 0.6, 0, 0.8, 0.3, 1, 0.6, 1, 0.9, 0.8, 0.9, 0.3, 0.6, 0, 0.2, 0)),

	' ':  glyphOf(0.5),
	'-':  glyphOf(regular, strokeOf(0.1, 0.5, 0.6, 0.5)),
	'.':  glyphOf(narrow, strokeOf(0.2, 0.05, 0.2, 0, 0.3, 0, 0.3, 0.05, 0.2, 0.05)),
	',':  glyphOf(narrow, strokeOf(0.3, 0.1, 0.3, 0, 0.2, -0.15)),
	'\'': glyphOf(narrow, strokeOf(0.3, 1, 0.3, 0.75)),
	'!': glyphOf(narrow,
		strokeOf(0.3, 1, 0.3, 0.3),
		strokeOf(0.3, 0.05, 0.3, 0, 0.35, 0, 0.35, 0.05, 0.3, 0.05)),
	'?': glyphOf(regular,
		strokeOf(0, 0.8, 0.2, 1, 0.6, 1, 0.8, 0.8, 0.8, 0.6, 0.4, 0.4, 0.4, 0.25),
		strokeOf(0.4, 0.05, 0.4, 0, 0.45, 0, 0.45, 0.05, 0.4, 0.05)),
}

// Drawable reports whether r has a stroke definition.
func Drawable(r rune) bool {
	_, ok := font[foldRune(r)]
	return ok
}
