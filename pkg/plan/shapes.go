package plan

import (
	"maps"
	"math"
	"slices"

	"github.com/gwillem/robotross/pkg/robot"
)

// TableVersion identifies the shape and font tables. Bump it whenever a
// template or glyph changes, since plans are no longer comparable across
// versions.
const TableVersion = "2"

const (
	DefaultShapeSize = 30.0
	circleSegments   = 72
)

// shapeTemplate is a closed polyline in a unit space centered on the origin.
type shapeTemplate struct {
	points []robot.Point
}

var shapes = map[string]shapeTemplate{
	"square": {points: []robot.Point{
		{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5}, {X: -0.5, Y: -0.5},
	}},
	// Equilateral, base centered on the origin.
	"triangle": {points: []robot.Point{
		{X: -0.5, Y: 0}, {X: 0.5, Y: 0}, {X: 0, Y: math.Sqrt(3) / 2}, {X: -0.5, Y: 0},
	}},
	"diamond": {points: []robot.Point{
		{X: 0, Y: -0.5}, {X: 0.5, Y: 0}, {X: 0, Y: 0.5}, {X: -0.5, Y: 0}, {X: 0, Y: -0.5},
	}},
	"circle": {points: regularPolyline(circleSegments, 0.5, 0.5, 0)},
	"star":   {points: regularPolyline(10, 0.5, 0.19, math.Pi/2)},
}

// regularPolyline returns n vertices alternating between an outer and inner
// radius, closed by repeating the first vertex.
func regularPolyline(n int, outer, inner, phase float64) []robot.Point {
	pts := make([]robot.Point, 0, n+1)
	for i := 0; i < n; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := phase + 2*math.Pi*float64(i)/float64(n)
		pts = append(pts, robot.Point{X: r * math.Cos(a), Y: r * math.Sin(a)})
	}
	return append(pts, pts[0])
}

// Shapes returns the supported shape names.
func Shapes() []string {
	return slices.Sorted(maps.Keys(shapes))
}
