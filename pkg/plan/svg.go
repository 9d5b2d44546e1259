package plan

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gwillem/robotross/pkg/robot"
)

// SVG drawing parameters.
const (
	// DefaultSVGSize is the largest dimension of a drawing in millimeters.
	DefaultSVGSize = 80.0
	// SVGDrawFeed is slower than the default so details stay sharp.
	SVGDrawFeed = 250

	curveSteps  = 20
	circleSteps = 48
)

var ErrInvalidSVG = errors.New("invalid svg")

// svgElement is one drawable element, flattened to polylines.
type svgElement struct {
	tag   string
	paths [][]robot.Point
}

// containers whose children are never drawn directly.
var hiddenContainers = map[string]bool{
	"defs":     true,
	"clipPath": true,
	"mask":     true,
	"symbol":   true,
	"marker":   true,
	"pattern":  true,
}

// parseSVG reads every drawable element of doc in document order.
// Transforms are ignored, so the drawing is expected on a flat layer.
func parseSVG(doc string) ([]svgElement, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	var (
		elems  []svgElement
		hidden int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSVG, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if hiddenContainers[t.Name.Local] {
				hidden++
				continue
			}
			if hidden > 0 {
				continue
			}
			paths, err := elementPaths(t)
			if err != nil {
				return nil, fmt.Errorf("%w: <%s>: %v", ErrInvalidSVG, t.Name.Local, err)
			}
			if len(paths) > 0 {
				elems = append(elems, svgElement{tag: t.Name.Local, paths: paths})
			}
		case xml.EndElement:
			if hiddenContainers[t.Name.Local] {
				hidden--
			}
		}
	}
	return elems, nil
}

func elementPaths(el xml.StartElement) ([][]robot.Point, error) {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		attrs[a.Name.Local] = a.Value
	}
	num := func(names ...string) ([]float64, error) {
		out := make([]float64, len(names))
		for i, n := range names {
			v, err := parseLength(attrs[n])
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", n, err)
			}
			out[i] = v
		}
		return out, nil
	}

	switch el.Name.Local {
	case "path":
		if attrs["d"] == "" {
			return nil, nil
		}
		return parsePathData(attrs["d"])

	case "circle":
		v, err := num("cx", "cy", "r")
		if err != nil || v[2] <= 0 {
			return nil, err
		}
		return [][]robot.Point{ellipse(v[0], v[1], v[2], v[2])}, nil

	case "ellipse":
		v, err := num("cx", "cy", "rx", "ry")
		if err != nil || v[2] <= 0 || v[3] <= 0 {
			return nil, err
		}
		return [][]robot.Point{ellipse(v[0], v[1], v[2], v[3])}, nil

	case "rect":
		v, err := num("x", "y", "width", "height")
		if err != nil || v[2] <= 0 || v[3] <= 0 {
			return nil, err
		}
		x, y, w, h := v[0], v[1], v[2], v[3]
		return [][]robot.Point{{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}, {X: x, Y: y}}}, nil

	case "line":
		v, err := num("x1", "y1", "x2", "y2")
		if err != nil {
			return nil, err
		}
		return [][]robot.Point{{{X: v[0], Y: v[1]}, {X: v[2], Y: v[3]}}}, nil

	case "polyline", "polygon":
		nums, err := parseNumbers(attrs["points"])
		if err != nil {
			return nil, err
		}
		if len(nums) < 4 {
			return nil, nil
		}
		var pts []robot.Point
		for i := 0; i+1 < len(nums); i += 2 {
			pts = append(pts, robot.Point{X: nums[i], Y: nums[i+1]})
		}
		if el.Name.Local == "polygon" {
			pts = append(pts, pts[0])
		}
		return [][]robot.Point{pts}, nil
	}
	return nil, nil
}

// parseLength reads a user-unit length. Missing attributes are zero.
func parseLength(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

var (
	pathToken = regexp.MustCompile(`[MmLlHhVvCcSsQqTtAaZz]|[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)
	number    = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)
)

func parseNumbers(s string) ([]float64, error) {
	var out []float64
	for _, tok := range number.FindAllString(s, -1) {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parsePathData flattens SVG path data into polylines, one per subpath.
// Curves and arcs become curveSteps straight pieces.
func parsePathData(d string) ([][]robot.Point, error) {
	tokens := pathToken.FindAllString(d, -1)

	var (
		paths    [][]robot.Point
		cur      []robot.Point
		cmd      byte
		pos      robot.Point // current point
		start    robot.Point // subpath start
		lastCtrl *robot.Point
		family   byte // 'C' or 'Q' when lastCtrl is set
		i        int
	)
	isCmd := func(tok string) bool {
		return len(tok) == 1 && strings.ContainsAny(tok, "MmLlHhVvCcSsQqTtAaZz")
	}
	next := func(n int) ([]float64, error) {
		out := make([]float64, n)
		for k := range out {
			if i >= len(tokens) || isCmd(tokens[i]) {
				return nil, fmt.Errorf("command %c needs %d numbers", cmd, n)
			}
			v, err := strconv.ParseFloat(tokens[i], 64)
			if err != nil {
				return nil, err
			}
			out[k] = v
			i++
		}
		return out, nil
	}
	flush := func() {
		if len(cur) > 1 {
			paths = append(paths, cur)
		}
		cur = nil
	}
	lineTo := func(p robot.Point) {
		if len(cur) == 0 {
			cur = append(cur, pos)
		}
		cur = append(cur, p)
		pos = p
	}
	rel := func(x, y float64) robot.Point {
		if cmd >= 'a' {
			return robot.Point{X: pos.X + x, Y: pos.Y + y}
		}
		return robot.Point{X: x, Y: y}
	}
	// reflect mirrors the previous control point if the previous command
	// was a curve of the same family.
	reflect := func(f byte) robot.Point {
		if lastCtrl == nil || family != f {
			return pos
		}
		return robot.Point{X: 2*pos.X - lastCtrl.X, Y: 2*pos.Y - lastCtrl.Y}
	}

	for i < len(tokens) {
		if isCmd(tokens[i]) {
			cmd = tokens[i][0]
			i++
		} else if cmd == 0 {
			return nil, fmt.Errorf("number %q without a command", tokens[i])
		}

		var (
			ctrl *robot.Point
			f    byte
		)
		switch cmd {
		case 'M', 'm':
			v, err := next(2)
			if err != nil {
				return nil, err
			}
			flush()
			pos = rel(v[0], v[1])
			start = pos
			cur = []robot.Point{pos}
			// Further pairs are implicit line-tos.
			if cmd == 'M' {
				cmd = 'L'
			} else {
				cmd = 'l'
			}

		case 'L', 'l':
			v, err := next(2)
			if err != nil {
				return nil, err
			}
			lineTo(rel(v[0], v[1]))

		case 'H', 'h':
			v, err := next(1)
			if err != nil {
				return nil, err
			}
			x := v[0]
			if cmd == 'h' {
				x += pos.X
			}
			lineTo(robot.Point{X: x, Y: pos.Y})

		case 'V', 'v':
			v, err := next(1)
			if err != nil {
				return nil, err
			}
			y := v[0]
			if cmd == 'v' {
				y += pos.Y
			}
			lineTo(robot.Point{X: pos.X, Y: y})

		case 'C', 'c', 'S', 's':
			var c1, c2, end robot.Point
			if cmd == 'C' || cmd == 'c' {
				v, err := next(6)
				if err != nil {
					return nil, err
				}
				c1, c2, end = rel(v[0], v[1]), rel(v[2], v[3]), rel(v[4], v[5])
			} else {
				v, err := next(4)
				if err != nil {
					return nil, err
				}
				c1, c2, end = reflect('C'), rel(v[0], v[1]), rel(v[2], v[3])
			}
			p0 := pos
			for _, p := range cubicBezier(p0, c1, c2, end, curveSteps) {
				lineTo(p)
			}
			ctrl, f = &c2, 'C'

		case 'Q', 'q', 'T', 't':
			var c1, end robot.Point
			if cmd == 'Q' || cmd == 'q' {
				v, err := next(4)
				if err != nil {
					return nil, err
				}
				c1, end = rel(v[0], v[1]), rel(v[2], v[3])
			} else {
				v, err := next(2)
				if err != nil {
					return nil, err
				}
				c1, end = reflect('Q'), rel(v[0], v[1])
			}
			p0 := pos
			for _, p := range quadraticBezier(p0, c1, end, curveSteps) {
				lineTo(p)
			}
			ctrl, f = &c1, 'Q'

		case 'A', 'a':
			v, err := next(7)
			if err != nil {
				return nil, err
			}
			p0, end := pos, rel(v[5], v[6])
			for _, p := range arc(p0, end, v[0], v[1], v[2], v[3] != 0, v[4] != 0, curveSteps) {
				lineTo(p)
			}

		case 'Z', 'z':
			if math.Abs(pos.X-start.X) > 0.01 || math.Abs(pos.Y-start.Y) > 0.01 {
				lineTo(start)
			}
			pos = start
			flush()
			cur = []robot.Point{pos}
			cmd = 0

		default:
			return nil, fmt.Errorf("unsupported path command %c", cmd)
		}
		lastCtrl, family = ctrl, f
	}
	flush()
	return paths, nil
}

func cubicBezier(p0, p1, p2, p3 robot.Point, steps int) []robot.Point {
	pts := make([]robot.Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		pts = append(pts, robot.Point{
			X: u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X,
			Y: u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y,
		})
	}
	return pts
}

func quadraticBezier(p0, p1, p2 robot.Point, steps int) []robot.Point {
	pts := make([]robot.Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		pts = append(pts, robot.Point{
			X: u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
			Y: u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
		})
	}
	return pts
}

// arc flattens an elliptical arc given in endpoint form, converting it to
// center form first. Degenerate radii draw a straight line.
func arc(p0, p1 robot.Point, rx, ry, rotation float64, large, sweep bool, steps int) []robot.Point {
	if p0 == p1 {
		return nil
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 {
		return []robot.Point{p1}
	}

	phi := rotation * math.Pi / 180
	sin, cos := math.Sincos(phi)
	dx, dy := (p0.X-p1.X)/2, (p0.Y-p1.Y)/2
	x1 := cos*dx + sin*dy
	y1 := -sin*dx + cos*dy

	// Scale up radii that cannot reach the end point.
	if l := x1*x1/(rx*rx) + y1*y1/(ry*ry); l > 1 {
		rx, ry = rx*math.Sqrt(l), ry*math.Sqrt(l)
	}

	num := rx*rx*ry*ry - rx*rx*y1*y1 - ry*ry*x1*x1
	den := rx*rx*y1*y1 + ry*ry*x1*x1
	coef := math.Sqrt(math.Max(0, num/den))
	if large == sweep {
		coef = -coef
	}
	cx1 := coef * rx * y1 / ry
	cy1 := -coef * ry * x1 / rx
	cx := cos*cx1 - sin*cy1 + (p0.X+p1.X)/2
	cy := sin*cx1 + cos*cy1 + (p0.Y+p1.Y)/2

	angle := func(ux, uy, vx, vy float64) float64 {
		return math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
	}
	theta := angle(1, 0, (x1-cx1)/rx, (y1-cy1)/ry)
	delta := angle((x1-cx1)/rx, (y1-cy1)/ry, (-x1-cx1)/rx, (-y1-cy1)/ry)
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	pts := make([]robot.Point, 0, steps)
	for i := 1; i < steps; i++ {
		t := theta + delta*float64(i)/float64(steps)
		st, ct := math.Sincos(t)
		pts = append(pts, robot.Point{
			X: cx + rx*ct*cos - ry*st*sin,
			Y: cy + rx*ct*sin + ry*st*cos,
		})
	}
	// Land exactly on the end point.
	return append(pts, p1)
}

func ellipse(cx, cy, rx, ry float64) []robot.Point {
	pts := make([]robot.Point, 0, circleSteps+1)
	for i := 0; i <= circleSteps; i++ {
		a := 2 * math.Pi * float64(i) / circleSteps
		pts = append(pts, robot.Point{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)})
	}
	return pts
}

// fitSVG scales the elements so the larger side of their bounding box is
// size millimeters, centers them on origin and flips Y, since SVG Y points
// down the page.
func fitSVG(elems []svgElement, size float64, origin robot.Point) error {
	first := true
	var lo, hi robot.Point
	for _, e := range elems {
		for _, path := range e.paths {
			for _, p := range path {
				if first {
					lo, hi, first = p, p, false
					continue
				}
				lo.X, lo.Y = min(lo.X, p.X), min(lo.Y, p.Y)
				hi.X, hi.Y = max(hi.X, p.X), max(hi.Y, p.Y)
			}
		}
	}
	extent := max(hi.X-lo.X, hi.Y-lo.Y)
	if first || extent == 0 {
		return ErrEmptyDrawing
	}

	scale := size / extent
	mid := robot.Point{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2}
	for _, e := range elems {
		for _, path := range e.paths {
			for k, p := range path {
				path[k] = robot.Point{
					X: origin.X + (p.X-mid.X)*scale,
					Y: origin.Y - (p.Y-mid.Y)*scale,
				}
			}
		}
	}
	return nil
}

func planSVG(req robot.DrawingRequest, profile robot.Profile) (*Plan, error) {
	elems, err := parseSVG(req.SVG)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: %s has no drawable elements", ErrEmptyDrawing, req.Subject())
	}

	size := req.Size
	if size <= 0 {
		size = DefaultSVGSize
	}
	if err := fitSVG(elems, size, profile.OriginOffset); err != nil {
		return nil, fmt.Errorf("%w: %s has no extent", err, req.Subject())
	}

	return &Plan{
		req:    req,
		origin: profile.OriginOffset,
		size:   size,
		svg:    elems,
	}, nil
}

func (p *Plan) svgSegments(yield func(Segment) bool) {
	for i, e := range p.svg {
		var cmds []robot.Command
		if i == 0 {
			cmds = append(cmds, robot.PenUp())
		}
		for _, path := range e.paths {
			cmds = append(cmds, robot.MoveTo(path[0].X, path[0].Y), robot.PenDown())
			for _, pt := range path[1:] {
				c := robot.MoveTo(pt.X, pt.Y)
				c.Feed = SVGDrawFeed
				cmds = append(cmds, c)
			}
			cmds = append(cmds, robot.PenUp())
		}

		seg := Segment{
			Label:    fmt.Sprintf("%s %d/%d", e.tag, i+1, len(p.svg)),
			Commands: cmds,
		}
		if !yield(seg) {
			return
		}
	}
}
