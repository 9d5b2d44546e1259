package plan

import (
	"errors"
	"math"
	"testing"

	"github.com/gwillem/robotross/pkg/robot"
)

func near(a, b robot.Point) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func TestParseSVG_Elements(t *testing.T) {
	tests := []struct {
		name   string
		el     string
		tag    string
		paths  int
		points int // in the first path
		at     int
		want   robot.Point
	}{
		{"absolute path", `<path d="M 0 0 L 10 0 L 10 10 Z"/>`, "path", 1, 4, 3, robot.Point{}},
		{"relative path", `<path d="m5 5 h10 v10 h-10 z"/>`, "path", 1, 5, 2, robot.Point{X: 15, Y: 15}},
		{"implicit line-to", `<path d="M0 0 10 0 10 10"/>`, "path", 1, 3, 2, robot.Point{X: 10, Y: 10}},
		{"cubic", `<path d="M0 0 C 0 10 10 10 10 0"/>`, "path", 1, 21, 10, robot.Point{X: 5, Y: 7.5}},
		{"smooth cubic", `<path d="M0 0 C 0 10 10 10 10 0 S 20 -10 20 0"/>`, "path", 1, 41, 30, robot.Point{X: 15, Y: -7.5}},
		{"quadratic", `<path d="M0 0 Q 5 10 10 0"/>`, "path", 1, 21, 10, robot.Point{X: 5, Y: 5}},
		{"smooth quadratic", `<path d="M0 0 Q 5 10 10 0 T 20 0"/>`, "path", 1, 41, 30, robot.Point{X: 15, Y: -5}},
		{"arc", `<path d="M0 0 A 5 5 0 0 1 10 0"/>`, "path", 1, 21, 10, robot.Point{X: 5, Y: -5}},
		{"subpaths", `<path d="M0 0 L1 0 M5 5 L6 5"/>`, "path", 2, 2, 1, robot.Point{X: 1}},
		{"circle", `<circle cx="5" cy="5" r="5"/>`, "circle", 1, 49, 12, robot.Point{X: 5, Y: 10}},
		{"ellipse", `<ellipse cx="0" cy="0" rx="4" ry="2"/>`, "ellipse", 1, 49, 24, robot.Point{X: -4}},
		{"rect", `<rect x="1" y="2" width="3px" height="4"/>`, "rect", 1, 5, 2, robot.Point{X: 4, Y: 6}},
		{"line", `<line x1="0" y1="0" x2="3" y2="4"/>`, "line", 1, 2, 1, robot.Point{X: 3, Y: 4}},
		{"polyline", `<polyline points="0,0 5,5 10,0"/>`, "polyline", 1, 3, 2, robot.Point{X: 10}},
		{"polygon closes", `<polygon points="0,0 5,5 10,0"/>`, "polygon", 1, 4, 3, robot.Point{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elems, err := parseSVG(`<svg xmlns="http://www.w3.org/2000/svg"><g>` + tt.el + `</g></svg>`)
			if err != nil {
				t.Fatalf("parseSVG() error = %v", err)
			}
			if len(elems) != 1 {
				t.Fatalf("got %d elements, want 1", len(elems))
			}
			e := elems[0]
			if e.tag != tt.tag || len(e.paths) != tt.paths {
				t.Fatalf("element %s with %d paths, want %s with %d", e.tag, len(e.paths), tt.tag, tt.paths)
			}
			path := e.paths[0]
			if len(path) != tt.points {
				t.Fatalf("first path has %d points, want %d", len(path), tt.points)
			}
			if !near(path[tt.at], tt.want) {
				t.Errorf("point %d = %v, want %v", tt.at, path[tt.at], tt.want)
			}
		})
	}
}

func TestParseSVG_Skipped(t *testing.T) {
	doc := `<svg>
		<defs><circle cx="1" cy="1" r="5"/></defs>
		<circle r="0"/>
		<rect width="0" height="4"/>
		<polyline points="3,3"/>
		<path d=""/>
		<text x="1" y="1">hi</text>
	</svg>`

	elems, err := parseSVG(doc)
	if err != nil {
		t.Fatalf("parseSVG() error = %v", err)
	}
	if len(elems) != 0 {
		t.Errorf("got %d drawable elements, want 0", len(elems))
	}
}

func TestPlan_SVG(t *testing.T) {
	doc := `<svg viewBox="0 0 100 50">
		<rect x="0" y="0" width="100" height="50"/>
		<line x1="0" y1="50" x2="100" y2="0"/>
	</svg>`

	p, err := New().Plan(robot.SVG("box.svg", doc, 0), robot.DefaultProfile())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	var labels []string
	for seg := range p.Segments() {
		labels = append(labels, seg.Label)
	}
	if len(labels) != 2 || labels[0] != "rect 1/2" || labels[1] != "line 2/2" {
		t.Errorf("segments = %q", labels)
	}

	cmds := p.Commands()
	if cmds[0].Kind != robot.KindPenUp || cmds[len(cmds)-1].Kind != robot.KindPenUp {
		t.Errorf("plan not bracketed by PenUp: %v", cmds)
	}
	// The rect corner at the SVG origin lands top left, Y pointing up.
	if cmds[1] != robot.MoveTo(-40, 20) || cmds[2].Kind != robot.KindPenDown {
		t.Errorf("plan starts %v %v, want MoveTo(-40, 20) PenDown", cmds[1], cmds[2])
	}

	penDown := false
	for _, c := range cmds {
		switch c.Kind {
		case robot.KindPenDown:
			penDown = true
		case robot.KindPenUp:
			penDown = false
		case robot.KindMoveTo:
			if penDown && c.Feed != SVGDrawFeed {
				t.Errorf("drawing move %v without the SVG feed", c)
			}
			if !penDown && c.Feed != 0 {
				t.Errorf("travel move %v with a feed override", c)
			}
		}
	}

	lo, hi := p.Bounds()
	if !near(lo, robot.Point{X: -40, Y: -20}) || !near(hi, robot.Point{X: 40, Y: 20}) {
		t.Errorf("Bounds() = %v, %v", lo, hi)
	}
}

func TestPlan_SVGSizeAndOrigin(t *testing.T) {
	doc := `<svg><line x1="0" y1="0" x2="10" y2="0"/></svg>`
	profile := robot.DefaultProfile()
	profile.OriginOffset = robot.Point{X: 5, Y: -5}

	p, err := New().Plan(robot.SVG("dash.svg", doc, 20), profile)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	lo, hi := p.Bounds()
	if !near(lo, robot.Point{X: -5, Y: -5}) || !near(hi, robot.Point{X: 15, Y: -5}) {
		t.Errorf("Bounds() = %v, %v", lo, hi)
	}
}

func TestPlan_SVGErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"malformed xml", `<svg><path d="M0 0 L1 1"></svg>`, ErrInvalidSVG},
		{"short path", `<svg><path d="M 0"/></svg>`, ErrInvalidSVG},
		{"number first", `<svg><path d="0 0 L 1 1"/></svg>`, ErrInvalidSVG},
		{"bad length", `<svg><circle cx="1" cy="1" r="big"/></svg>`, ErrInvalidSVG},
		{"nothing drawable", `<svg><g/></svg>`, ErrEmptyDrawing},
		{"no extent", `<svg><line x1="1" y1="1" x2="1" y2="1"/></svg>`, ErrEmptyDrawing},
	}

	for _, tt := range tests {
		_, err := New().Plan(robot.SVG("x.svg", tt.doc, 0), robot.DefaultProfile())
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: Plan() error = %v, want %v", tt.name, err, tt.want)
		}
	}
}
