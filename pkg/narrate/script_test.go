package narrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gwillem/robotross/pkg/robot"
)

const testScripts = `
default:
  outro: That was {subject}.
star:
  intro: Time for {subject}.
  commentary:
    - Point one.
    - Point two.
text:
  intro: Writing {subject}.
`

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.yaml")
	if err := os.WriteFile(path, []byte(testScripts), 0o644); err != nil {
		t.Fatal(err)
	}
	src := FileSource{Path: path}
	fallback := FallbackScript(robot.Shape("circle", 30))

	tests := []struct {
		name       string
		req        robot.DrawingRequest
		intro      string
		outro      string
		commentary []string
	}{
		{"shape entry", robot.Shape("star", 30), "Time for a star.", "That was a star.", []string{"Point one.", "Point two."}},
		{"text entry", robot.Text("HI", 10), "Writing the words HI.", "That was the words HI.", fallback.Commentary},
		{"default only", robot.Shape("circle", 30), fallback.Intro, "That was a circle.", fallback.Commentary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := src.Script(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Script() error = %v", err)
			}
			if s.Intro != tt.intro {
				t.Errorf("Intro = %q, want %q", s.Intro, tt.intro)
			}
			if s.Outro != tt.outro {
				t.Errorf("Outro = %q, want %q", s.Outro, tt.outro)
			}
			if len(s.Commentary) != len(tt.commentary) {
				t.Fatalf("Commentary = %q, want %q", s.Commentary, tt.commentary)
			}
			for i := range s.Commentary {
				if s.Commentary[i] != tt.commentary[i] {
					t.Errorf("Commentary[%d] = %q, want %q", i, s.Commentary[i], tt.commentary[i])
				}
			}
		})
	}
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("star: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.yaml"), bad} {
		if _, err := (FileSource{Path: path}).Script(context.Background(), robot.Shape("star", 30)); err == nil {
			t.Errorf("Script(%s) succeeded, want error", filepath.Base(path))
		}
	}
}
