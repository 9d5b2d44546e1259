package narrate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/robotross/pkg/robot"
)

// Fixed notices spoken by the session around the generated script.
const (
	WarningNotice = "Stand clear please, the arm is about to move."
	AbortNotice   = "Stopping before we start."
	StopNotice    = "The arm has been stopped. Please check the paper."
	FailureNotice = "Something went wrong with the arm. Please check the setup and try again."
)

// Script is the narration for one drawing.
type Script struct {
	Intro      string
	Commentary []string
	Outro      string
}

// ScriptSource writes the narration for a request. Implementations may be
// slow or fail; the session then falls back to FallbackScript.
type ScriptSource interface {
	Script(ctx context.Context, req robot.DrawingRequest) (Script, error)
}

// FallbackScript is the canned narration used when no source is available.
func FallbackScript(req robot.DrawingRequest) Script {
	return Script{
		Intro: fmt.Sprintf("We got a lovely request for %s today. "+
			"Let's see what happy little marks we can make together.", describe(req)),
		Commentary: []string{
			"Every stroke is a happy little decision.",
			"Nice and easy, we're doing beautifully.",
			"Let's add a little something right here.",
			"There are no mistakes, only happy little accidents.",
			"We're almost there. Isn't this something special.",
		},
		Outro: "And there we have it. Isn't that a lovely piece. " +
			"You can remove your artwork now.",
	}
}

// Fallback is a ScriptSource that always returns FallbackScript.
type Fallback struct{}

func (Fallback) Script(_ context.Context, req robot.DrawingRequest) (Script, error) {
	return FallbackScript(req), nil
}

// FileSource reads narration from a YAML file, keyed by shape name, with
// "text" for written requests, "svg" for SVG drawings and "default" as
// catch-all:
//
//	default:
//	  intro: Let's paint {subject} today.
//	  commentary:
//	    - Nice and easy.
//	  outro: There we have it.
//	star:
//	  intro: A star, how wonderful.
//
// {subject} is replaced with a description of the request. Fields missing
// from both the matching entry and the default come from FallbackScript.
// The file is read on every call so it can be edited between sessions.
type FileSource struct {
	Path string
}

type scriptEntry struct {
	Intro      string   `yaml:"intro"`
	Commentary []string `yaml:"commentary"`
	Outro      string   `yaml:"outro"`
}

func (f FileSource) Script(ctx context.Context, req robot.DrawingRequest) (Script, error) {
	if err := ctx.Err(); err != nil {
		return Script{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Script{}, fmt.Errorf("read script file: %w", err)
	}
	entries := map[string]scriptEntry{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return Script{}, fmt.Errorf("parse script file %s: %w", f.Path, err)
	}

	key := req.Shape
	switch req.Kind {
	case robot.TextRequest:
		key = "text"
	case robot.SVGRequest:
		key = "svg"
	}
	s := FallbackScript(req)
	for _, e := range []scriptEntry{entries["default"], entries[strings.ToLower(key)]} {
		if e.Intro != "" {
			s.Intro = e.Intro
		}
		if len(e.Commentary) > 0 {
			s.Commentary = e.Commentary
		}
		if e.Outro != "" {
			s.Outro = e.Outro
		}
	}

	r := strings.NewReplacer("{subject}", describe(req))
	s.Intro = r.Replace(s.Intro)
	s.Outro = r.Replace(s.Outro)
	commentary := make([]string, len(s.Commentary))
	for i, c := range s.Commentary {
		commentary[i] = r.Replace(c)
	}
	s.Commentary = commentary
	return s, nil
}

func describe(req robot.DrawingRequest) string {
	switch req.Kind {
	case robot.TextRequest:
		return fmt.Sprintf("the words %s", req.Subject())
	case robot.SVGRequest:
		return fmt.Sprintf("a picture from %s", req.Subject())
	}
	return "a " + req.Subject()
}
