// Package robotross draws shapes, text and SVG files with a desktop robot arm
// while a voice narrates the drawing.
//
// Every session starts with an audible warning, speaks an intro while the
// arm starts moving, adds commentary between strokes and ends with an outro.
// A stop request halts the arm after the move in flight and silences the
// narration.
//
// # Installation
//
//	go install github.com/gwillem/robotross/cmd/robotross@latest
//
// # Usage
//
// Calibrate the pen heights once per boot:
//
//	robotross calibrate
//
// Then draw or write:
//
//	robotross draw star --size 40
//	robotross write "HELLO"
//	robotross svg logo.svg --size 60
//
// Or accept requests over HTTP:
//
//	robotross serve
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/robotross: CLI with write, draw, svg, check, calibrate, serve and ports commands
//   - pkg/robot: commands, requests, calibration profile and configuration
//   - pkg/plan: turns shapes, text and SVG documents into pen commands
//   - pkg/arm: G-code transport to the arm and the optional servo pen lift
//   - pkg/narrate: concurrent narration and the warning beeps
//   - pkg/session: the session state machine
//   - pkg/api: HTTP command surface
//   - pkg/telemetry: OpenTelemetry tracing setup
package robotross
