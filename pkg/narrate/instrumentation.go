package narrate

import "go.opentelemetry.io/otel"

const scopeName = "github.com/gwillem/robotross/pkg/narrate"

var tracer = otel.Tracer(scopeName)
