package arm

import "go.opentelemetry.io/otel"

const scopeName = "github.com/gwillem/robotross/pkg/arm"

var tracer = otel.Tracer(scopeName)
