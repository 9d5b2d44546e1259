package session

import "go.opentelemetry.io/otel"

const scopeName = "github.com/gwillem/robotross/pkg/session"

var tracer = otel.Tracer(scopeName)
