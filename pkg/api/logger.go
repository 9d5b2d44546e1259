package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/robotross/pkg/session"
)

// Context keys set by the session handlers for the request log.
const (
	sessionKey = "session"
	outcomeKey = "outcome"
)

// ginLogger logs every request through logrus. Requests that ran a session
// carry its id and outcome, so HTTP lines can be matched with the session
// log.
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path // before routing rewrites it
		start := time.Now()
		c.Next()
		latency := time.Since(start).Round(time.Millisecond)
		status := c.Writer.Status()

		fields := logrus.Fields{
			"status":  status,
			"latency": latency,
			"method":  c.Request.Method,
			"path":    path,
			"bytes":   c.Writer.Size(),
		}
		if id := c.GetString(sessionKey); id != "" {
			fields[sessionKey] = id
		}
		if outcome := c.GetString(outcomeKey); outcome != "" {
			fields[outcomeKey] = outcome
		}
		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}
		msg := fmt.Sprintf("%s %s %d (%s)", c.Request.Method, path, status, latency)
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(msg)
		case status >= http.StatusBadRequest:
			entry.Warn(msg)
		case c.GetString(sessionKey) != "":
			// Finished drawings are worth seeing at the default level.
			entry.Info(msg)
		default:
			entry.Debug(msg)
		}
	}
}

// tagSession records the session of a request for ginLogger.
func tagSession(c *gin.Context, res session.Result) {
	if res.ID != "" {
		c.Set(sessionKey, res.ID)
	}
	if res.Outcome != "" {
		c.Set(outcomeKey, string(res.Outcome))
	}
}
