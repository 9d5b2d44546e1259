package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/gwillem/robotross/pkg/session"
)

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)

	tests := []struct {
		name      string
		path      string
		body      string
		sessions  *fakeSessions
		wantLevel logrus.Level
		session   string
		outcome   string
	}{
		{
			name:      "finished session",
			path:      "/draw",
			body:      `{"shape":"star"}`,
			sessions:  &fakeSessions{res: session.Result{ID: "abc", Outcome: session.OutcomeCompleted}},
			wantLevel: logrus.InfoLevel,
			session:   "abc",
			outcome:   "completed",
		},
		{
			name:      "busy",
			path:      "/draw",
			body:      `{"shape":"star"}`,
			sessions:  &fakeSessions{err: session.ErrSessionBusy},
			wantLevel: logrus.WarnLevel,
		},
		{
			name:      "stop",
			path:      "/stop",
			sessions:  &fakeSessions{active: "def"},
			wantLevel: logrus.InfoLevel,
			session:   "def",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			logger.SetLevel(logrus.DebugLevel)

			h := &handler{sessions: tt.sessions}
			router := gin.New()
			router.Use(ginLogger(logger))
			router.POST("/draw", h.draw)
			router.POST("/stop", h.stop)

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			entry := hook.LastEntry()
			if entry == nil {
				t.Fatal("request not logged")
			}
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry.Level, tt.wantLevel)
			}
			if got, _ := entry.Data["session"].(string); got != tt.session {
				t.Errorf("session = %q, want %q", got, tt.session)
			}
			if got, _ := entry.Data["outcome"].(string); got != tt.outcome {
				t.Errorf("outcome = %q, want %q", got, tt.outcome)
			}
			if got, _ := entry.Data["bytes"].(int); got != w.Body.Len() {
				t.Errorf("bytes = %v, want %d", entry.Data["bytes"], w.Body.Len())
			}
		})
	}
}
