// Package api exposes drawing sessions over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/robotross/pkg/robot"
	"github.com/gwillem/robotross/pkg/session"
)

// Sessions is the part of *session.Orchestrator the API serves.
type Sessions interface {
	Run(ctx context.Context, req robot.DrawingRequest) (session.Result, error)
	Stop()
	State() session.State
	Active() (string, bool)
	Check(ctx context.Context) session.Readiness
}

// NewRouter returns the HTTP routes for s.
func NewRouter(s Sessions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	h := &handler{sessions: s}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.POST("/write", h.write)
	router.POST("/draw", h.draw)
	router.POST("/svg", h.svg)
	router.POST("/stop", h.stop)
	router.GET("/check", h.check)
	router.GET("/status", h.status)
	return router
}

// Serve listens on addr until ctx ends, then stops any running session
// and shuts the server down.
func Serve(ctx context.Context, addr string, s Sessions) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           NewRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		errc <- srv.Serve(l)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("shutting down http server")
	s.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
		return err
	}
	return nil
}
