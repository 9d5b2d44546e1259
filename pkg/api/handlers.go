package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gwillem/robotross/pkg/robot"
	"github.com/gwillem/robotross/pkg/session"
)

type handler struct {
	sessions Sessions
}

type response struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Session *session.Result `json:"session,omitempty"`
}

type writeRequest struct {
	Text string  `json:"text" binding:"required"`
	Size float64 `json:"size"`
}

type drawRequest struct {
	Shape string  `json:"shape" binding:"required"`
	Size  float64 `json:"size"`
}

type svgRequest struct {
	Name string  `json:"name"`
	SVG  string  `json:"svg" binding:"required"`
	Size float64 `json:"size"`
}

// maxSVGBody bounds the JSON body of an SVG request.
const maxSVGBody = 4 << 20

type statusResponse struct {
	OK      bool          `json:"ok"`
	Message string        `json:"message"`
	State   session.State `json:"state"`
	Session string        `json:"session,omitempty"`
}

type checkResponse struct {
	OK      bool                `json:"ok"`
	Message string              `json:"message"`
	Items   []session.CheckItem `json:"items"`
}

func badRequest(c *gin.Context, err error) {
	c.IndentedJSON(http.StatusBadRequest, response{Message: err.Error()})
	_ = c.Error(err)
}

func (h *handler) write(c *gin.Context) {
	var r writeRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	h.run(c, robot.Text(r.Text, r.Size))
}

func (h *handler) draw(c *gin.Context) {
	var r drawRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	h.run(c, robot.Shape(r.Shape, r.Size))
}

func (h *handler) svg(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSVGBody)
	var r svgRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	if r.Name == "" {
		r.Name = "drawing.svg"
	}
	h.run(c, robot.SVG(r.Name, r.SVG, r.Size))
}

// run blocks until the session ends. A disconnecting client does not stop
// the arm; POST /stop does.
func (h *handler) run(c *gin.Context, req robot.DrawingRequest) {
	if req.Size < 0 {
		badRequest(c, fmt.Errorf("size must not be negative, got %g", req.Size))
		return
	}

	res, err := h.sessions.Run(context.WithoutCancel(c.Request.Context()), req)
	tagSession(c, res)
	switch {
	case errors.Is(err, session.ErrSessionBusy):
		c.IndentedJSON(http.StatusConflict, response{Message: err.Error()})
	case session.IsRejected(err):
		c.IndentedJSON(http.StatusUnprocessableEntity, response{Message: err.Error(), Session: &res})
	case err != nil:
		c.IndentedJSON(http.StatusInternalServerError, response{Message: err.Error(), Session: &res})
		_ = c.Error(err)
	default:
		c.IndentedJSON(http.StatusOK, response{OK: res.OK(), Message: res.Message, Session: &res})
	}
}

func (h *handler) stop(c *gin.Context) {
	id, active := h.sessions.Active()
	if !active {
		c.IndentedJSON(http.StatusOK, response{OK: true, Message: "nothing to stop"})
		return
	}
	h.sessions.Stop()
	c.Set(sessionKey, id)
	c.IndentedJSON(http.StatusAccepted, response{OK: true, Message: "stopping " + id})
}

func (h *handler) check(c *gin.Context) {
	r := h.sessions.Check(c.Request.Context())
	resp := checkResponse{OK: r.Ready(), Message: "all systems ready", Items: r.Items}
	status := http.StatusOK
	if !resp.OK {
		resp.Message = fmt.Sprintf("%d issue(s)", len(r.Issues()))
		status = http.StatusServiceUnavailable
	}
	c.IndentedJSON(status, resp)
}

func (h *handler) status(c *gin.Context) {
	state := h.sessions.State()
	id, _ := h.sessions.Active()
	c.IndentedJSON(http.StatusOK, statusResponse{OK: true, Message: state.String(), State: state, Session: id})
}
