package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/http/response"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
	"github.com/yungbote/neurobridge-player/internal/player"
	"github.com/yungbote/neurobridge-player/internal/realtime"
)

type PlayerSessions interface {
	Mount(ctx context.Context, owner string, course domain.Course) (*player.Player, player.RenderState, error)
	Get(id, owner string) (*player.Player, error)
	Unmount(ctx context.Context, id, owner string) error
}

type PlayerHandler struct {
	log      *logger.Logger
	sessions PlayerSessions
	hub      *realtime.SSEHub
}

func NewPlayerHandler(log *logger.Logger, sessions PlayerSessions, hub *realtime.SSEHub) *PlayerHandler {
	return &PlayerHandler{log: log.With("handler", "PlayerHandler"), sessions: sessions, hub: hub}
}

func subject(c *gin.Context) string {
	if s := ctxutil.GetSession(c.Request.Context()); s != nil {
		return s.Subject
	}
	return ""
}

func (h *PlayerHandler) player(c *gin.Context) (*player.Player, bool) {
	p, err := h.sessions.Get(c.Param("id"), subject(c))
	if err != nil {
		response.RespondServiceError(c, err)
		return nil, false
	}
	return p, true
}

// wait reports whether the caller asked to block until generation finishes.
func wait(c *gin.Context, body bool) bool {
	if body {
		return true
	}
	v := strings.ToLower(strings.TrimSpace(c.Query("wait")))
	return v == "1" || v == "true"
}

type mountRequest struct {
	domain.Course
	CourseID string `json:"courseId"`
}

// POST /api/player/sessions
func (h *PlayerHandler) Mount(c *gin.Context) {
	var req mountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	course := req.Course
	if course.ID == "" {
		course.ID = req.CourseID
	}
	if strings.TrimSpace(course.ID) == "" || strings.TrimSpace(course.MainTopic) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("id and mainTopic are required"))
		return
	}
	_, st, err := h.sessions.Mount(c.Request.Context(), subject(c), course)
	if err != nil {
		h.log.Warn("mount failed", "course_id", course.ID, "error", err)
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// GET /api/player/sessions/:id
func (h *PlayerHandler) GetState(c *gin.Context) {
	p, ok := h.player(c)
	if !ok {
		return
	}
	response.RespondOK(c, p.State())
}

// DELETE /api/player/sessions/:id
func (h *PlayerHandler) Unmount(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Unmount(c.Request.Context(), id, subject(c)); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if h.hub != nil {
		h.hub.CloseChannel(id)
	}
	c.Status(http.StatusNoContent)
}

type selectRequest struct {
	Topic    string `json:"topic"`
	Subtopic string `json:"subtopic"`
	Wait     bool   `json:"wait"`
}

// POST /api/player/sessions/:id/select
func (h *PlayerHandler) Select(c *gin.Context) {
	p, ok := h.player(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Topic == "" || req.Subtopic == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("topic and subtopic are required"))
		return
	}
	ctx := ctxutil.Detach(c.Request.Context())
	var (
		st  player.RenderState
		err error
	)
	if wait(c, req.Wait) {
		st, err = p.SelectLesson(ctx, req.Topic, req.Subtopic)
	} else {
		st, err = p.SelectLessonAsync(ctx, req.Topic, req.Subtopic)
	}
	h.respondState(c, st, err)
}

// POST /api/player/sessions/:id/next
func (h *PlayerHandler) Next(c *gin.Context) {
	p, ok := h.player(c)
	if !ok {
		return
	}
	ctx := ctxutil.Detach(c.Request.Context())
	if wait(c, false) {
		st, err := p.Next(ctx)
		h.respondState(c, st, err)
		return
	}
	st, err := p.NextAsync(ctx)
	h.respondState(c, st, err)
}

// POST /api/player/sessions/:id/prev
func (h *PlayerHandler) Prev(c *gin.Context) {
	p, ok := h.player(c)
	if !ok {
		return
	}
	ctx := ctxutil.Detach(c.Request.Context())
	if wait(c, false) {
		st, err := p.Prev(ctx)
		h.respondState(c, st, err)
		return
	}
	st, err := p.PrevAsync(ctx)
	h.respondState(c, st, err)
}

type doneRequest struct {
	Topic    string `json:"topic"`
	Subtopic string `json:"subtopic"`
	Done     *bool  `json:"done"`
}

// POST /api/player/sessions/:id/done
func (h *PlayerHandler) ToggleDone(c *gin.Context) {
	p, ok := h.player(c)
	if !ok {
		return
	}
	var req doneRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Done == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("topic, subtopic and done are required"))
		return
	}
	st, err := p.ToggleDone(c.Request.Context(), req.Topic, req.Subtopic, *req.Done)
	h.respondState(c, st, err)
}

// POST /api/player/sessions/:id/exam
func (h *PlayerHandler) StartExam(c *gin.Context) {
	p, ok := h.player(c)
	if !ok {
		return
	}
	st, err := p.StartExam(ctxutil.Detach(c.Request.Context()))
	h.respondState(c, st, err)
}

// POST /api/player/sessions/:id/exam/result
func (h *PlayerHandler) RecordExamResult(c *gin.Context) {
	p, ok := h.player(c)
	if !ok {
		return
	}
	var req player.ExamResult
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	st, err := p.RecordExamResult(c.Request.Context(), req)
	h.respondState(c, st, err)
}

// GET /api/player/sessions/:id/events
func (h *PlayerHandler) Events(c *gin.Context) {
	p, ok := h.player(c)
	if !ok {
		return
	}
	if h.hub == nil {
		response.RespondError(c, http.StatusNotImplemented, "unavailable", fmt.Errorf("event stream disabled"))
		return
	}
	client := h.hub.NewSSEClient(subject(c))
	h.hub.AddChannel(client, p.ID())
	client.Outbound <- realtime.SSEMessage{Channel: p.ID(), Event: realtime.SSEEventPlayerState, Data: p.State()}

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}

// respondState answers 200 when err is already carried by the state as a
// notice.
func (h *PlayerHandler) respondState(c *gin.Context, st player.RenderState, err error) {
	if err == nil {
		response.RespondOK(c, st)
		return
	}
	if st.SessionID != "" && st.Notice != nil && nberrors.Surfaced(err) {
		c.JSON(http.StatusOK, st)
		return
	}
	response.RespondServiceError(c, err)
}
