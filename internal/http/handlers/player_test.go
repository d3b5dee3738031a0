package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-player/internal/content"
	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/pipeline"
	"github.com/yungbote/neurobridge-player/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
	"github.com/yungbote/neurobridge-player/internal/player"
	"github.com/yungbote/neurobridge-player/internal/progress"
	"github.com/yungbote/neurobridge-player/internal/realtime"
)

type stubStore struct{}

func (stubStore) Load(ctx context.Context, courseID, mainTopic string) (*domain.Hierarchy, error) {
	h := domain.NewHierarchy(courseID, domain.SourceHierarchy)
	h.Roots = []string{"t1"}
	h.Sections["t1"] = &domain.Section{ID: "t1", Title: "Basics", Children: []string{"s1", "s2"}}
	h.Sections["s1"] = &domain.Section{ID: "s1", Title: "Intro"}
	h.Sections["s2"] = &domain.Section{ID: "s2", Title: "Syntax"}
	return h, nil
}

func (stubStore) Cached(ctx context.Context, courseID string) (domain.LegacyCourseMap, bool, error) {
	return nil, false, nil
}

func (stubStore) Persist(ctx context.Context, h *domain.Hierarchy, mainTopic string) error {
	return nil
}

type stubRunner struct{ runs atomic.Int32 }

func (r *stubRunner) Run(ctx context.Context, req pipeline.Request, observe pipeline.Observer) (pipeline.Result, error) {
	r.runs.Add(1)
	return pipeline.Result{Content: domain.Content{Kind: domain.ContentMarkdown, Text: "hello *" + req.SubtopicTitle + "*"}}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *player.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	runner := &stubRunner{}
	hub := realtime.NewSSEHub(log)
	m, err := player.NewManager(log, player.Deps{
		Store:    stubStore{},
		Renderer: content.NewAdapter(log),
		Text:     runner,
		Video:    runner,
		Progress: progress.NewEngine(log, nil),
		Events:   realtime.NewEmitter(log, hub, nil),
	}, player.Options{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h := NewPlayerHandler(log, m, hub)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := ctxutil.WithSession(c.Request.Context(), &ctxutil.Session{Token: "t", Subject: c.GetHeader("X-Test-Subject")})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.POST("/sessions", h.Mount)
	r.GET("/sessions/:id", h.GetState)
	r.DELETE("/sessions/:id", h.Unmount)
	r.POST("/sessions/:id/select", h.Select)
	r.POST("/sessions/:id/done", h.ToggleDone)
	r.POST("/sessions/:id/exam/result", h.RecordExamResult)
	return r, m
}

func do(t *testing.T, r *gin.Engine, method, path, subject string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Subject", subject)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) player.RenderState {
	t.Helper()
	var st player.RenderState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v body=%s", err, rec.Body.String())
	}
	return st
}

func TestPlayerHandlerLifecycle(t *testing.T) {
	r, m := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/sessions", "u1", map[string]any{"courseId": "c1", "mainTopic": "Go", "type": "text&image"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mount: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if st.SessionID == "" || st.CourseID != "c1" || len(st.Outline) != 1 {
		t.Fatalf("mount state: got=%+v", st)
	}
	path := "/sessions/" + st.SessionID

	if rec := do(t, r, http.MethodGet, path, "u2", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("other subject: want=404 got=%d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, path+"/select", "u1", map[string]any{"topic": "Basics", "subtopic": "Syntax", "wait": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("select: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if st := decodeState(t, rec); st.SectionID != "s2" || !strings.Contains(st.Content.HTML, "<em>Syntax</em>") {
		t.Fatalf("select state: section=%s html=%q", st.SectionID, st.Content.HTML)
	}

	if rec := do(t, r, http.MethodPost, path+"/select", "u1", map[string]any{"topic": "Basics", "subtopic": "Nope", "wait": true}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown lesson: want=404 got=%d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, path+"/done", "u1", map[string]any{"topic": "Basics", "subtopic": "Intro"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("done without flag: want=400 got=%d", rec.Code)
	}
	rec = do(t, r, http.MethodPost, path+"/done", "u1", map[string]any{"topic": "Basics", "subtopic": "Intro", "done": true})
	if st := decodeState(t, rec); rec.Code != http.StatusOK || st.Progress.Done != 1 {
		t.Fatalf("done: status=%d progress=%+v", rec.Code, st.Progress)
	}
	rec = do(t, r, http.MethodPost, path+"/exam/result", "u1", map[string]any{"passed": true})
	if st := decodeState(t, rec); rec.Code != http.StatusOK || !st.ExamPassed {
		t.Fatalf("exam result: status=%d passed=%v", rec.Code, st.ExamPassed)
	}

	if rec := do(t, r, http.MethodDelete, path, "u1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("unmount: want=204 got=%d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, path, "u1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("after unmount: want=404 got=%d", rec.Code)
	}
	if m.Len() != 0 {
		t.Fatalf("sessions: want=0 got=%d", m.Len())
	}
	_ = m.Shutdown(context.Background())
}

func TestMountRejectsMissingCourse(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(t, r, http.MethodPost, "/sessions", "u1", map[string]any{"mainTopic": "Go"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d", rec.Code)
	}
}
