package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := New(log, Config{
		BaseURL:       srv.URL + "/",
		Timeout:       2 * time.Second,
		MaxRetries:    retries,
		SessionCookie: "nb_session",
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Temperature:   0.7,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchHierarchyDecodesIDsAndEmbeddedChildren(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hierarchy" || r.URL.Query().Get("courseId") != "c1" || r.URL.Query().Get("includeContent") != "true" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization: want=Bearer tok got=%q", got)
		}
		if ck, err := r.Cookie("nb_session"); err != nil || ck.Value != "tok" {
			t.Errorf("session cookie missing: %v", err)
		}
		_, _ = io.WriteString(w, `{"success":true,"hierarchy":[
			{"_id":"t1","title":"Basics","children":[
				{"_id":"s1","title":"Intro","content":"# Hi","contentType":"markdown","metadata":{"image":"http://img","done":true}},
				"s2"
			]},
			{"id":"s2","title":"Syntax","parentId":"t1","content":[{"type":"paragraph"}]}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	ctx := ctxutil.WithSession(context.Background(), &ctxutil.Session{Token: "tok"})
	h, err := c.FetchHierarchy(ctx, "c1")
	if err != nil {
		t.Fatalf("FetchHierarchy: %v", err)
	}
	if len(h.Roots) != 1 || h.Roots[0] != "t1" {
		t.Fatalf("roots: want=[t1] got=%v", h.Roots)
	}
	leaves := h.Leaves()
	if len(leaves) != 2 {
		t.Fatalf("leaves: want=2 got=%d", len(leaves))
	}
	if leaves[0].Content.Kind != domain.ContentMarkdown || !leaves[0].Metadata.Done || leaves[0].Metadata.Image != "http://img" {
		t.Fatalf("s1 decoded wrong: %+v", leaves[0])
	}
	if leaves[1].Content.Kind != domain.ContentRich {
		t.Fatalf("s2 kind: want=rich got=%s", leaves[1].Content.Kind)
	}
	if !h.Authoritative() {
		t.Fatalf("want authoritative hierarchy")
	}
}

func TestFetchHierarchyNotFound(t *testing.T) {
	cases := []http.HandlerFunc{
		func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusNotFound) },
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"success":false,"message":"no course"}`)
		},
	}
	for i, h := range cases {
		srv := httptest.NewServer(h)
		c := newTestClient(t, srv, 0)
		_, err := c.FetchHierarchy(context.Background(), "c1")
		srv.Close()
		if !errors.Is(err, nberrors.ErrNotFound) {
			t.Fatalf("case %d: want ErrNotFound got=%v", i, err)
		}
	}
}

func TestIdempotentCallsRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)
	done := true
	if err := c.SaveSectionContent(context.Background(), "s1", domain.SectionPatch{Metadata: &domain.MetadataPatch{Done: &done}}); err != nil {
		t.Fatalf("SaveSectionContent: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls: want=2 got=%d", got)
	}
}

func TestGenerateIsSingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	if !errors.Is(err, nberrors.ErrNetwork) {
		t.Fatalf("want ErrNetwork got=%v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls: want=1 got=%d", got)
	}
}

func TestGenerateSendsSectionAndReadsSavedFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["sectionId"] != "s1" || body["provider"] != "openai" || body["temperature"] != 0.7 {
			t.Errorf("unexpected body: %v", body)
		}
		_, _ = io.WriteString(w, `{"text":"hello","contentType":"markdown","metadata":{"savedToSection":true}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	g, err := c.Generate(context.Background(), GenerateRequest{Prompt: "p", SectionID: "s1"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !g.SavedToSection || g.Content().Text != "hello" {
		t.Fatalf("generation: got=%+v", g)
	}
}

func TestSaveSectionContentMetadataOnlyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sections/s1/content" {
			t.Errorf("path: got=%s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if strings.TrimSpace(string(raw)) != `{"metadata":{"image":"http://img"}}` {
			t.Errorf("body: got=%s", raw)
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	img := "http://img"
	if err := c.SaveSectionContent(context.Background(), "s1", domain.SectionPatch{Metadata: &domain.MetadataPatch{Image: &img}}); err != nil {
		t.Fatalf("SaveSectionContent: %v", err)
	}
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)
	if _, err := c.GenerateImage(context.Background(), "p"); !errors.Is(err, nberrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized got=%v", err)
	}
}

func TestTranscriptAndExam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transcript":
			_, _ = io.WriteString(w, `{"url":[{"text":"a"},{"text":"b"}]}`)
		case "/aiexam":
			_, _ = io.WriteString(w, `{"success":true,"message":"{\"q\":1}"}`)
		case "/finish":
			_, _ = io.WriteString(w, `{"success":true}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	segs, err := c.FetchTranscript(context.Background(), "vid")
	if err != nil || len(segs) != 2 {
		t.Fatalf("FetchTranscript: segs=%v err=%v", segs, err)
	}
	raw, err := c.GenerateExam(context.Background(), ExamRequest{CourseID: "c1"})
	if err != nil || !strings.HasPrefix(string(raw), `"`) {
		t.Fatalf("GenerateExam: raw=%s err=%v", raw, err)
	}
	if err := c.Finish(context.Background(), "c1"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
}
