package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/neurobridge-player/internal/clients/backend"
	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

type savedPatch struct {
	sectionID string
	patch     domain.SectionPatch
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	imageURL string
	imageErr error

	videoID   string
	videoErr  error
	segments  []backend.TranscriptSegment
	transErr  error
	saved     bool
	genText   string
	genErr    error
	prompts   []string
	genReqs   []backend.GenerateRequest
	saves     []savedPatch
	reloadErr error
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.record("image:" + prompt)
	return f.imageURL, f.imageErr
}

func (f *fakeBackend) SearchVideo(ctx context.Context, query string) (string, error) {
	f.record("yt:" + query)
	return f.videoID, f.videoErr
}

func (f *fakeBackend) FetchTranscript(ctx context.Context, videoID string) ([]backend.TranscriptSegment, error) {
	f.record("transcript:" + videoID)
	return f.segments, f.transErr
}

func (f *fakeBackend) Generate(ctx context.Context, req backend.GenerateRequest) (backend.Generation, error) {
	f.record("generate")
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.genReqs = append(f.genReqs, req)
	f.mu.Unlock()
	if f.genErr != nil {
		return backend.Generation{}, f.genErr
	}
	text := f.genText
	if text == "" {
		text = "generated text"
	}
	return backend.Generation{Text: text, ContentType: "markdown", SavedToSection: f.saved}, nil
}

func (f *fakeBackend) SaveSectionContent(ctx context.Context, sectionID string, patch domain.SectionPatch) error {
	f.record("save")
	f.mu.Lock()
	f.saves = append(f.saves, savedPatch{sectionID, patch})
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Load(ctx context.Context, courseID, mainTopic string) (*domain.Hierarchy, error) {
	f.record("reload")
	if f.reloadErr != nil {
		return nil, f.reloadErr
	}
	return domain.NewHierarchy(courseID, domain.SourceHierarchy), nil
}

func (f *fakeBackend) kinds() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.SplitN(c, ":", 2)[0])
	}
	return out
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newText(t *testing.T, f *fakeBackend) *TextPipeline {
	t.Helper()
	p, err := NewTextPipeline(testLogger(t), Deps{Generator: f, Writer: f, Reloader: f}, f)
	if err != nil {
		t.Fatalf("NewTextPipeline: %v", err)
	}
	return p
}

func newVideo(t *testing.T, f *fakeBackend) *VideoPipeline {
	t.Helper()
	p, err := NewVideoPipeline(testLogger(t), Deps{Generator: f, Writer: f, Reloader: f}, f, f)
	if err != nil {
		t.Fatalf("NewVideoPipeline: %v", err)
	}
	return p
}

var req = Request{CourseID: "c1", SectionID: "s1", MainTopic: "Go", SubtopicTitle: "Channels", Language: "French"}

func TestTextSavedWithImageSendsMetadataOnly(t *testing.T) {
	f := &fakeBackend{imageURL: "http://img", saved: true}
	var draft Result
	res, err := newText(t, f).Run(context.Background(), req, func(r Result) { draft = r })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(f.kinds(), ","); got != "image,generate,save,reload" {
		t.Fatalf("call order: want=image,generate,save,reload got=%s", got)
	}
	if f.calls[0] != "image:Example of Channels in Go" {
		t.Fatalf("image prompt: got=%s", f.calls[0])
	}
	if f.genReqs[0].SectionID != "s1" || !strings.HasPrefix(f.prompts[0], "Strictly in French") {
		t.Fatalf("generate request: got=%+v", f.genReqs[0])
	}
	p := f.saves[0].patch
	if !p.IsMetadataOnly() || *p.Metadata.Image != "http://img" || p.Metadata.Done != nil {
		t.Fatalf("want metadata-only image patch, got=%+v", p)
	}
	if !res.SavedDirectly || res.FallbackSaved || res.Hierarchy == nil {
		t.Fatalf("result: got=%+v", res)
	}
	if draft.Content.Text != "generated text" || draft.Image != "http://img" {
		t.Fatalf("draft: got=%+v", draft)
	}
}

func TestTextNotSavedSendsFullFallback(t *testing.T) {
	f := &fakeBackend{imageURL: "http://img", saved: false}
	res, err := newText(t, f).Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.saves) != 1 {
		t.Fatalf("saves: want=1 got=%d", len(f.saves))
	}
	p := f.saves[0].patch
	if p.IsMetadataOnly() || p.Content == nil || *p.Content != "generated text" || p.ContentType != "markdown" {
		t.Fatalf("want full save, got=%+v", p)
	}
	if p.Metadata == nil || *p.Metadata.Image != "http://img" || p.Metadata.Done == nil || *p.Metadata.Done {
		t.Fatalf("fallback metadata: got=%+v", p.Metadata)
	}
	if !res.FallbackSaved || res.SavedDirectly {
		t.Fatalf("result flags: got=%+v", res)
	}
}

func TestTextSavedWithoutImageSkipsSave(t *testing.T) {
	f := &fakeBackend{saved: true}
	res, err := newText(t, f).Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(f.kinds(), ","); got != "image,generate,reload" {
		t.Fatalf("call order: got=%s", got)
	}
	if res.Image != "" || !res.SavedDirectly {
		t.Fatalf("result: got=%+v", res)
	}
}

func TestTextImageErrorAborts(t *testing.T) {
	f := &fakeBackend{imageErr: nberrors.ErrNetwork}
	_, err := newText(t, f).Run(context.Background(), req, nil)
	if !errors.Is(err, nberrors.ErrNetwork) {
		t.Fatalf("want ErrNetwork got=%v", err)
	}
	if got := strings.Join(f.kinds(), ","); got != "image" {
		t.Fatalf("no step may follow a failed image call, got=%s", got)
	}
}

func TestTextReloadFailurePropagates(t *testing.T) {
	f := &fakeBackend{saved: true, reloadErr: nberrors.ErrNetwork}
	res, err := newText(t, f).Run(context.Background(), req, nil)
	if !errors.Is(err, nberrors.ErrNetwork) {
		t.Fatalf("want ErrNetwork got=%v", err)
	}
	if res.Content.Text != "generated text" {
		t.Fatalf("completed steps are kept: got=%+v", res)
	}
}

func TestEmptyGenerationFails(t *testing.T) {
	f := &fakeBackend{saved: true, genText: "   "}
	_, err := newText(t, f).Run(context.Background(), req, nil)
	if !errors.Is(err, nberrors.ErrEmptyGeneration) {
		t.Fatalf("want ErrEmptyGeneration got=%v", err)
	}
}

func TestLegacyRunSkipsSaveAndReload(t *testing.T) {
	f := &fakeBackend{imageURL: "http://img"}
	legacy := req
	legacy.SectionID = ""
	res, err := newText(t, f).Run(context.Background(), legacy, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(f.kinds(), ","); got != "image,generate" {
		t.Fatalf("call order: got=%s", got)
	}
	if f.genReqs[0].SectionID != "" || res.Hierarchy != nil {
		t.Fatalf("legacy run must not direct-save or reload")
	}
}

func TestVideoSummarizesTranscript(t *testing.T) {
	f := &fakeBackend{videoID: "vid", segments: []backend.TranscriptSegment{{Text: "a"}, {Text: " "}, {Text: "b"}}, saved: true}
	res, err := newVideo(t, f).Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.calls[0] != "yt:Channels Go in english" {
		t.Fatalf("query: got=%s", f.calls[0])
	}
	if got := strings.Join(f.kinds(), ","); got != "yt,transcript,generate,save,reload" {
		t.Fatalf("call order: got=%s", got)
	}
	if !strings.Contains(f.prompts[0], "Summarize this theory in a teaching way :- a b.") {
		t.Fatalf("summary prompt: got=%s", f.prompts[0])
	}
	if p := f.saves[0].patch; !p.IsMetadataOnly() || *p.Metadata.YouTube != "vid" || p.Metadata.Image != nil {
		t.Fatalf("want youtube metadata patch, got=%+v", p)
	}
	if res.Degraded || res.YouTube != "vid" {
		t.Fatalf("result: got=%+v", res)
	}
}

func TestVideoTranscriptFailureDegrades(t *testing.T) {
	f := &fakeBackend{videoID: "vid", transErr: errors.New("captions disabled"), saved: false}
	res, err := newVideo(t, f).Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("degraded run must not fail: %v", err)
	}
	if !res.Degraded || res.YouTube != "vid" {
		t.Fatalf("result: got=%+v", res)
	}
	if !strings.Contains(f.prompts[0], "Explain me about this subtopic of Go with examples :- Channels") {
		t.Fatalf("want explanation prompt, got=%s", f.prompts[0])
	}
	p := f.saves[0].patch
	if p.Content == nil || *p.Metadata.YouTube != "vid" || *p.Metadata.Done {
		t.Fatalf("fallback patch: got=%+v", p)
	}
}

func TestVideoSearchAndTranscriptOutageStillGenerates(t *testing.T) {
	f := &fakeBackend{videoErr: nberrors.ErrNetwork, transErr: nberrors.ErrNetwork, saved: true}
	p := newVideo(t, f)
	ex := p.Extract(context.Background(), req)
	if !ex.Degraded || ex.Reason != ReasonVideoSearchFailed {
		t.Fatalf("extraction: got=%+v", ex)
	}
	f.calls = nil
	res, err := p.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(f.kinds(), ","); got != "yt,generate,reload" {
		t.Fatalf("call order: got=%s", got)
	}
	if res.Content.Text == "" || !res.Degraded {
		t.Fatalf("result: got=%+v", res)
	}
}

func TestCustomPrompts(t *testing.T) {
	f := &fakeBackend{saved: true}
	p, err := NewTextPipeline(testLogger(t), Deps{
		Generator: f, Writer: f, Reloader: f,
		Prompts: Prompts{Explain: "Teach {{.Subtopic}} ({{.Language}})"},
	}, f)
	if err != nil {
		t.Fatalf("NewTextPipeline: %v", err)
	}
	if _, err := p.Run(context.Background(), req, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.prompts[0] != "Teach Channels (French)" {
		t.Fatalf("prompt: got=%s", f.prompts[0])
	}
	if _, err := NewTextPipeline(testLogger(t), Deps{Generator: f, Prompts: Prompts{Image: "{{"}}, f); err == nil {
		t.Fatalf("want template parse error")
	}
}
