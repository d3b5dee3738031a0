package hierarchy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-player/internal/cache"
	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

func twoByTwo() *domain.Hierarchy {
	h := domain.NewHierarchy("c1", domain.SourceHierarchy)
	h.Roots = []string{"t1", "t2"}
	h.Sections["t1"] = &domain.Section{ID: "t1", Title: "Basics", Children: []string{"s1", "s2"}}
	h.Sections["t2"] = &domain.Section{ID: "t2", Title: "Advanced", Children: []string{"s3", "s4"}}
	h.Sections["s1"] = &domain.Section{ID: "s1", Title: "Intro", Metadata: domain.SectionMetadata{Done: true}}
	h.Sections["s2"] = &domain.Section{ID: "s2", Title: "Syntax", Content: domain.Content{Kind: domain.ContentHTML, Text: "<p>x</p>"}}
	h.Sections["s3"] = &domain.Section{ID: "s3", Title: "Generics", Metadata: domain.SectionMetadata{Image: "http://img"}}
	h.Sections["s4"] = &domain.Section{ID: "s4", Title: "Channels", Metadata: domain.SectionMetadata{Done: true, YouTube: "vid"}}
	return h
}

func TestLegacyRoundTripPreservesTitlesAndDone(t *testing.T) {
	h := twoByTwo()
	m := ToLegacyMap(h, " Go ")
	if _, ok := m["go"]; !ok {
		t.Fatalf("key: want=go got=%v", m)
	}
	back := FromLegacyMap("c1", m, "Go")
	if back.Authoritative() {
		t.Fatalf("rebuilt hierarchy must be local")
	}
	want, got := h.Leaves(), back.Leaves()
	if len(want) != len(got) {
		t.Fatalf("leaves: want=%d got=%d", len(want), len(got))
	}
	for i := range want {
		if want[i].Title != got[i].Title || want[i].Metadata.Done != got[i].Metadata.Done {
			t.Fatalf("leaf %d: want=%s/%v got=%s/%v", i, want[i].Title, want[i].Metadata.Done, got[i].Title, got[i].Metadata.Done)
		}
		if want[i].ID != got[i].ID {
			t.Fatalf("leaf %d id: want=%s got=%s", i, want[i].ID, got[i].ID)
		}
	}
	if back.Outline()[1].Title != "Advanced" {
		t.Fatalf("topic order lost: %v", back.Outline())
	}
	if got[1].Content.Kind != domain.ContentHTML {
		t.Fatalf("content kind lost: %+v", got[1].Content)
	}
}

func TestToLegacyMapFillsMissingPieces(t *testing.T) {
	h := domain.NewHierarchy("c1", domain.SourceHierarchy)
	h.Roots = []string{"t1", "t2"}
	h.Sections["t1"] = &domain.Section{ID: "t1", Title: "Empty"}
	h.Sections["t2"] = &domain.Section{ID: "t2", Title: "Dangling", Children: []string{"gone"}}
	topics := ToLegacyMap(h, "go")["go"]
	if len(topics) != 2 {
		t.Fatalf("topics: want=2 got=%d", len(topics))
	}
	for _, tp := range topics {
		if tp.Subtopics == nil || len(tp.Subtopics) != 0 {
			t.Fatalf("%s: want empty non-nil subtopics got=%v", tp.Title, tp.Subtopics)
		}
	}
	if got := ToLegacyMap(nil, "go")["go"]; got == nil || len(got) != 0 {
		t.Fatalf("nil hierarchy: want empty topics got=%v", got)
	}
}

func TestFromLegacyMapMintsPositionalIDs(t *testing.T) {
	m := domain.LegacyCourseMap{"go": {
		{Title: "A", Subtopics: []domain.LegacySubtopic{{Title: "a1"}, {Title: "a2", SectionID: "real"}}},
	}}
	h := FromLegacyMap("c1", m, "go")
	leaves := h.Leaves()
	if leaves[0].ID != "legacy:0:0" || leaves[1].ID != "real" {
		t.Fatalf("ids: got=%s,%s", leaves[0].ID, leaves[1].ID)
	}
	if !IsSyntheticID(leaves[0].ID) || IsSyntheticID("real") {
		t.Fatalf("IsSyntheticID misclassified")
	}
	if sub := ToLegacyMap(h, "go")["go"][0].Subtopics[0]; sub.SectionID != "" {
		t.Fatalf("synthetic id leaked into legacy map: %q", sub.SectionID)
	}
}

func TestParseLegacyBlob(t *testing.T) {
	plain := `{"go":[{"title":"A","subtopics":[{"title":"a1","theory":"","done":false}]}]}`
	if m, err := ParseLegacyBlob(plain); err != nil || len(m["go"]) != 1 {
		t.Fatalf("plain: m=%v err=%v", m, err)
	}
	encoded := `"{\"go\":[{\"title\":\"A\",\"subtopics\":[]}]}"`
	if m, err := ParseLegacyBlob(encoded); err != nil || m["go"][0].Title != "A" {
		t.Fatalf("double encoded: m=%v err=%v", m, err)
	}
	fenced := "```json\n" + plain + "\n```"
	if _, err := ParseLegacyBlob(fenced); !errors.Is(err, nberrors.ErrParse) {
		// a json fence is not a markdown fence and is left in place
		t.Fatalf("json fence: want ErrParse got=%v", err)
	}
	for _, bad := range []string{"", "{", "{}"} {
		if _, err := ParseLegacyBlob(bad); !errors.Is(err, nberrors.ErrParse) {
			t.Fatalf("ParseLegacyBlob(%q): want ErrParse got=%v", bad, err)
		}
	}
}

func TestMergeKeepsKnownContentAndLocalDone(t *testing.T) {
	current := twoByTwo()
	current.Sections["s1"].Content = domain.Content{Kind: domain.ContentMarkdown, Text: "generated"}
	current.Sections["s1"].Metadata.Image = "http://local-img"
	current.Sections["s3"].Metadata.Done = true

	fetched := twoByTwo()
	fetched.Sections["s1"].Metadata.Done = false
	fetched.Sections["s3"].Metadata.Done = false
	fetched.Sections["t2"].Title = "Advanced Go"

	out := Merge(current, fetched, map[string]bool{"s3": true})
	if out.Sections["s1"].Content.Text != "generated" || out.Sections["s1"].Metadata.Image != "http://local-img" {
		t.Fatalf("known content regressed: %+v", out.Sections["s1"])
	}
	if out.Sections["s1"].Metadata.Done {
		t.Fatalf("s1 done: fetched value should win without a local write")
	}
	if !out.Sections["s3"].Metadata.Done {
		t.Fatalf("s3 done: local write after reload start should win")
	}
	if out.Sections["t2"].Title != "Advanced Go" {
		t.Fatalf("structure should come from fetched")
	}
	out.Sections["s2"].Title = "x"
	if fetched.Sections["s2"].Title != "Syntax" {
		t.Fatalf("Merge must not alias fetched")
	}
}

type fakeFetcher struct {
	mu       sync.Mutex
	inflight int32
	maxSeen  int32
	calls    int32
	err      error
	h        *domain.Hierarchy
}

func (f *fakeFetcher) FetchHierarchy(ctx context.Context, courseID string) (*domain.Hierarchy, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	f.mu.Lock()
	if n > f.maxSeen {
		f.maxSeen = n
	}
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	if f.err != nil {
		return nil, f.err
	}
	return f.h.Clone(), nil
}

func newStore(t *testing.T, f Fetcher, c cache.LegacyCache) *Store {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewStore(log, f, c)
}

func TestLoadPersistsLegacyMap(t *testing.T) {
	c := cache.NewMemoryCache()
	s := newStore(t, &fakeFetcher{h: twoByTwo()}, c)
	if _, err := s.Load(context.Background(), "c1", "Go"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, ok, err := s.Cached(context.Background(), "c1")
	if err != nil || !ok {
		t.Fatalf("Cached: ok=%v err=%v", ok, err)
	}
	if got := len(m["go"]); got != 2 {
		t.Fatalf("cached topics: want=2 got=%d", got)
	}
}

func TestLoadSerializesPerCourse(t *testing.T) {
	f := &fakeFetcher{h: twoByTwo()}
	s := newStore(t, f, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Load(context.Background(), "c1", "Go")
		}()
	}
	wg.Wait()
	if f.maxSeen != 1 {
		t.Fatalf("concurrent fetches: want=1 got=%d", f.maxSeen)
	}
	if f.calls != 8 {
		t.Fatalf("calls: want=8 got=%d", f.calls)
	}
	s.mu.Lock()
	gates := len(s.gates)
	s.mu.Unlock()
	if gates != 0 {
		t.Fatalf("idle gates: want=0 got=%d", gates)
	}
}

func TestLoadDropsGateAfterCancelledWait(t *testing.T) {
	s := newStore(t, &fakeFetcher{h: twoByTwo()}, nil)
	g := s.gate("c1")
	g.ch <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Load(ctx, "c1", "Go"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled got=%v", err)
	}
	<-g.ch
	s.ungate("c1", g)

	for _, id := range []string{"c2", "c3", "c4"} {
		if _, err := s.Load(context.Background(), id, "Go"); err != nil {
			t.Fatalf("Load %s: %v", id, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.gates) != 0 {
		t.Fatalf("gates: want=0 got=%d", len(s.gates))
	}
}

func TestLoadErrorSkipsCache(t *testing.T) {
	c := cache.NewMemoryCache()
	s := newStore(t, &fakeFetcher{err: nberrors.ErrNotFound}, c)
	if _, err := s.Load(context.Background(), "c1", "Go"); !errors.Is(err, nberrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound got=%v", err)
	}
	if _, ok, _ := c.Get(context.Background(), "c1"); ok {
		t.Fatalf("failed load must not write the cache")
	}
}
