package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveGeneration("text&image", "ok", time.Second)
	m.IncLockContention()
	m.SetActiveSessions(3)
	if got, err := m.Gather(); err != nil || len(got) != 0 {
		t.Fatalf("nil Gather: want empty got=%v err=%v", got, err)
	}
}

func TestMetricsRecordAndServe(t *testing.T) {
	m := NewMetrics()
	m.ObserveGeneration("video&text", "ok", 2*time.Second)
	m.IncGenerationSave("fallback")
	m.IncGenerationSave("fallback")
	m.IncLockContention()

	got, err := m.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if got["nbp_generation_saves_total"] != 2 {
		t.Fatalf("saves: want=2 got=%v", got["nbp_generation_saves_total"])
	}
	if got["nbp_generation_lock_contention_total"] != 1 {
		t.Fatalf("contention: want=1 got=%v", got["nbp_generation_lock_contention_total"])
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `nbp_generation_runs_total{kind="video&text",outcome="ok"} 1`) {
		t.Fatalf("exposition missing generation run: %s", rec.Body.String())
	}
}
