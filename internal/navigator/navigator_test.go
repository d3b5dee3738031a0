package navigator

import (
	"errors"
	"testing"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
)

func outline() domain.Outline {
	return domain.Outline{
		{Title: "T1", Subtopics: []string{"a", "b"}},
		{Title: "Empty"},
		{Title: "T2", Subtopics: []string{"c", "d"}},
	}
}

func TestInitialStateAndPrevDisabled(t *testing.T) {
	n := New(outline(), false)
	topic, sub, ok := n.Current()
	if !ok || topic != "T1" || sub != "a" {
		t.Fatalf("initial: got=%s/%s ok=%v", topic, sub, ok)
	}
	if n.CanPrev() {
		t.Fatalf("prev must be disabled at the first lesson")
	}
	if _, err := n.Prev(); !errors.Is(err, nberrors.ErrInvalidArgument) {
		t.Fatalf("Prev at first: want error got=%v", err)
	}
}

func TestNextWalksAcrossTopicsSkippingEmpty(t *testing.T) {
	n := New(outline(), false)
	want := []string{"b", "c", "d"}
	for _, w := range want {
		if _, err := n.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
		if _, sub, _ := n.Current(); sub != w {
			t.Fatalf("Next: want=%s got=%s", w, sub)
		}
	}
	if p := n.Position(); p.Topic != 2 || p.Subtopic != 1 {
		t.Fatalf("position: got=%+v", p)
	}
}

func TestLastLessonRoutesToQuizWhenExamUnpassed(t *testing.T) {
	n := New(outline(), false)
	_ = n.Seek(2, 1)
	if !n.CanNext() {
		t.Fatalf("next must be enabled at last lesson with exam unpassed")
	}
	p, err := n.Next()
	if err != nil || !p.Quiz {
		t.Fatalf("Next: want quiz got=%+v err=%v", p, err)
	}
	if n.CanNext() {
		t.Fatalf("no next from the quiz state")
	}
	if p, _ := n.Prev(); p.Quiz || p.Topic != 2 || p.Subtopic != 1 {
		t.Fatalf("Prev from quiz: got=%+v", p)
	}
}

func TestLastLessonWithExamPassedDisablesNext(t *testing.T) {
	n := New(outline(), true)
	_ = n.SeekTitles("t2", "D")
	if n.CanNext() {
		t.Fatalf("next must be disabled at last lesson with exam passed")
	}
	if _, err := n.Next(); err == nil {
		t.Fatalf("Next: want error")
	}
	n.SetExamPassed(false)
	if !n.CanNext() {
		t.Fatalf("next must re-enable when the exam is unpassed")
	}
}

func TestPrevCrossesEmptyTopic(t *testing.T) {
	n := New(outline(), false)
	_ = n.Seek(2, 0)
	if _, err := n.Prev(); err != nil {
		t.Fatalf("Prev: %v", err)
	}
	if topic, sub, _ := n.Current(); topic != "T1" || sub != "b" {
		t.Fatalf("Prev: got=%s/%s", topic, sub)
	}
}

func TestSeekRejectsOutOfRange(t *testing.T) {
	n := New(outline(), false)
	if err := n.Seek(1, 0); !errors.Is(err, nberrors.ErrNotFound) {
		t.Fatalf("Seek into empty topic: want ErrNotFound got=%v", err)
	}
	if err := n.SeekTitles("T1", "zz"); !errors.Is(err, nberrors.ErrNotFound) {
		t.Fatalf("SeekTitles: want ErrNotFound got=%v", err)
	}
}

func TestRebuildKeepsPositionByTitle(t *testing.T) {
	n := New(outline(), false)
	_ = n.SeekTitles("T2", "c")
	n.Rebuild(domain.Outline{
		{Title: "T0", Subtopics: []string{"new"}},
		{Title: "T2", Subtopics: []string{"c", "d"}},
	})
	if p := n.Position(); p.Topic != 1 || p.Subtopic != 0 {
		t.Fatalf("Rebuild: got=%+v", p)
	}
	n.Rebuild(domain.Outline{{Title: "X", Subtopics: []string{"y"}}})
	if topic, _, _ := n.Current(); topic != "X" {
		t.Fatalf("Rebuild reset: got=%s", topic)
	}
}

func TestEmptyOutline(t *testing.T) {
	n := New(nil, false)
	if _, _, ok := n.Current(); ok {
		t.Fatalf("empty outline has no lesson")
	}
	if n.CanNext() || n.CanPrev() {
		t.Fatalf("empty outline: no transitions")
	}
}
