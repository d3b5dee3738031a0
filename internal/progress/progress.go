// Package progress computes course completion from lesson done flags and the
// exam, and tracks the one-way course completed flag.
package progress

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// Progress counts the exam as one unit on top of the lessons.
type Progress struct {
	Percentage int `json:"percentage"`
	Done       int `json:"done"`
	Total      int `json:"total"`
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(done) / float64(total)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func examUnit(passed bool) int {
	if passed {
		return 1
	}
	return 0
}

// Compute counts the lessons of mainTopic's entry in m.
func Compute(m domain.LegacyCourseMap, mainTopic string, examPassed bool) Progress {
	total, done := 1, examUnit(examPassed)
	for _, t := range m.Topics(mainTopic) {
		for _, s := range t.Subtopics {
			total++
			if s.Done {
				done++
			}
		}
	}
	return Progress{Percentage: percent(done, total), Done: done, Total: total}
}

func ComputeCompletion(m domain.LegacyCourseMap, mainTopic string, examPassed bool) int {
	return Compute(m, mainTopic, examPassed).Percentage
}

// FromHierarchy counts the leaves of h.
func FromHierarchy(h *domain.Hierarchy, examPassed bool) Progress {
	total, done := 1, examUnit(examPassed)
	for _, s := range h.Leaves() {
		total++
		if s.Metadata.Done {
			done++
		}
	}
	return Progress{Percentage: percent(done, total), Done: done, Total: total}
}

// DoneWriter persists a lesson's done flag.
type DoneWriter interface {
	SaveSectionContent(ctx context.Context, sectionID string, patch domain.SectionPatch) error
}

type Engine struct {
	log    *logger.Logger
	writer DoneWriter
}

func NewEngine(log *logger.Logger, writer DoneWriter) *Engine {
	return &Engine{log: log.With("service", "ProgressEngine"), writer: writer}
}

// Apply sets the done flag of a lesson in h. Only leaves can be toggled.
func (e *Engine) Apply(h *domain.Hierarchy, sectionID string, value bool) error {
	sec, ok := h.Section(sectionID)
	if !ok {
		return fmt.Errorf("section %s: %w", sectionID, nberrors.ErrNotFound)
	}
	if _, isLeaf := h.TopicOf(sectionID); !isLeaf {
		return fmt.Errorf("section %s is not a lesson: %w", sectionID, nberrors.ErrInvalidArgument)
	}
	sec.Metadata.Done = value
	return nil
}

// Persist writes the done flag when h is the server's tree. Local trees are
// persisted through the legacy cache by the caller.
func (e *Engine) Persist(ctx context.Context, h *domain.Hierarchy, sectionID string, value bool) error {
	if !h.Authoritative() || e.writer == nil {
		return nil
	}
	v := value
	if err := e.writer.SaveSectionContent(ctx, sectionID, domain.SectionPatch{
		Metadata: &domain.MetadataPatch{Done: &v},
	}); err != nil {
		return fmt.Errorf("persist done for %s: %w", sectionID, err)
	}
	return nil
}

// ToggleDone applies and persists a done flag and returns the new progress.
func (e *Engine) ToggleDone(ctx context.Context, h *domain.Hierarchy, sectionID string, value, examPassed bool) (Progress, error) {
	if err := e.Apply(h, sectionID, value); err != nil {
		return Progress{}, err
	}
	if err := e.Persist(ctx, h, sectionID, value); err != nil {
		return FromHierarchy(h, examPassed), err
	}
	return FromHierarchy(h, examPassed), nil
}

// Finisher records course completion with the backend.
type Finisher interface {
	Finish(ctx context.Context, courseID string) error
}

// Tracker holds the course completed flag. It turns true the first time
// progress reaches 100 and stays true.
type Tracker struct {
	log      *logger.Logger
	courseID string
	finisher Finisher

	mu        sync.Mutex
	completed bool
}

func NewTracker(log *logger.Logger, courseID string, completed bool, finisher Finisher) *Tracker {
	return &Tracker{
		log:       log.With("service", "CompletionTracker", "course_id", courseID),
		courseID:  courseID,
		finisher:  finisher,
		completed: completed,
	}
}

func (t *Tracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Observe folds p into the flag and reports whether this call flipped it.
// A flip notifies the finisher once.
func (t *Tracker) Observe(ctx context.Context, p Progress) (completed, flipped bool) {
	t.mu.Lock()
	if !t.completed && p.Percentage >= 100 {
		t.completed = true
		flipped = true
	}
	completed = t.completed
	t.mu.Unlock()

	if flipped && t.finisher != nil {
		if err := t.finisher.Finish(ctx, t.courseID); err != nil {
			t.log.Warn("course finish call failed", "error", err)
		} else {
			t.log.Info("course completed")
		}
	}
	return completed, flipped
}
