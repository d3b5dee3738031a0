package player

import (
	"context"
	"fmt"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/progress"
	"github.com/yungbote/neurobridge-player/internal/realtime"
)

// doneWrite is a done flag applied locally and waiting to be persisted.
type doneWrite struct {
	sectionID string
	value     bool
	snapshot  *domain.Hierarchy
}

type move struct {
	topic    string
	subtopic string
	quiz     bool
	state    RenderState
}

// advance moves the navigator. Moving forward marks the lesson being left as
// done.
func (p *Player) advance(forward bool) (move, *doneWrite, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.readyLocked(); err != nil {
		return move{}, nil, err
	}

	var dw *doneWrite
	if forward {
		if !p.nav.CanNext() {
			return move{state: p.stateLocked()}, nil, fmt.Errorf("no next lesson: %w", nberrors.ErrInvalidArgument)
		}
		if sec, ok := p.h.Section(p.current); ok && !p.nav.InQuiz() && !sec.Metadata.Done {
			if err := p.deps.Progress.Apply(p.h, sec.ID, true); err == nil {
				p.markDoneLocked(sec.ID)
				dw = &doneWrite{sectionID: sec.ID, value: true, snapshot: p.h.Clone()}
			}
		}
		if _, err := p.nav.Next(); err != nil {
			return move{state: p.stateLocked()}, dw, err
		}
	} else if _, err := p.nav.Prev(); err != nil {
		return move{state: p.stateLocked()}, nil, err
	}

	m := move{quiz: p.nav.InQuiz()}
	m.topic, m.subtopic, _ = p.nav.Current()
	p.syncCurrentLocked()
	p.notice = nil
	m.state = p.stateLocked()
	return m, dw, nil
}

func (p *Player) step(ctx context.Context, forward, async bool) (RenderState, error) {
	m, dw, err := p.advance(forward)
	if dw != nil {
		p.commitDone(ctx, dw)
	}
	if err != nil {
		return m.state, err
	}
	if m.quiz {
		st := p.State()
		p.emit(ctx, realtime.SSEEventPlayerState, st)
		return st, nil
	}
	if async {
		return p.SelectLessonAsync(ctx, m.topic, m.subtopic)
	}
	return p.SelectLesson(ctx, m.topic, m.subtopic)
}

// Next marks the current lesson done and moves to the next one, or to the
// quiz after the last lesson while the exam is unpassed.
func (p *Player) Next(ctx context.Context) (RenderState, error) { return p.step(ctx, true, false) }

func (p *Player) NextAsync(ctx context.Context) (RenderState, error) {
	return p.step(ctx, true, true)
}

func (p *Player) Prev(ctx context.Context) (RenderState, error) { return p.step(ctx, false, false) }

func (p *Player) PrevAsync(ctx context.Context) (RenderState, error) {
	return p.step(ctx, false, true)
}

// ToggleDone sets a lesson's done flag. The flag is applied locally first; a
// failed server write leaves it applied and surfaces a notice.
func (p *Player) ToggleDone(ctx context.Context, topicTitle, subtopicTitle string, value bool) (RenderState, error) {
	p.mu.Lock()
	if err := p.readyLocked(); err != nil {
		p.mu.Unlock()
		return RenderState{}, err
	}
	_, sec, ok := p.h.Find(topicTitle, subtopicTitle)
	if !ok {
		st := p.stateLocked()
		p.mu.Unlock()
		return st, fmt.Errorf("lesson %q / %q: %w", topicTitle, subtopicTitle, nberrors.ErrNotFound)
	}
	if err := p.deps.Progress.Apply(p.h, sec.ID, value); err != nil {
		st := p.stateLocked()
		p.mu.Unlock()
		return st, err
	}
	p.markDoneLocked(sec.ID)
	dw := &doneWrite{sectionID: sec.ID, value: value, snapshot: p.h.Clone()}
	p.mu.Unlock()

	err := p.commitDone(ctx, dw)
	st := p.State()
	p.emit(ctx, realtime.SSEEventPlayerState, st)
	return st, err
}

// commitDone persists a done write and folds the new progress into the
// completion flag.
func (p *Player) commitDone(ctx context.Context, dw *doneWrite) error {
	err := p.deps.Progress.Persist(ctx, dw.snapshot, dw.sectionID, dw.value)
	if err != nil {
		p.log.Warn("done flag not persisted", "section_id", dw.sectionID, "error", err)
		p.mu.Lock()
		p.notice = noticeFor(err)
		p.mu.Unlock()
	}
	p.syncCache(ctx)
	p.observeCompletion(ctx)
	return err
}

func (p *Player) observeCompletion(ctx context.Context) {
	p.mu.Lock()
	prog := progress.FromHierarchy(p.h, p.course.ExamPassed)
	tracker := p.tracker
	p.mu.Unlock()

	if _, flipped := tracker.Observe(ctx, prog); flipped {
		p.mu.Lock()
		p.course.Completed = true
		st := p.stateLocked()
		p.mu.Unlock()
		p.emit(ctx, realtime.SSEEventCourseCompleted, st)
	}
}
