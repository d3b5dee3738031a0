package player

import (
	"context"
	"fmt"

	"github.com/yungbote/neurobridge-player/internal/exam"
	"github.com/yungbote/neurobridge-player/internal/hierarchy"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/realtime"
)

// StartExam generates a quiz over the course's lessons.
func (p *Player) StartExam(ctx context.Context) (RenderState, error) {
	if p.deps.Exams == nil {
		return p.State(), fmt.Errorf("exams not configured: %w", nberrors.ErrInvalidArgument)
	}
	p.mu.Lock()
	if err := p.readyLocked(); err != nil {
		p.mu.Unlock()
		return RenderState{}, err
	}
	course := p.course
	m := hierarchy.ToLegacyMap(p.h, course.MainTopic)
	p.mu.Unlock()

	e, err := p.deps.Exams.Generate(ctx, course, m)
	p.mu.Lock()
	if err != nil {
		p.notice = noticeFor(err)
	} else {
		p.exam = &e
		p.grade = nil
		p.notice = nil
	}
	st := p.stateLocked()
	p.mu.Unlock()

	if err != nil {
		p.emit(ctx, realtime.SSEEventPlayerState, st)
		return st, err
	}
	p.emit(ctx, realtime.SSEEventExamReady, st)
	return st, nil
}

// ExamResult is either chosen option indices for the generated exam or an
// externally graded outcome.
type ExamResult struct {
	Answers []int `json:"answers"`
	Passed  *bool `json:"passed"`
}

// RecordExamResult stores an exam outcome. A pass is permanent.
func (p *Player) RecordExamResult(ctx context.Context, r ExamResult) (RenderState, error) {
	p.mu.Lock()
	if err := p.readyLocked(); err != nil {
		p.mu.Unlock()
		return RenderState{}, err
	}
	var passed bool
	switch {
	case len(r.Answers) > 0:
		if p.exam == nil {
			st := p.stateLocked()
			p.mu.Unlock()
			return st, fmt.Errorf("no exam in progress: %w", nberrors.ErrInvalidArgument)
		}
		g := exam.Score(*p.exam, r.Answers)
		p.grade = &g
		passed = g.Passed
	case r.Passed != nil:
		passed = *r.Passed
	default:
		st := p.stateLocked()
		p.mu.Unlock()
		return st, fmt.Errorf("answers or passed required: %w", nberrors.ErrInvalidArgument)
	}
	if passed && !p.course.ExamPassed {
		p.course.ExamPassed = true
		p.nav.SetExamPassed(true)
	}
	p.mu.Unlock()

	p.observeCompletion(ctx)
	st := p.State()
	p.emit(ctx, realtime.SSEEventPlayerState, st)
	return st, nil
}
