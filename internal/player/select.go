package player

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/genlock"
	"github.com/yungbote/neurobridge-player/internal/hierarchy"
	"github.com/yungbote/neurobridge-player/internal/observability"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/pipeline"
	"github.com/yungbote/neurobridge-player/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-player/internal/realtime"
)

// job is one claimed generation. The claim is released exactly once.
type job struct {
	key       domain.GenerationKey
	sectionID string
	topic     string
	subtopic  string
	req       pipeline.Request
	runner    pipeline.Runner
	seq       uint64

	once sync.Once
}

func (j *job) release(l *genlock.Lock) {
	j.once.Do(func() { l.Release(j.key) })
}

// SelectLesson shows a lesson, generating its content first when it has none.
// A lesson already generating is shown as loading without a second run.
func (p *Player) SelectLesson(ctx context.Context, topicTitle, subtopicTitle string) (RenderState, error) {
	j, st, err := p.begin(topicTitle, subtopicTitle)
	if err != nil || j == nil {
		if err == nil {
			p.emit(ctx, realtime.SSEEventPlayerState, st)
		}
		return st, err
	}
	return p.run(ctx, j)
}

// SelectLessonAsync claims the lesson like SelectLesson but runs its
// generation in the background on a context detached from ctx. The returned
// state shows the lesson loading; the result is published as an event.
func (p *Player) SelectLessonAsync(ctx context.Context, topicTitle, subtopicTitle string) (RenderState, error) {
	j, st, err := p.begin(topicTitle, subtopicTitle)
	if err != nil || j == nil {
		if err == nil {
			p.emit(ctx, realtime.SSEEventPlayerState, st)
		}
		return st, err
	}
	p.spawn(ctxutil.Detach(ctx), j)
	return st, nil
}

func (p *Player) spawn(ctx context.Context, j *job) {
	fn := func() error {
		if _, err := p.run(ctx, j); err != nil {
			p.log.Debug("background generation ended with error", "subtopic", j.subtopic, "error", err)
		}
		return nil
	}
	if !p.bg.TryGo(fn) {
		go p.bg.Go(fn)
	}
}

func (p *Player) begin(topicTitle, subtopicTitle string) (*job, RenderState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.readyLocked(); err != nil {
		return nil, RenderState{}, err
	}
	topic, sec, ok := p.h.Find(topicTitle, subtopicTitle)
	if !ok {
		return nil, p.stateLocked(), fmt.Errorf("lesson %q / %q: %w", topicTitle, subtopicTitle, nberrors.ErrNotFound)
	}
	_ = p.nav.SeekTitles(topic.Title, sec.Title)
	p.current = sec.ID
	p.notice = nil

	if sec.HasContent() {
		return nil, p.stateLocked(), nil
	}
	key := p.keyLocked(sec)
	if !p.locks.TryAcquire(key) {
		observability.Current().IncLockContention()
		p.log.Debug("generation already in flight", "key", key)
		return nil, p.stateLocked(), nil
	}

	req := pipeline.Request{
		CourseID:      p.course.ID,
		MainTopic:     p.course.MainTopic,
		SubtopicTitle: sec.Title,
		Language:      p.course.Language,
	}
	if p.h.Authoritative() {
		req.SectionID = sec.ID
	}
	return &job{
		key:       key,
		sectionID: sec.ID,
		topic:     topic.Title,
		subtopic:  sec.Title,
		req:       req,
		runner:    p.runnerLocked(),
		seq:       p.seq,
	}, p.stateLocked(), nil
}

func (p *Player) run(ctx context.Context, j *job) (RenderState, error) {
	defer j.release(p.locks)
	p.emit(ctx, realtime.SSEEventGenerationStarted, p.State())

	ctx, finish := observability.StartSpan(ctx, observability.Tracer("player"), "player.generate",
		attribute.String("course_id", j.req.CourseID),
		attribute.String("section_id", j.sectionID),
		attribute.String("generation_key", string(j.key)),
	)
	res, err := j.runner.Run(ctx, j.req, func(draft pipeline.Result) {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		p.drafts[j.sectionID] = draft
		st := p.stateLocked()
		p.mu.Unlock()
		p.emit(ctx, realtime.SSEEventPlayerState, st)
	})
	finish(err)

	// Content that reached the server is kept even when a later step failed.
	if err == nil || res.SavedDirectly || res.FallbackSaved {
		return p.complete(ctx, j, res, err)
	}
	return p.fail(ctx, j, err)
}

func (p *Player) fail(ctx context.Context, j *job, err error) (RenderState, error) {
	p.mu.Lock()
	delete(p.drafts, j.sectionID)
	j.release(p.locks)
	p.notice = noticeFor(err)
	st := p.stateLocked()
	p.mu.Unlock()

	p.log.Warn("lesson generation failed", "subtopic", j.subtopic, "error", err)
	p.emit(ctx, realtime.SSEEventGenerationFailed, st)
	return st, err
}

func (p *Player) complete(ctx context.Context, j *job, res pipeline.Result, runErr error) (RenderState, error) {
	p.mu.Lock()
	if res.Hierarchy != nil && len(res.Hierarchy.Leaves()) > 0 {
		p.h = hierarchy.Merge(p.h, res.Hierarchy, p.localDoneSinceLocked(j.seq))
		p.nav.Rebuild(p.h.Outline())
		if _, ok := p.h.Section(p.current); !ok {
			p.syncCurrentLocked()
		}
	}
	sec, ok := p.h.Section(j.sectionID)
	if !ok {
		_, sec, ok = p.h.Find(j.topic, j.subtopic)
	}
	if ok {
		if !sec.HasContent() {
			sec.Content = res.Content
		}
		if sec.Metadata.Image == "" {
			sec.Metadata.Image = res.Image
		}
		if sec.Metadata.YouTube == "" {
			sec.Metadata.YouTube = res.YouTube
		}
	}
	delete(p.drafts, j.sectionID)
	j.release(p.locks)
	if runErr != nil {
		p.notice = noticeFor(runErr)
	}
	st := p.stateLocked()
	p.mu.Unlock()

	p.syncCache(ctx)
	if runErr != nil {
		p.log.Warn("lesson generated but not fully synced", "subtopic", j.subtopic, "error", runErr)
	}
	p.emit(ctx, realtime.SSEEventPlayerState, st)
	return st, runErr
}
