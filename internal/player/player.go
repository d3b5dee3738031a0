// Package player orchestrates one mounted course: it resolves lessons, starts
// at most one generation per lesson, tracks progress and navigation, and
// publishes render states to the session's event channel.
package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurobridge-player/internal/content"
	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/exam"
	"github.com/yungbote/neurobridge-player/internal/genlock"
	"github.com/yungbote/neurobridge-player/internal/hierarchy"
	"github.com/yungbote/neurobridge-player/internal/navigator"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/pipeline"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
	"github.com/yungbote/neurobridge-player/internal/progress"
	"github.com/yungbote/neurobridge-player/internal/realtime"
)

var ErrClosed = errors.New("player closed")

// Loader is the hierarchy store as seen by a player.
type Loader interface {
	Load(ctx context.Context, courseID, mainTopic string) (*domain.Hierarchy, error)
	Cached(ctx context.Context, courseID string) (domain.LegacyCourseMap, bool, error)
	Persist(ctx context.Context, h *domain.Hierarchy, mainTopic string) error
}

type Renderer interface {
	Adapt(c domain.Content) content.Rendered
}

type ExamGenerator interface {
	Generate(ctx context.Context, course domain.Course, m domain.LegacyCourseMap) (exam.Exam, error)
}

type Publisher interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

type Deps struct {
	Store    Loader
	Renderer Renderer
	Text     pipeline.Runner
	Video    pipeline.Runner
	Progress *progress.Engine
	Exams    ExamGenerator
	Finisher progress.Finisher
	Events   Publisher
}

func (d Deps) validate() error {
	switch {
	case d.Store == nil:
		return fmt.Errorf("player: store required: %w", nberrors.ErrInvalidArgument)
	case d.Renderer == nil:
		return fmt.Errorf("player: renderer required: %w", nberrors.ErrInvalidArgument)
	case d.Text == nil || d.Video == nil:
		return fmt.Errorf("player: both pipelines required: %w", nberrors.ErrInvalidArgument)
	case d.Progress == nil:
		return fmt.Errorf("player: progress engine required: %w", nberrors.ErrInvalidArgument)
	}
	return nil
}

type Config struct {
	ID     string
	Owner  string
	Course domain.Course
	// Background runs async selections. A nil group gets an unbounded one.
	Background *errgroup.Group
}

type Player struct {
	id    string
	owner string
	log   *logger.Logger
	deps  Deps
	bg    *errgroup.Group
	locks *genlock.Lock

	// cacheMu orders legacy cache writes so the last write holds the
	// newest tree.
	cacheMu sync.Mutex

	mu      sync.Mutex
	course  domain.Course
	h       *domain.Hierarchy
	nav     *navigator.Navigator
	tracker *progress.Tracker
	current string
	drafts  map[string]pipeline.Result
	notice  *Notice
	exam    *exam.Exam
	grade   *exam.Grade
	// seq orders local done writes against in-flight reloads.
	seq     uint64
	doneSeq map[string]uint64
	opened  bool
	closed  bool
}

func New(log *logger.Logger, deps Deps, cfg Config) (*Player, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	course := cfg.Course.Normalize()
	if course.ID == "" {
		return nil, fmt.Errorf("course id required: %w", nberrors.ErrInvalidArgument)
	}
	bg := cfg.Background
	if bg == nil {
		bg = &errgroup.Group{}
	}
	return &Player{
		id:      cfg.ID,
		owner:   cfg.Owner,
		log:     log.With("service", "Player", "session_id", cfg.ID, "course_id", course.ID),
		deps:    deps,
		bg:      bg,
		locks:   genlock.New(),
		course:  course,
		drafts:  map[string]pipeline.Result{},
		doneSeq: map[string]uint64{},
	}, nil
}

func (p *Player) ID() string    { return p.id }
func (p *Player) Owner() string { return p.owner }

// Open loads the course tree and positions the player on the first lesson.
// Courses without a server hierarchy are rebuilt from the local cache or the
// legacy content blob; their writes stay local.
func (p *Player) Open(ctx context.Context) (RenderState, error) {
	p.mu.Lock()
	course := p.course
	p.mu.Unlock()

	h, notice, err := p.load(ctx, course)
	if err != nil {
		return RenderState{}, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return RenderState{}, ErrClosed
	}
	p.h = h
	p.nav = navigator.New(h.Outline(), course.ExamPassed)
	p.tracker = progress.NewTracker(p.log, course.ID, course.Completed, p.deps.Finisher)
	p.notice = notice
	p.opened = true
	p.syncCurrentLocked()
	st := p.stateLocked()
	p.mu.Unlock()

	p.log.Info("player opened", "source", h.Source, "lessons", len(h.Leaves()))
	p.emit(ctx, realtime.SSEEventPlayerState, st)
	return st, nil
}

func (p *Player) load(ctx context.Context, course domain.Course) (*domain.Hierarchy, *Notice, error) {
	h, err := p.deps.Store.Load(ctx, course.ID, course.MainTopic)
	if err == nil && len(h.Leaves()) > 0 {
		return h, nil, nil
	}
	loadErr := err
	if loadErr == nil {
		loadErr = fmt.Errorf("course %s has an empty hierarchy: %w", course.ID, nberrors.ErrNotFound)
	}
	if errors.Is(loadErr, nberrors.ErrUnauthorized) {
		return nil, nil, loadErr
	}
	var notice *Notice
	if !errors.Is(loadErr, nberrors.ErrNotFound) {
		notice = noticeFor(loadErr)
	}

	m, ok, cerr := p.deps.Store.Cached(ctx, course.ID)
	if cerr != nil {
		p.log.Warn("legacy cache read failed", "error", cerr)
	}
	if ok {
		if lh := hierarchy.FromLegacyMap(course.ID, m, course.MainTopic); len(lh.Leaves()) > 0 {
			p.log.Info("using cached legacy course", "load_error", loadErr)
			return lh, notice, nil
		}
	}

	if strings.TrimSpace(course.LegacyContent) != "" {
		m, perr := hierarchy.ParseLegacyBlob(course.LegacyContent)
		if perr != nil {
			p.log.Warn("legacy content unreadable", "error", perr)
		} else if lh := hierarchy.FromLegacyMap(course.ID, m, course.MainTopic); len(lh.Leaves()) > 0 {
			if err := p.deps.Store.Persist(ctx, lh, course.MainTopic); err != nil {
				p.log.Warn("legacy cache write failed", "error", err)
			}
			return lh, notice, nil
		}
	}
	return nil, nil, loadErr
}

// syncCurrentLocked points current at the navigator's lesson.
func (p *Player) syncCurrentLocked() {
	topic, sub, ok := p.nav.Current()
	if !ok {
		p.current = ""
		return
	}
	if _, sec, ok := p.h.Find(topic, sub); ok {
		p.current = sec.ID
	}
}

func (p *Player) runnerLocked() pipeline.Runner {
	if p.course.Kind == domain.CourseKindVideoText {
		return p.deps.Video
	}
	return p.deps.Text
}

func (p *Player) keyLocked(sec *domain.Section) domain.GenerationKey {
	topicTitle := ""
	if t, ok := p.h.TopicOf(sec.ID); ok {
		topicTitle = t.Title
	}
	return domain.KeyFor(p.h, sec.ID, topicTitle, sec.Title)
}

func (p *Player) readyLocked() error {
	if p.closed {
		return ErrClosed
	}
	if !p.opened {
		return fmt.Errorf("player not opened: %w", nberrors.ErrInvalidArgument)
	}
	return nil
}

// markDoneLocked records a local done write for Merge.
func (p *Player) markDoneLocked(id string) {
	p.seq++
	p.doneSeq[id] = p.seq
}

func (p *Player) localDoneSinceLocked(seq uint64) map[string]bool {
	out := map[string]bool{}
	for id, s := range p.doneSeq {
		if s <= seq {
			continue
		}
		if sec, ok := p.h.Section(id); ok {
			out[id] = sec.Metadata.Done
		}
	}
	return out
}

func (p *Player) emit(ctx context.Context, event realtime.SSEEvent, st RenderState) {
	if p.deps.Events == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	p.deps.Events.Emit(ctx, realtime.SSEMessage{Channel: p.id, Event: event, Data: st})
}

// syncCache writes the legacy projection of the current tree to the cache,
// for server and local trees alike.
func (p *Player) syncCache(ctx context.Context) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	p.mu.Lock()
	if p.h == nil {
		p.mu.Unlock()
		return
	}
	snapshot := p.h.Clone()
	mainTopic := p.course.MainTopic
	p.mu.Unlock()

	if err := p.deps.Store.Persist(ctx, snapshot, mainTopic); err != nil {
		p.log.Warn("legacy cache write failed", "course_id", snapshot.CourseID, "error", err)
	}
}

func (p *Player) State() RenderState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opened {
		return RenderState{SessionID: p.id, CourseID: p.course.ID}
	}
	return p.stateLocked()
}

// Close drops in-flight generation claims and stops publishing. Running
// generations are not cancelled and the local cache is left intact.
func (p *Player) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	if p.deps.Events != nil {
		p.deps.Events.Emit(ctx, realtime.SSEMessage{Channel: p.id, Event: realtime.SSEEventPlayerClosed})
	}

	p.mu.Lock()
	p.closed = true
	p.locks.Clear()
	p.drafts = map[string]pipeline.Result{}
	p.mu.Unlock()
	p.log.Info("player closed")
}
