package player

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/observability"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

type Options struct {
	// MaxConcurrentGenerations bounds background generations across all
	// sessions. Zero or less means unbounded.
	MaxConcurrentGenerations int
	// MaxSessions bounds mounted players. Zero or less means unbounded.
	MaxSessions int
}

// Manager owns the mounted players of this process.
type Manager struct {
	log  *logger.Logger
	deps Deps
	opts Options
	bg   *errgroup.Group

	mu       sync.RWMutex
	sessions map[string]*Player
	// pending counts mounts holding a session slot while they open.
	pending int
}

func NewManager(log *logger.Logger, deps Deps, opts Options) (*Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	bg := &errgroup.Group{}
	if opts.MaxConcurrentGenerations > 0 {
		bg.SetLimit(opts.MaxConcurrentGenerations)
	}
	return &Manager{
		log:      log.With("service", "PlayerManager"),
		deps:     deps,
		opts:     opts,
		bg:       bg,
		sessions: map[string]*Player{},
	}, nil
}

// Mount opens a player for course and starts loading its first lesson in the
// background.
func (m *Manager) Mount(ctx context.Context, owner string, course domain.Course) (*Player, RenderState, error) {
	if err := m.reserve(); err != nil {
		return nil, RenderState{}, err
	}

	p, err := New(m.log, m.deps, Config{
		ID:         uuid.NewString(),
		Owner:      strings.TrimSpace(owner),
		Course:     course,
		Background: m.bg,
	})
	if err != nil {
		m.unreserve()
		return nil, RenderState{}, err
	}
	st, err := p.Open(ctx)
	if err != nil {
		m.unreserve()
		return nil, RenderState{}, err
	}

	m.mu.Lock()
	m.pending--
	m.sessions[p.ID()] = p
	n := len(m.sessions)
	m.mu.Unlock()
	observability.Current().SetActiveSessions(n)

	if st.SectionID != "" && !st.InQuiz {
		if next, err := p.SelectLessonAsync(ctx, st.Topic, st.Subtopic); err == nil {
			st = next
		}
	}
	return p, st, nil
}

// reserve claims a session slot under the write lock so concurrent mounts
// cannot exceed MaxSessions.
func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts.MaxSessions > 0 && len(m.sessions)+m.pending >= m.opts.MaxSessions {
		return fmt.Errorf("session limit %d reached: %w", m.opts.MaxSessions, nberrors.ErrInvalidArgument)
	}
	m.pending++
	return nil
}

func (m *Manager) unreserve() {
	m.mu.Lock()
	m.pending--
	m.mu.Unlock()
}

// Get returns the session's player. Sessions of another owner are reported
// as missing.
func (m *Manager) Get(id, owner string) (*Player, error) {
	m.mu.RLock()
	p, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || p.Owner() != strings.TrimSpace(owner) {
		return nil, fmt.Errorf("player session %s: %w", id, nberrors.ErrNotFound)
	}
	return p, nil
}

func (m *Manager) Unmount(ctx context.Context, id, owner string) error {
	p, err := m.Get(id, owner)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	observability.Current().SetActiveSessions(n)
	p.Close(ctx)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every player and waits for background generations until
// ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	players := make([]*Player, 0, len(m.sessions))
	for _, p := range m.sessions {
		players = append(players, p)
	}
	m.sessions = map[string]*Player{}
	m.mu.Unlock()
	observability.Current().SetActiveSessions(0)

	for _, p := range players {
		p.Close(ctx)
	}

	done := make(chan error, 1)
	go func() { done <- m.bg.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		m.log.Warn("shutdown timed out waiting for background generations")
		return ctx.Err()
	}
}
