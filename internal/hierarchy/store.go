// Package hierarchy loads course section trees and keeps the legacy map
// projection and its local cache in step with them.
package hierarchy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/neurobridge-player/internal/cache"
	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/observability"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// Fetcher returns the authoritative tree of a course.
type Fetcher interface {
	FetchHierarchy(ctx context.Context, courseID string) (*domain.Hierarchy, error)
}

type Store struct {
	log     *logger.Logger
	fetcher Fetcher
	cache   cache.LegacyCache

	mu    sync.Mutex
	gates map[string]*courseGate
}

// courseGate admits one load of a course at a time. It is dropped from the
// store once nobody holds or waits on it.
type courseGate struct {
	ch   chan struct{}
	refs int
}

func NewStore(log *logger.Logger, fetcher Fetcher, c cache.LegacyCache) *Store {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &Store{
		log:     log.With("service", "HierarchyStore"),
		fetcher: fetcher,
		cache:   c,
		gates:   map[string]*courseGate{},
	}
}

func (s *Store) gate(courseID string) *courseGate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[courseID]
	if !ok {
		g = &courseGate{ch: make(chan struct{}, 1)}
		s.gates[courseID] = g
	}
	g.refs++
	return g
}

func (s *Store) ungate(courseID string, g *courseGate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.refs--
	if g.refs == 0 {
		delete(s.gates, courseID)
	}
}

// Load fetches the course tree. Loads of one course run one at a time, so
// concurrent reloads complete in the order they were queued. Every success
// also refreshes the cached legacy map.
func (s *Store) Load(ctx context.Context, courseID, mainTopic string) (*domain.Hierarchy, error) {
	courseID = strings.TrimSpace(courseID)
	ctx, finish := observability.StartSpan(ctx, observability.Tracer("hierarchy"), "hierarchy.load",
		attribute.String("course_id", courseID))

	g := s.gate(courseID)
	select {
	case g.ch <- struct{}{}:
	case <-ctx.Done():
		s.ungate(courseID, g)
		finish(ctx.Err())
		return nil, ctx.Err()
	}
	defer func() {
		<-g.ch
		s.ungate(courseID, g)
	}()

	h, err := s.fetcher.FetchHierarchy(ctx, courseID)
	if err != nil {
		observability.Current().IncHierarchyLoad(string(domain.SourceHierarchy), "error")
		finish(err)
		return nil, fmt.Errorf("load hierarchy %s: %w", courseID, err)
	}
	observability.Current().IncHierarchyLoad(string(domain.SourceHierarchy), "ok")
	if err := s.Persist(ctx, h, mainTopic); err != nil {
		s.log.Warn("legacy cache write failed", "course_id", courseID, "error", err)
	}
	finish(nil)
	return h, nil
}

// Cached returns the last legacy map persisted for the course.
func (s *Store) Cached(ctx context.Context, courseID string) (domain.LegacyCourseMap, bool, error) {
	return s.cache.Get(ctx, courseID)
}

// Persist writes the legacy projection of h to the cache.
func (s *Store) Persist(ctx context.Context, h *domain.Hierarchy, mainTopic string) error {
	if h == nil {
		return nil
	}
	return s.cache.Put(ctx, h.CourseID, ToLegacyMap(h, mainTopic))
}
