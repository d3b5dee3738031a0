// Package cache keeps the last known legacy course map per course so a
// reopened player can render before the hierarchy fetch returns.
package cache

import (
	"context"
	"sync"

	"github.com/yungbote/neurobridge-player/internal/domain"
)

// LegacyCache is keyed by course id. Get reports ok=false on a miss.
type LegacyCache interface {
	Get(ctx context.Context, courseID string) (domain.LegacyCourseMap, bool, error)
	Put(ctx context.Context, courseID string, m domain.LegacyCourseMap) error
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]domain.LegacyCourseMap
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]domain.LegacyCourseMap{}}
}

func (c *MemoryCache) Get(ctx context.Context, courseID string) (domain.LegacyCourseMap, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[courseID]
	if !ok {
		return nil, false, nil
	}
	return cloneMap(m), true, nil
}

func (c *MemoryCache) Put(ctx context.Context, courseID string, m domain.LegacyCourseMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[courseID] = cloneMap(m)
	return nil
}

func cloneMap(m domain.LegacyCourseMap) domain.LegacyCourseMap {
	if m == nil {
		return nil
	}
	out := make(domain.LegacyCourseMap, len(m))
	for k, topics := range m {
		cp := make([]domain.LegacyTopic, len(topics))
		for i, t := range topics {
			cp[i] = domain.LegacyTopic{Title: t.Title, Subtopics: append([]domain.LegacySubtopic(nil), t.Subtopics...)}
		}
		out[k] = cp
	}
	return out
}
