package hierarchy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/neurobridge-player/internal/content"
	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
)

const syntheticIDPrefix = "legacy:"

func topicID(ti int) string { return syntheticIDPrefix + strconv.Itoa(ti) }

func subtopicID(ti, si int) string {
	return syntheticIDPrefix + strconv.Itoa(ti) + ":" + strconv.Itoa(si)
}

// IsSyntheticID reports whether id was minted by FromLegacyMap rather than
// assigned by the server.
func IsSyntheticID(id string) bool { return strings.HasPrefix(id, syntheticIDPrefix) }

// ToLegacyMap projects h onto the flat legacy shape under mainTopic's key.
// It never fails: missing pieces become empty strings, false or empty lists.
func ToLegacyMap(h *domain.Hierarchy, mainTopic string) domain.LegacyCourseMap {
	topics := []domain.LegacyTopic{}
	for _, t := range h.Topics() {
		lt := domain.LegacyTopic{Title: t.Title, Subtopics: []domain.LegacySubtopic{}}
		for _, s := range h.Subtopics(t) {
			sub := domain.LegacySubtopic{
				Title:   s.Title,
				Done:    s.Metadata.Done,
				Image:   s.Metadata.Image,
				YouTube: s.Metadata.YouTube,
			}
			if s.HasContent() {
				sub.Theory = s.Content.Text
				sub.ContentType = string(s.Content.Kind)
			}
			if !IsSyntheticID(s.ID) {
				sub.SectionID = s.ID
			}
			lt.Subtopics = append(lt.Subtopics, sub)
		}
		topics = append(topics, lt)
	}
	return domain.LegacyCourseMap{domain.LegacyKey(mainTopic): topics}
}

// FromLegacyMap rebuilds a local hierarchy from a legacy map. Subtopics keep
// the section id they were cached with; everything else gets a positional id.
func FromLegacyMap(courseID string, m domain.LegacyCourseMap, mainTopic string) *domain.Hierarchy {
	h := domain.NewHierarchy(courseID, domain.SourceLegacy)
	for ti, lt := range m.Topics(mainTopic) {
		tid := topicID(ti)
		topic := &domain.Section{ID: tid, Title: lt.Title}
		for si, ls := range lt.Subtopics {
			sid := strings.TrimSpace(ls.SectionID)
			if sid == "" || h.Sections[sid] != nil {
				sid = subtopicID(ti, si)
			}
			h.Sections[sid] = &domain.Section{
				ID:      sid,
				Title:   ls.Title,
				Content: domain.NewContent(ls.Theory, ls.ContentType),
				Metadata: domain.SectionMetadata{
					Image:   ls.Image,
					YouTube: ls.YouTube,
					Done:    ls.Done,
				},
			}
			topic.Children = append(topic.Children, sid)
		}
		h.Sections[tid] = topic
		h.Roots = append(h.Roots, tid)
	}
	return h
}

// ParseLegacyBlob decodes a course's monolithic content blob. Blobs saved as a
// JSON string holding the JSON map, or wrapped in a code fence, are accepted.
func ParseLegacyBlob(raw string) (domain.LegacyCourseMap, error) {
	raw = content.StripCodeFence(raw)
	if raw == "" {
		return nil, fmt.Errorf("legacy blob is empty: %w", nberrors.ErrParse)
	}
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return nil, fmt.Errorf("legacy blob: %v: %w", err, nberrors.ErrParse)
		}
		raw = strings.TrimSpace(inner)
	}
	var m domain.LegacyCourseMap
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("legacy blob: %v: %w", err, nberrors.ErrParse)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("legacy blob has no topics: %w", nberrors.ErrParse)
	}
	return m, nil
}
