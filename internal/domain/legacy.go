package domain

import "strings"

// LegacyCourseMap is the flat, pre-hierarchy course shape:
// lower-cased main topic -> ordered topics -> ordered subtopics.
type LegacyCourseMap map[string][]LegacyTopic

type LegacyTopic struct {
	Title     string           `json:"title"`
	Subtopics []LegacySubtopic `json:"subtopics"`
}

type LegacySubtopic struct {
	Title       string `json:"title"`
	Theory      string `json:"theory"`
	ContentType string `json:"contentType"`
	Done        bool   `json:"done"`
	Image       string `json:"image"`
	YouTube     string `json:"youtube"`
	SectionID   string `json:"sectionId,omitempty"`
}

func LegacyKey(mainTopic string) string {
	return strings.ToLower(strings.TrimSpace(mainTopic))
}

// Topics returns the topic list for mainTopic. A map with a single entry is
// read regardless of its key, which covers blobs saved under a differently
// cased or trimmed topic.
func (m LegacyCourseMap) Topics(mainTopic string) []LegacyTopic {
	if m == nil {
		return nil
	}
	if topics, ok := m[LegacyKey(mainTopic)]; ok {
		return topics
	}
	if len(m) == 1 {
		for _, topics := range m {
			return topics
		}
	}
	return nil
}
