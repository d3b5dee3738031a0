package domain

import "strings"

type HierarchySource string

const (
	// SourceHierarchy is the server's per-section store; it is authoritative.
	SourceHierarchy HierarchySource = "hierarchy"
	// SourceLegacy is a tree rebuilt from the legacy blob or cache; writes stay local.
	SourceLegacy HierarchySource = "legacy"
)

// Hierarchy is an addressable section tree for one course.
type Hierarchy struct {
	CourseID string
	Source   HierarchySource
	Roots    []string
	Sections map[string]*Section
}

func NewHierarchy(courseID string, source HierarchySource) *Hierarchy {
	return &Hierarchy{
		CourseID: courseID,
		Source:   source,
		Sections: map[string]*Section{},
	}
}

func (h *Hierarchy) Authoritative() bool {
	return h != nil && h.Source == SourceHierarchy
}

func (h *Hierarchy) Section(id string) (*Section, bool) {
	if h == nil {
		return nil, false
	}
	s, ok := h.Sections[id]
	return s, ok
}

// Topics returns the root sections in order, skipping dangling ids.
func (h *Hierarchy) Topics() []*Section {
	if h == nil {
		return nil
	}
	out := make([]*Section, 0, len(h.Roots))
	for _, id := range h.Roots {
		if s, ok := h.Sections[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Subtopics returns the ordered children of topic, skipping dangling ids.
func (h *Hierarchy) Subtopics(topic *Section) []*Section {
	if h == nil || topic == nil {
		return nil
	}
	out := make([]*Section, 0, len(topic.Children))
	for _, id := range topic.Children {
		if s, ok := h.Sections[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Leaves returns every subtopic in display order.
func (h *Hierarchy) Leaves() []*Section {
	var out []*Section
	for _, t := range h.Topics() {
		out = append(out, h.Subtopics(t)...)
	}
	return out
}

// Find resolves a lesson by titles. Titles are matched exactly first, then
// case-insensitively.
func (h *Hierarchy) Find(topicTitle, subtopicTitle string) (*Section, *Section, bool) {
	for _, exact := range []bool{true, false} {
		for _, t := range h.Topics() {
			if !titleEq(t.Title, topicTitle, exact) {
				continue
			}
			for _, s := range h.Subtopics(t) {
				if titleEq(s.Title, subtopicTitle, exact) {
					return t, s, true
				}
			}
		}
	}
	return nil, nil, false
}

// TopicOf returns the topic that owns the leaf with id.
func (h *Hierarchy) TopicOf(id string) (*Section, bool) {
	for _, t := range h.Topics() {
		for _, c := range t.Children {
			if c == id {
				return t, true
			}
		}
	}
	return nil, false
}

func titleEq(a, b string, exact bool) bool {
	if exact {
		return a == b
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Outline is the ordered topic/subtopic title grid used for navigation.
type Outline []OutlineTopic

type OutlineTopic struct {
	Title     string
	Subtopics []string
}

func (h *Hierarchy) Outline() Outline {
	topics := h.Topics()
	out := make(Outline, 0, len(topics))
	for _, t := range topics {
		ot := OutlineTopic{Title: t.Title}
		for _, s := range h.Subtopics(t) {
			ot.Subtopics = append(ot.Subtopics, s.Title)
		}
		out = append(out, ot)
	}
	return out
}

func (h *Hierarchy) Clone() *Hierarchy {
	if h == nil {
		return nil
	}
	cp := &Hierarchy{
		CourseID: h.CourseID,
		Source:   h.Source,
		Roots:    append([]string(nil), h.Roots...),
		Sections: make(map[string]*Section, len(h.Sections)),
	}
	for id, s := range h.Sections {
		cp.Sections[id] = s.Clone()
	}
	return cp
}
