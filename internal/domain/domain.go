// Package domain holds the course-player data model: courses, the section
// hierarchy, the legacy topic map projection and generation keys.
package domain

import "strings"

type CourseKind string

const (
	CourseKindTextImage CourseKind = "text&image"
	CourseKindVideoText CourseKind = "video&text"
)

// ParseCourseKind normalises a stored kind string. Anything that is not
// recognisably a video course is a text&image course.
func ParseCourseKind(raw string) CourseKind {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case string(CourseKindVideoText), "video & text course", "video", "video&text course":
		return CourseKindVideoText
	default:
		if strings.HasPrefix(s, "video") {
			return CourseKindVideoText
		}
		return CourseKindTextImage
	}
}

type Course struct {
	ID            string     `json:"id"`
	MainTopic     string     `json:"mainTopic"`
	Kind          CourseKind `json:"type"`
	Language      string     `json:"lang"`
	Slug          string     `json:"slug,omitempty"`
	Completed     bool       `json:"completed"`
	ExamPassed    bool       `json:"examPassed"`
	LegacyContent string     `json:"content,omitempty"`
}

// Normalize fills defaults the rest of the engine relies on.
func (c Course) Normalize() Course {
	c.ID = strings.TrimSpace(c.ID)
	c.MainTopic = strings.TrimSpace(c.MainTopic)
	c.Kind = ParseCourseKind(string(c.Kind))
	c.Language = strings.TrimSpace(c.Language)
	if c.Language == "" {
		c.Language = "English"
	}
	return c
}

// LegacyKey is the key of the course's topic list inside a LegacyCourseMap.
func (c Course) LegacyKey() string { return LegacyKey(c.MainTopic) }
