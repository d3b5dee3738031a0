package player

import (
	"github.com/yungbote/neurobridge-player/internal/content"
	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/exam"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/progress"
)

// Notice is a user-visible failure, the equivalent of a toast.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func noticeFor(err error) *Notice {
	if !nberrors.Surfaced(err) {
		return nil
	}
	code := nberrors.Code(err)
	msg := "Something went wrong. Please try again."
	switch code {
	case "network":
		msg = "Could not reach the server. Please try again."
	case "unauthorized":
		msg = "Your session has expired. Please sign in again."
	case "not_found":
		msg = "This lesson could not be found."
	case "empty_generation":
		msg = "No content was generated for this lesson. Please try again."
	}
	return &Notice{Code: code, Message: msg}
}

type LessonState struct {
	Title      string `json:"title"`
	SectionID  string `json:"sectionId"`
	Done       bool   `json:"done"`
	HasContent bool   `json:"hasContent"`
	Loading    bool   `json:"loading"`
}

type TopicState struct {
	Title   string        `json:"title"`
	Lessons []LessonState `json:"lessons"`
}

// QuestionView is an exam question without its answer.
type QuestionView struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// RenderState is a full snapshot of what a client should display.
type RenderState struct {
	SessionID string                 `json:"sessionId"`
	CourseID  string                 `json:"courseId"`
	MainTopic string                 `json:"mainTopic"`
	Kind      domain.CourseKind      `json:"type"`
	Source    domain.HierarchySource `json:"source"`

	Topic     string           `json:"topic"`
	Subtopic  string           `json:"subtopic"`
	SectionID string           `json:"sectionId"`
	Loading   bool             `json:"loading"`
	Draft     bool             `json:"draft"`
	Content   content.Rendered `json:"content"`
	Image     string           `json:"image,omitempty"`
	YouTube   string           `json:"youtube,omitempty"`
	Done      bool             `json:"done"`

	Progress   progress.Progress `json:"progress"`
	Completed  bool              `json:"completed"`
	ExamPassed bool              `json:"examPassed"`
	InQuiz     bool              `json:"inQuiz"`
	CanNext    bool              `json:"canNext"`
	CanPrev    bool              `json:"canPrev"`

	Outline []TopicState   `json:"outline"`
	Notice  *Notice        `json:"notice,omitempty"`
	Exam    []QuestionView `json:"exam,omitempty"`
	Grade   *exam.Grade    `json:"grade,omitempty"`
}

func (p *Player) stateLocked() RenderState {
	st := RenderState{
		SessionID:  p.id,
		CourseID:   p.course.ID,
		MainTopic:  p.course.MainTopic,
		Kind:       p.course.Kind,
		Source:     p.h.Source,
		Progress:   progress.FromHierarchy(p.h, p.course.ExamPassed),
		Completed:  p.tracker.Completed(),
		ExamPassed: p.course.ExamPassed,
		InQuiz:     p.nav.InQuiz(),
		CanNext:    p.nav.CanNext(),
		CanPrev:    p.nav.CanPrev(),
		Notice:     p.notice,
		Grade:      p.grade,
	}

	if sec, ok := p.h.Section(p.current); ok {
		st.SectionID = sec.ID
		st.Subtopic = sec.Title
		if t, ok := p.h.TopicOf(sec.ID); ok {
			st.Topic = t.Title
		}
		st.Done = sec.Metadata.Done
		st.Image, st.YouTube = sec.Metadata.Image, sec.Metadata.YouTube
		c := sec.Content
		if !sec.HasContent() {
			if d, ok := p.drafts[sec.ID]; ok {
				c = d.Content
				st.Draft = true
				if st.Image == "" {
					st.Image = d.Image
				}
				if st.YouTube == "" {
					st.YouTube = d.YouTube
				}
			}
			st.Loading = p.locks.Held(p.keyLocked(sec))
		}
		st.Content = p.deps.Renderer.Adapt(c)
	}

	for _, t := range p.h.Topics() {
		ts := TopicState{Title: t.Title}
		for _, s := range p.h.Subtopics(t) {
			ts.Lessons = append(ts.Lessons, LessonState{
				Title:      s.Title,
				SectionID:  s.ID,
				Done:       s.Metadata.Done,
				HasContent: s.HasContent(),
				Loading:    !s.HasContent() && p.locks.Held(p.keyLocked(s)),
			})
		}
		st.Outline = append(st.Outline, ts)
	}

	if p.exam != nil {
		for _, q := range p.exam.Questions {
			st.Exam = append(st.Exam, QuestionView{Question: q.Question, Options: q.Options})
		}
	}
	return st
}
