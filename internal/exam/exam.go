// Package exam requests the end-of-course quiz and grades answers to it.
package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/yungbote/neurobridge-player/internal/clients/backend"
	"github.com/yungbote/neurobridge-player/internal/content"
	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// PassPercentage is the score needed to pass.
const PassPercentage = 50

type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// AnswerIndex resolves Answer to an option index. Answers may be the option
// text or its letter ("a", "B"). It returns -1 when neither matches.
func (q Question) AnswerIndex() int {
	a := strings.TrimSpace(q.Answer)
	for i, o := range q.Options {
		if strings.EqualFold(strings.TrimSpace(o), a) {
			return i
		}
	}
	if len(a) == 1 {
		i := int(strings.ToLower(a)[0]) - 'a'
		if i >= 0 && i < len(q.Options) {
			return i
		}
	}
	return -1
}

type Exam struct {
	CourseID  string     `json:"courseId"`
	Questions []Question `json:"questions"`
}

type Grade struct {
	Correct    int  `json:"correct"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	Passed     bool `json:"passed"`
}

// Score grades answers, given as chosen option indices in question order.
// Missing or negative entries count as wrong.
func Score(e Exam, answers []int) Grade {
	g := Grade{Total: len(e.Questions)}
	for i, q := range e.Questions {
		if i < len(answers) && answers[i] >= 0 && answers[i] == q.AnswerIndex() {
			g.Correct++
		}
	}
	if g.Total > 0 {
		g.Percentage = int(math.Round(100 * float64(g.Correct) / float64(g.Total)))
	}
	g.Passed = g.Total > 0 && g.Percentage >= PassPercentage
	return g
}

type Generator interface {
	GenerateExam(ctx context.Context, req backend.ExamRequest) (json.RawMessage, error)
}

type Service struct {
	log *logger.Logger
	gen Generator
}

func NewService(log *logger.Logger, gen Generator) *Service {
	return &Service{log: log.With("service", "ExamService"), gen: gen}
}

// Generate asks for a quiz over every lesson title of the course.
func (s *Service) Generate(ctx context.Context, course domain.Course, m domain.LegacyCourseMap) (Exam, error) {
	var titles []string
	for _, t := range m.Topics(course.MainTopic) {
		for _, sub := range t.Subtopics {
			titles = append(titles, sub.Title)
		}
	}
	if len(titles) == 0 {
		return Exam{}, fmt.Errorf("course %s has no lessons: %w", course.ID, nberrors.ErrInvalidArgument)
	}
	raw, err := s.gen.GenerateExam(ctx, backend.ExamRequest{
		CourseID:        course.ID,
		MainTopic:       course.MainTopic,
		SubtopicsString: strings.Join(titles, ", "),
		Lang:            course.Language,
	})
	if err != nil {
		return Exam{}, err
	}
	qs, err := ParseQuestions(raw)
	if err != nil {
		s.log.Warn("exam payload unreadable", "course_id", course.ID, "error", err)
		return Exam{}, err
	}
	return Exam{CourseID: course.ID, Questions: qs}, nil
}

// ParseQuestions accepts a question array, an object holding one (under any
// single key or "questions"), or either of those encoded as a string and
// optionally fenced.
func ParseQuestions(raw json.RawMessage) ([]Question, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("exam payload: %v: %w", err, nberrors.ErrParse)
		}
		text = strings.TrimSpace(inner)
	}
	text = stripJSONFence(text)

	var qs []Question
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &qs); err != nil {
			return nil, fmt.Errorf("exam questions: %v: %w", err, nberrors.ErrParse)
		}
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("exam payload: %v: %w", err, nberrors.ErrParse)
		}
		inner, ok := obj["questions"]
		if !ok && len(obj) == 1 {
			for _, v := range obj {
				inner = v
			}
		}
		if len(inner) == 0 {
			return nil, fmt.Errorf("exam payload has no question list: %w", nberrors.ErrParse)
		}
		if err := json.Unmarshal(inner, &qs); err != nil {
			return nil, fmt.Errorf("exam questions: %v: %w", err, nberrors.ErrParse)
		}
	}

	out := qs[:0]
	for _, q := range qs {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) == 0 {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("exam has no usable questions: %w", nberrors.ErrParse)
	}
	return out, nil
}

func stripJSONFence(s string) string {
	if strings.HasPrefix(s, "```json") {
		s = "```" + strings.TrimPrefix(s, "```json")
	}
	return content.StripCodeFence(s)
}
