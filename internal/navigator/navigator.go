// Package navigator moves through a course outline lesson by lesson, ending
// in a virtual quiz state while the exam is unpassed.
package navigator

import (
	"fmt"
	"strings"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
)

// Position indexes into the outline. Quiz marks the state after the last
// lesson; Topic and Subtopic then still point at that lesson.
type Position struct {
	Topic    int  `json:"topic"`
	Subtopic int  `json:"subtopic"`
	Quiz     bool `json:"quiz"`
}

// Navigator is not safe for concurrent use.
type Navigator struct {
	outline    domain.Outline
	pos        Position
	examPassed bool
}

// New starts at the first lesson of the first topic that has one.
func New(outline domain.Outline, examPassed bool) *Navigator {
	n := &Navigator{outline: outline, examPassed: examPassed}
	n.pos, _ = n.first()
	return n
}

func (n *Navigator) first() (Position, bool) {
	for ti, t := range n.outline {
		if len(t.Subtopics) > 0 {
			return Position{Topic: ti}, true
		}
	}
	return Position{}, false
}

func (n *Navigator) last() (Position, bool) {
	for ti := len(n.outline) - 1; ti >= 0; ti-- {
		if k := len(n.outline[ti].Subtopics); k > 0 {
			return Position{Topic: ti, Subtopic: k - 1}, true
		}
	}
	return Position{}, false
}

func (n *Navigator) valid(p Position) bool {
	return p.Topic >= 0 && p.Topic < len(n.outline) &&
		p.Subtopic >= 0 && p.Subtopic < len(n.outline[p.Topic].Subtopics)
}

func (n *Navigator) Position() Position { return n.pos }

func (n *Navigator) ExamPassed() bool { return n.examPassed }

func (n *Navigator) SetExamPassed(v bool) { n.examPassed = v }

func (n *Navigator) Outline() domain.Outline { return n.outline }

// Current returns the titles of the lesson the navigator points at.
func (n *Navigator) Current() (topic, subtopic string, ok bool) {
	if !n.valid(n.pos) {
		return "", "", false
	}
	t := n.outline[n.pos.Topic]
	return t.Title, t.Subtopics[n.pos.Subtopic], true
}

func (n *Navigator) InQuiz() bool { return n.pos.Quiz }

func (n *Navigator) atFirst() bool {
	f, ok := n.first()
	return !ok || (!n.pos.Quiz && n.pos.Topic == f.Topic && n.pos.Subtopic == f.Subtopic)
}

func (n *Navigator) atLast() bool {
	l, ok := n.last()
	return ok && n.pos.Topic == l.Topic && n.pos.Subtopic == l.Subtopic
}

// CanNext is false only at the last lesson once the exam is passed, in the
// quiz state, or when there are no lessons.
func (n *Navigator) CanNext() bool {
	if n.pos.Quiz || !n.valid(n.pos) {
		return false
	}
	return !(n.atLast() && n.examPassed)
}

// CanPrev is false only at the very first lesson.
func (n *Navigator) CanPrev() bool {
	return n.valid(n.pos) && !n.atFirst()
}

// Next advances one lesson, skipping empty topics. From the last lesson it
// enters the quiz state while the exam is unpassed.
func (n *Navigator) Next() (Position, error) {
	if !n.CanNext() {
		return n.pos, fmt.Errorf("no next lesson: %w", nberrors.ErrInvalidArgument)
	}
	if n.atLast() {
		n.pos.Quiz = true
		return n.pos, nil
	}
	p := n.pos
	if p.Subtopic+1 < len(n.outline[p.Topic].Subtopics) {
		p.Subtopic++
		n.pos = p
		return n.pos, nil
	}
	for ti := p.Topic + 1; ti < len(n.outline); ti++ {
		if len(n.outline[ti].Subtopics) > 0 {
			n.pos = Position{Topic: ti}
			return n.pos, nil
		}
	}
	return n.pos, fmt.Errorf("no next lesson: %w", nberrors.ErrInvalidArgument)
}

// Prev steps back one lesson. From the quiz state it returns to the last
// lesson.
func (n *Navigator) Prev() (Position, error) {
	if n.pos.Quiz {
		n.pos.Quiz = false
		return n.pos, nil
	}
	if !n.CanPrev() {
		return n.pos, fmt.Errorf("no previous lesson: %w", nberrors.ErrInvalidArgument)
	}
	p := n.pos
	if p.Subtopic > 0 {
		p.Subtopic--
		n.pos = p
		return n.pos, nil
	}
	for ti := p.Topic - 1; ti >= 0; ti-- {
		if k := len(n.outline[ti].Subtopics); k > 0 {
			n.pos = Position{Topic: ti, Subtopic: k - 1}
			return n.pos, nil
		}
	}
	return n.pos, fmt.Errorf("no previous lesson: %w", nberrors.ErrInvalidArgument)
}

func (n *Navigator) Seek(topic, subtopic int) error {
	p := Position{Topic: topic, Subtopic: subtopic}
	if !n.valid(p) {
		return fmt.Errorf("lesson %d/%d: %w", topic, subtopic, nberrors.ErrNotFound)
	}
	n.pos = p
	return nil
}

// SeekTitles moves to the lesson with the given titles, matching exactly
// first and then case-insensitively.
func (n *Navigator) SeekTitles(topic, subtopic string) error {
	p, ok := n.find(topic, subtopic)
	if !ok {
		return fmt.Errorf("lesson %q/%q: %w", topic, subtopic, nberrors.ErrNotFound)
	}
	n.pos = p
	return nil
}

func (n *Navigator) find(topic, subtopic string) (Position, bool) {
	for _, exact := range []bool{true, false} {
		eq := func(a, b string) bool {
			if exact {
				return a == b
			}
			return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
		}
		for ti, t := range n.outline {
			if !eq(t.Title, topic) {
				continue
			}
			for si, s := range t.Subtopics {
				if eq(s, subtopic) {
					return Position{Topic: ti, Subtopic: si}, true
				}
			}
		}
	}
	return Position{}, false
}

// Rebuild swaps the outline and keeps the current lesson by title when it
// still exists; otherwise it resets to the first lesson.
func (n *Navigator) Rebuild(outline domain.Outline) {
	topic, sub, ok := n.Current()
	quiz := n.pos.Quiz
	n.outline = outline
	if ok {
		if p, found := n.find(topic, sub); found {
			n.pos = p
			n.pos.Quiz = quiz && n.atLast()
			return
		}
	}
	n.pos, _ = n.first()
}
