// Package pipeline acquires lesson content. A TextPipeline pairs an
// illustration with a generated explanation; a VideoPipeline pairs a video
// with a summary of its transcript. Both let the backend persist the text
// directly and fall back to a client-side save when it did not.
package pipeline

import (
	"context"

	"github.com/yungbote/neurobridge-player/internal/clients/backend"
	"github.com/yungbote/neurobridge-player/internal/domain"
)

type Request struct {
	CourseID string
	// SectionID is empty for courses that only exist as a legacy map. Such
	// runs generate without direct save and skip the save and reload steps.
	SectionID     string
	MainTopic     string
	SubtopicTitle string
	Language      string
}

func (r Request) legacy() bool { return r.SectionID == "" }

type Result struct {
	Content       domain.Content
	Image         string
	YouTube       string
	SavedDirectly bool
	FallbackSaved bool
	// Degraded is set when the video pipeline generated from the generic
	// prompt because no transcript was available.
	Degraded bool
	// Hierarchy is the reloaded tree; nil for legacy runs.
	Hierarchy *domain.Hierarchy
}

// Observer receives the draft result as soon as text is generated, before the
// save and reload steps.
type Observer func(draft Result)

// Runner is implemented by both pipelines.
type Runner interface {
	Run(ctx context.Context, req Request, observe Observer) (Result, error)
}

type Generator interface {
	Generate(ctx context.Context, req backend.GenerateRequest) (backend.Generation, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type VideoSearcher interface {
	SearchVideo(ctx context.Context, query string) (string, error)
}

type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) ([]backend.TranscriptSegment, error)
}

type SectionWriter interface {
	SaveSectionContent(ctx context.Context, sectionID string, patch domain.SectionPatch) error
}

type Reloader interface {
	Load(ctx context.Context, courseID, mainTopic string) (*domain.Hierarchy, error)
}
