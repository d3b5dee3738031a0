package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/neurobridge-player/internal/clients/backend"
	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/observability"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// Deps are the collaborators shared by both pipelines.
type Deps struct {
	Generator Generator
	Writer    SectionWriter
	Reloader  Reloader
	Prompts   Prompts
}

type base struct {
	log     *logger.Logger
	kind    domain.CourseKind
	gen     Generator
	writer  SectionWriter
	reload  Reloader
	prompts *promptSet
	tracer  trace.Tracer
}

func newBase(log *logger.Logger, kind domain.CourseKind, name string, d Deps) (*base, error) {
	if d.Generator == nil {
		return nil, fmt.Errorf("%s: generator required: %w", name, nberrors.ErrInvalidArgument)
	}
	ps, err := d.Prompts.compile()
	if err != nil {
		return nil, err
	}
	return &base{
		log:     log.With("pipeline", name),
		kind:    kind,
		gen:     d.Generator,
		writer:  d.Writer,
		reload:  d.Reloader,
		prompts: ps,
		tracer:  observability.Tracer("pipeline"),
	}, nil
}

func (b *base) span(ctx context.Context, step string, req Request) (context.Context, func(error)) {
	return observability.StartSpan(ctx, b.tracer, "pipeline."+step,
		attribute.String("course_kind", string(b.kind)),
		attribute.String("course_id", req.CourseID),
		attribute.String("section_id", req.SectionID),
	)
}

func (b *base) generate(ctx context.Context, req Request, prompt string) (backend.Generation, error) {
	ctx, finish := b.span(ctx, "generate", req)
	g, err := b.gen.Generate(ctx, backend.GenerateRequest{Prompt: prompt, SectionID: req.SectionID})
	if err == nil && g.Content().IsNone() {
		err = fmt.Errorf("generate %q: %w", req.SubtopicTitle, nberrors.ErrEmptyGeneration)
	}
	finish(err)
	return g, err
}

// media is what a pipeline attaches to the section besides its text.
type media struct {
	image   string
	youtube string
}

func (m media) empty() bool { return m.image == "" && m.youtube == "" }

func (m media) patch() *domain.MetadataPatch {
	p := &domain.MetadataPatch{}
	if m.image != "" {
		img := m.image
		p.Image = &img
	}
	if m.youtube != "" {
		yt := m.youtube
		p.YouTube = &yt
	}
	return p
}

// persist picks the save path from the direct-save indicator:
// saved with media sends metadata only, not saved sends the full section,
// saved without media sends nothing.
func (b *base) persist(ctx context.Context, req Request, g backend.Generation, m media, res *Result) error {
	if req.legacy() {
		observability.Current().IncGenerationSave("local")
		return nil
	}
	if b.writer == nil {
		return fmt.Errorf("section writer required: %w", nberrors.ErrInvalidArgument)
	}
	ctx, finish := b.span(ctx, "save", req)

	var err error
	switch {
	case g.SavedToSection && !m.empty():
		res.SavedDirectly = true
		err = b.writer.SaveSectionContent(ctx, req.SectionID, domain.SectionPatch{Metadata: m.patch()})
		observability.Current().IncGenerationSave("metadata")
	case g.SavedToSection:
		res.SavedDirectly = true
		observability.Current().IncGenerationSave("direct")
	default:
		b.log.Info("direct save did not happen, sending full section",
			"section_id", req.SectionID, "reason", nberrors.ErrDirectSaveFailed.Error())
		c := g.Content()
		text := c.Text
		meta := m.patch()
		done := false
		meta.Done = &done
		err = b.writer.SaveSectionContent(ctx, req.SectionID, domain.SectionPatch{
			Content:     &text,
			ContentType: string(c.Kind),
			Metadata:    meta,
		})
		if err == nil {
			res.FallbackSaved = true
		}
		observability.Current().IncGenerationSave("fallback")
	}
	finish(err)
	if err != nil {
		return fmt.Errorf("save section %s: %w", req.SectionID, err)
	}
	return nil
}

func (b *base) reloadHierarchy(ctx context.Context, req Request, res *Result) error {
	if req.legacy() || b.reload == nil {
		return nil
	}
	ctx, finish := b.span(ctx, "reload", req)
	h, err := b.reload.Load(ctx, req.CourseID, req.MainTopic)
	finish(err)
	if err != nil {
		return err
	}
	res.Hierarchy = h
	return nil
}

// finishRun records the run outcome.
func (b *base) finishRun(req Request, start time.Time, res Result, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res.Degraded:
		outcome = "degraded"
	}
	observability.Current().ObserveGeneration(string(b.kind), outcome, time.Since(start))
	if err != nil {
		b.log.Warn("generation failed",
			"course_id", req.CourseID, "section_id", req.SectionID, "subtopic", req.SubtopicTitle, "error", err)
		return
	}
	b.log.Info("generation finished",
		"course_id", req.CourseID,
		"section_id", req.SectionID,
		"subtopic", req.SubtopicTitle,
		"saved_directly", res.SavedDirectly,
		"fallback_saved", res.FallbackSaved,
		"degraded", res.Degraded,
		"duration", time.Since(start).String(),
	)
}
