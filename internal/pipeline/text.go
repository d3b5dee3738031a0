package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

type TextPipeline struct {
	*base
	images ImageGenerator
}

func NewTextPipeline(log *logger.Logger, d Deps, images ImageGenerator) (*TextPipeline, error) {
	b, err := newBase(log, domain.CourseKindTextImage, "TextPipeline", d)
	if err != nil {
		return nil, err
	}
	if images == nil {
		return nil, fmt.Errorf("TextPipeline: image generator required: %w", nberrors.ErrInvalidArgument)
	}
	return &TextPipeline{base: b, images: images}, nil
}

// Run executes image, text, save and reload in order. An image call that
// fails aborts the run; one that returns no URL does not.
func (p *TextPipeline) Run(ctx context.Context, req Request, observe Observer) (res Result, err error) {
	start := time.Now()
	defer func() { p.finishRun(req, start, res, err) }()
	data := dataFor(req)

	imagePrompt, err := render(p.prompts.image, data)
	if err != nil {
		return Result{}, err
	}
	ictx, finish := p.span(ctx, "image", req)
	image, err := p.images.GenerateImage(ictx, imagePrompt)
	finish(err)
	if err != nil {
		return Result{}, fmt.Errorf("image for %q: %w", req.SubtopicTitle, err)
	}
	if image == "" {
		p.log.Warn("image collaborator returned no url", "subtopic", req.SubtopicTitle)
	}

	prompt, err := render(p.prompts.explain, data)
	if err != nil {
		return Result{}, err
	}
	g, err := p.generate(ctx, req, prompt)
	if err != nil {
		return Result{}, err
	}

	res = Result{Content: g.Content(), Image: image}
	if observe != nil {
		observe(res)
	}

	if err := p.persist(ctx, req, g, media{image: image}, &res); err != nil {
		return res, err
	}
	if err := p.reloadHierarchy(ctx, req, &res); err != nil {
		return res, err
	}
	return res, nil
}
