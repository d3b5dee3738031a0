package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/observability"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// Extraction is the outcome of the video and transcript steps. A degraded
// extraction is a normal branch: the summary step switches to the generic
// explanation prompt.
type Extraction struct {
	VideoID    string
	Transcript string
	Degraded   bool
	Reason     string
}

const (
	ReasonVideoSearchFailed = "video_search_failed"
	ReasonNoVideo           = "no_video"
	ReasonTranscriptFailed  = "transcript_failed"
	ReasonEmptyTranscript   = "empty_transcript"
)

type VideoPipeline struct {
	*base
	videos      VideoSearcher
	transcripts TranscriptFetcher
}

func NewVideoPipeline(log *logger.Logger, d Deps, videos VideoSearcher, transcripts TranscriptFetcher) (*VideoPipeline, error) {
	b, err := newBase(log, domain.CourseKindVideoText, "VideoPipeline", d)
	if err != nil {
		return nil, err
	}
	if videos == nil || transcripts == nil {
		return nil, fmt.Errorf("VideoPipeline: video and transcript collaborators required: %w", nberrors.ErrInvalidArgument)
	}
	return &VideoPipeline{base: b, videos: videos, transcripts: transcripts}, nil
}

// Extract finds a video and its transcript. It never returns an error; any
// failure yields a degraded Extraction.
func (p *VideoPipeline) Extract(ctx context.Context, req Request) Extraction {
	query, err := render(p.prompts.videoQuery, dataFor(req))
	if err != nil {
		return p.degrade(req, Extraction{}, ReasonVideoSearchFailed, err)
	}
	sctx, finish := p.span(ctx, "video_search", req)
	videoID, err := p.videos.SearchVideo(sctx, query)
	finish(err)
	if err != nil {
		return p.degrade(req, Extraction{}, ReasonVideoSearchFailed, err)
	}
	if videoID == "" {
		return p.degrade(req, Extraction{}, ReasonNoVideo, nil)
	}

	ex := Extraction{VideoID: videoID}
	tctx, finish := p.span(ctx, "transcript", req)
	segments, err := p.transcripts.FetchTranscript(tctx, videoID)
	finish(err)
	if err != nil {
		return p.degrade(req, ex, ReasonTranscriptFailed, err)
	}
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return p.degrade(req, ex, ReasonEmptyTranscript, nil)
	}
	ex.Transcript = strings.Join(parts, " ")
	return ex
}

func (p *VideoPipeline) degrade(req Request, ex Extraction, reason string, cause error) Extraction {
	ex.Degraded = true
	ex.Reason = reason
	kv := []interface{}{"subtopic", req.SubtopicTitle, "reason", reason}
	if cause != nil {
		kv = append(kv, "error", fmt.Errorf("%w: %w", nberrors.ErrExtractionDegraded, cause).Error())
	}
	p.log.Info("transcript unavailable, using explanation prompt", kv...)
	observability.Current().IncGenerationDegraded(reason)
	return ex
}

// Run executes video search, transcript, summary, save and reload in order.
func (p *VideoPipeline) Run(ctx context.Context, req Request, observe Observer) (res Result, err error) {
	start := time.Now()
	defer func() { p.finishRun(req, start, res, err) }()

	ex := p.Extract(ctx, req)
	data := dataFor(req)
	var prompt string
	if ex.Degraded {
		prompt, err = render(p.prompts.explain, data)
	} else {
		data.Transcript = ex.Transcript
		prompt, err = render(p.prompts.summarize, data)
	}
	if err != nil {
		return Result{}, err
	}

	g, err := p.generate(ctx, req, prompt)
	if err != nil {
		return Result{}, err
	}

	res = Result{Content: g.Content(), YouTube: ex.VideoID, Degraded: ex.Degraded}
	if observe != nil {
		observe(res)
	}

	if err := p.persist(ctx, req, g, media{youtube: ex.VideoID}, &res); err != nil {
		return res, err
	}
	if err := p.reloadHierarchy(ctx, req, &res); err != nil {
		return res, err
	}
	return res, nil
}
