package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
)

type GenerateRequest struct {
	Prompt string
	// SectionID asks the backend to persist the output on that section.
	SectionID string
}

type Generation struct {
	Text           string
	ContentType    string
	SavedToSection bool
}

// Content returns the generated text as a validated Content value.
func (g Generation) Content() domain.Content {
	return domain.NewContent(g.Text, g.ContentType)
}

type generateBody struct {
	Prompt      string  `json:"prompt"`
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`
	SectionID   string  `json:"sectionId,omitempty"`
}

type generateResponse struct {
	Text        string `json:"text"`
	ContentType string `json:"contentType"`
	Metadata    *struct {
		SavedToSection bool `json:"savedToSection"`
	} `json:"metadata"`
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	body := generateBody{
		Prompt:      req.Prompt,
		Provider:    c.provider,
		Model:       c.model,
		Temperature: c.temperature,
		SectionID:   strings.TrimSpace(req.SectionID),
	}
	var out generateResponse
	if err := c.do(ctx, c.genClient, http.MethodPost, "/generate", "generate", body, &out, false); err != nil {
		return Generation{}, err
	}
	g := Generation{Text: out.Text, ContentType: out.ContentType}
	if out.Metadata != nil {
		g.SavedToSection = out.Metadata.SavedToSection
	}
	return g, nil
}

type promptBody struct {
	Prompt string `json:"prompt"`
}

// GenerateImage returns the URL of an illustration for prompt. An empty URL
// with a nil error means the collaborator produced nothing.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, c.genClient, http.MethodPost, "/image", "image", promptBody{Prompt: prompt}, &out, false); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.URL), nil
}

// SearchVideo returns a video id for query.
func (c *Client) SearchVideo(ctx context.Context, query string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, c.genClient, http.MethodPost, "/yt", "video_search", promptBody{Prompt: query}, &out, false); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.URL), nil
}

type TranscriptSegment struct {
	Text     string  `json:"text"`
	Offset   float64 `json:"offset,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func (c *Client) FetchTranscript(ctx context.Context, videoID string) ([]TranscriptSegment, error) {
	var out struct {
		URL []TranscriptSegment `json:"url"`
	}
	if err := c.do(ctx, c.genClient, http.MethodPost, "/transcript", "transcript", promptBody{Prompt: videoID}, &out, false); err != nil {
		return nil, err
	}
	return out.URL, nil
}

type ExamRequest struct {
	CourseID        string `json:"courseId"`
	MainTopic       string `json:"mainTopic"`
	SubtopicsString string `json:"subtopicsString"`
	Lang            string `json:"lang"`
}

// GenerateExam returns the raw question payload. The backend sends it either
// as a JSON string or as an embedded value.
func (c *Client) GenerateExam(ctx context.Context, req ExamRequest) (json.RawMessage, error) {
	var out struct {
		Success bool            `json:"success"`
		Message json.RawMessage `json:"message"`
	}
	if err := c.do(ctx, c.genClient, http.MethodPost, "/aiexam", "exam", req, &out, false); err != nil {
		return nil, err
	}
	if !out.Success || len(bytes.TrimSpace(out.Message)) == 0 {
		return nil, fmt.Errorf("exam for course %s not generated: %w", req.CourseID, nberrors.ErrNetwork)
	}
	return out.Message, nil
}

// Finish records course completion on the backend.
func (c *Client) Finish(ctx context.Context, courseID string) error {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	body := map[string]string{"courseId": courseID}
	if err := c.do(ctx, c.httpClient, http.MethodPost, "/finish", "finish", body, &out, false); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("finish course %s: %s: %w", courseID, out.Message, nberrors.ErrNetwork)
	}
	return nil
}
