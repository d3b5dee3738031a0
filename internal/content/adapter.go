// Package content turns stored lesson content into something the player can
// render, whatever format the generator or the editor saved it in.
package content

import (
	"bytes"
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// Rendered is display-ready lesson content.
type Rendered struct {
	Format   domain.ContentKind `json:"format"`
	HTML     string             `json:"html"`
	Text     string             `json:"text"`
	Fallback bool               `json:"fallback,omitempty"`
}

type Adapter struct {
	log    *logger.Logger
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewAdapter(log *logger.Logger) *Adapter {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span")
	policy.AllowAttrs("checked", "disabled", "type").OnElements("input")
	return &Adapter{log: log.With("component", "ContentAdapter"), md: md, policy: policy}
}

// Adapt never fails: content that cannot be decoded is shown as plain text.
func (a *Adapter) Adapt(c domain.Content) Rendered {
	if c.IsNone() {
		return Rendered{Format: domain.ContentNone}
	}
	kind := c.Kind
	text := c.Text
	if kind == domain.ContentMarkdown && looksLikeRichState(text) {
		kind = domain.ContentRich
	}

	switch kind {
	case domain.ContentHTML:
		return Rendered{Format: domain.ContentHTML, HTML: a.policy.Sanitize(text), Text: text}
	case domain.ContentRich:
		out, err := RenderRichState(text)
		if err != nil {
			a.log.Warn("rich content unreadable, rendering as plain text", "error", err)
			return a.plain(domain.ContentRich, text)
		}
		return Rendered{Format: domain.ContentRich, HTML: a.policy.Sanitize(out), Text: text}
	default:
		body := StripCodeFence(text)
		var buf bytes.Buffer
		if err := a.md.Convert([]byte(body), &buf); err != nil {
			a.log.Warn("markdown render failed, rendering as plain text", "error", err)
			return a.plain(domain.ContentMarkdown, text)
		}
		return Rendered{Format: domain.ContentMarkdown, HTML: a.policy.Sanitize(buf.String()), Text: body}
	}
}

func (a *Adapter) plain(format domain.ContentKind, text string) Rendered {
	var b strings.Builder
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return Rendered{Format: format, HTML: b.String(), Text: text, Fallback: true}
}

// StripCodeFence removes a single fence the generator sometimes wraps around a
// whole markdown answer ("```markdown ... ```"). Inner code blocks are kept.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lang := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(lines[0], "```")))
	if lang != "" && lang != "markdown" && lang != "md" {
		return s
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "```" {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	return strings.TrimSpace(strings.Join(lines[1:], "\n"))
}

// IsParseError reports whether err came from decoding stored content.
func IsParseError(err error) bool { return errors.Is(err, nberrors.ErrParse) }
