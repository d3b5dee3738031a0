package domain

import "strings"

// ContentKind tags the Content union. The zero value is "no content yet".
type ContentKind string

const (
	ContentNone     ContentKind = ""
	ContentMarkdown ContentKind = "markdown"
	ContentHTML     ContentKind = "html"
	ContentRich     ContentKind = "rich"
)

// Content is what a section displays once generated.
type Content struct {
	Kind ContentKind `json:"kind,omitempty"`
	Text string      `json:"text,omitempty"`
}

func (c Content) IsNone() bool {
	return c.Kind == ContentNone || strings.TrimSpace(c.Text) == ""
}

// ParseContentKind validates a server-supplied content type. Unknown values
// normalise to markdown with ok=false so the caller can log them.
func ParseContentKind(raw string) (ContentKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "markdown", "md", "text/markdown", "text", "text/plain":
		return ContentMarkdown, true
	case "html", "text/html":
		return ContentHTML, true
	case "rich", "richstate", "blocknote", "json", "application/json", "editor":
		return ContentRich, true
	case "":
		return ContentMarkdown, true
	default:
		return ContentMarkdown, false
	}
}

// NewContent builds a Content from a raw body and declared type. An empty body
// is always ContentNone regardless of the declared type.
func NewContent(text, contentType string) Content {
	if strings.TrimSpace(text) == "" {
		return Content{}
	}
	kind, _ := ParseContentKind(contentType)
	return Content{Kind: kind, Text: text}
}
