package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yungbote/neurobridge-player/internal/domain"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
)

type hierarchyResponse struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Hierarchy []wireSection `json:"hierarchy"`
}

type wireSection struct {
	ID          string            `json:"id"`
	MongoID     string            `json:"_id"`
	ParentID    string            `json:"parentId"`
	Title       string            `json:"title"`
	Children    []json.RawMessage `json:"children"`
	Content     json.RawMessage   `json:"content"`
	ContentType string            `json:"contentType"`
	Metadata    struct {
		Image   string `json:"image"`
		YouTube string `json:"youtube"`
		Done    bool   `json:"done"`
	} `json:"metadata"`
}

func (w wireSection) id() string {
	if id := strings.TrimSpace(w.ID); id != "" {
		return id
	}
	return strings.TrimSpace(w.MongoID)
}

// FetchHierarchy loads the section tree of a course with content included.
func (c *Client) FetchHierarchy(ctx context.Context, courseID string) (*domain.Hierarchy, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, fmt.Errorf("fetch hierarchy: course id required: %w", nberrors.ErrInvalidArgument)
	}
	q := url.Values{}
	q.Set("courseId", courseID)
	q.Set("includeContent", "true")

	var out hierarchyResponse
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/hierarchy?"+q.Encode(), "hierarchy", nil, &out, true); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("hierarchy for course %s: %s: %w", courseID, out.Message, nberrors.ErrNotFound)
	}
	return c.buildHierarchy(courseID, out.Hierarchy), nil
}

// buildHierarchy flattens the wire tree. Children arrive either as ids of
// other listed sections or as embedded section objects. Roots are the listed
// sections nobody references as a child.
func (c *Client) buildHierarchy(courseID string, listed []wireSection) *domain.Hierarchy {
	h := domain.NewHierarchy(courseID, domain.SourceHierarchy)
	referenced := map[string]bool{}

	var add func(w wireSection) string
	add = func(w wireSection) string {
		id := w.id()
		if id == "" {
			return ""
		}
		sec := &domain.Section{
			ID:      id,
			Title:   w.Title,
			Content: c.decodeContent(id, w.Content, w.ContentType),
			Metadata: domain.SectionMetadata{
				Image:   w.Metadata.Image,
				YouTube: w.Metadata.YouTube,
				Done:    w.Metadata.Done,
			},
		}
		for _, raw := range w.Children {
			childID := ""
			raw = bytes.TrimSpace(raw)
			if len(raw) > 0 && raw[0] == '{' {
				var child wireSection
				if err := json.Unmarshal(raw, &child); err != nil {
					c.log.Warn("skipping undecodable child section", "section_id", id, "error", err)
					continue
				}
				childID = add(child)
			} else {
				_ = json.Unmarshal(raw, &childID)
				childID = strings.TrimSpace(childID)
			}
			if childID == "" {
				continue
			}
			referenced[childID] = true
			sec.Children = append(sec.Children, childID)
		}
		h.Sections[id] = sec
		return id
	}

	var order []string
	for _, w := range listed {
		if id := add(w); id != "" {
			if strings.TrimSpace(w.ParentID) != "" {
				referenced[id] = true
			}
			order = append(order, id)
		}
	}
	for _, id := range order {
		if !referenced[id] {
			h.Roots = append(h.Roots, id)
		}
	}
	return h
}

// decodeContent validates the server's content/type pair into the Content
// union. Editor state stored as a JSON value is kept as its serialized form.
func (c *Client) decodeContent(sectionID string, raw json.RawMessage, contentType string) domain.Content {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return domain.Content{}
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return domain.Content{}
		}
	} else {
		text = string(raw)
		if strings.TrimSpace(contentType) == "" {
			contentType = string(domain.ContentRich)
		}
	}
	if _, ok := domain.ParseContentKind(contentType); !ok {
		c.log.Warn("unknown content type, treating as markdown", "section_id", sectionID, "content_type", contentType)
	}
	return domain.NewContent(text, contentType)
}

type saveResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// SaveSectionContent writes a partial section update. It serves both the
// metadata-only and the full fallback save.
func (c *Client) SaveSectionContent(ctx context.Context, sectionID string, patch domain.SectionPatch) error {
	sectionID = strings.TrimSpace(sectionID)
	if sectionID == "" {
		return fmt.Errorf("save section: id required: %w", nberrors.ErrInvalidArgument)
	}
	var out saveResponse
	path := "/sections/" + url.PathEscape(sectionID) + "/content"
	if err := c.do(ctx, c.httpClient, http.MethodPost, path, "section_content", patch, &out, true); err != nil {
		return err
	}
	if out.Success != nil && !*out.Success {
		return fmt.Errorf("save section %s: %s: %w", sectionID, out.Message, nberrors.ErrNetwork)
	}
	return nil
}
