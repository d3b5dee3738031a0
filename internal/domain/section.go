package domain

type SectionMetadata struct {
	Image   string `json:"image,omitempty"`
	YouTube string `json:"youtube,omitempty"`
	Done    bool   `json:"done"`
}

// Section is one node of the course hierarchy. Topics carry subtopic children;
// subtopics are leaves.
type Section struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Children []string        `json:"children,omitempty"`
	Content  Content         `json:"content"`
	Metadata SectionMetadata `json:"metadata"`
}

func (s *Section) Clone() *Section {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Children != nil {
		cp.Children = append([]string(nil), s.Children...)
	}
	return &cp
}

// HasContent reports whether a generation has completed for the section.
func (s *Section) HasContent() bool {
	return s != nil && !s.Content.IsNone()
}

// SectionPatch is a partial write against one section. Nil fields are left
// untouched by the backend.
type SectionPatch struct {
	Content     *string        `json:"content,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Metadata    *MetadataPatch `json:"metadata,omitempty"`
}

type MetadataPatch struct {
	Image   *string `json:"image,omitempty"`
	YouTube *string `json:"youtube,omitempty"`
	Done    *bool   `json:"done,omitempty"`
}

// IsMetadataOnly reports whether the patch carries no content body.
func (p SectionPatch) IsMetadataOnly() bool {
	return p.Content == nil && p.ContentType == "" && p.Metadata != nil
}
