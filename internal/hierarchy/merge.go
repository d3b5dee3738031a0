package hierarchy

import "github.com/yungbote/neurobridge-player/internal/domain"

// Merge applies a fetched hierarchy over the current snapshot by section id.
// Structure and titles come from fetched. Content and media known locally are
// kept when fetched has none, since content is never cleared once generated.
// localDone holds done flags written locally after the fetch started; they
// override the fetched value.
func Merge(current, fetched *domain.Hierarchy, localDone map[string]bool) *domain.Hierarchy {
	if fetched == nil {
		return current.Clone()
	}
	out := fetched.Clone()
	for id, sec := range out.Sections {
		if cur, ok := current.Section(id); ok {
			if !sec.HasContent() && cur.HasContent() {
				sec.Content = cur.Content
			}
			if sec.Metadata.Image == "" {
				sec.Metadata.Image = cur.Metadata.Image
			}
			if sec.Metadata.YouTube == "" {
				sec.Metadata.YouTube = cur.Metadata.YouTube
			}
		}
		if done, ok := localDone[id]; ok {
			sec.Metadata.Done = done
		}
	}
	return out
}
