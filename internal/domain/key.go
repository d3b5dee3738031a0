package domain

// GenerationKey identifies one unit of lazy generation work.
type GenerationKey string

const generationKeySep = "::"

func KeyForTitles(topicTitle, subtopicTitle string) GenerationKey {
	return GenerationKey(topicTitle + generationKeySep + subtopicTitle)
}

// KeyForSection is used when the hierarchy is authoritative and ids are stable.
func KeyForSection(sectionID string) GenerationKey {
	return GenerationKey(sectionID)
}

// KeyFor picks the section id when h is authoritative, titles otherwise.
func KeyFor(h *Hierarchy, sectionID, topicTitle, subtopicTitle string) GenerationKey {
	if h.Authoritative() && sectionID != "" {
		return KeyForSection(sectionID)
	}
	return KeyForTitles(topicTitle, subtopicTitle)
}
