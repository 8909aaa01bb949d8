package services

import (
	"os"

	"vox-agent-backend/models"
)

// ResponsePolicy decides whether a query is answered text-only or with
// images attached, based on the retrieved context.
type ResponsePolicy struct {
	maxImages int
}

func NewResponsePolicy(maxImages int) *ResponsePolicy {
	if maxImages <= 0 {
		maxImages = 2
	}
	return &ResponsePolicy{maxImages: maxImages}
}

// SelectImages scans context items in ranked order and collects source
// paths of image-typed items that exist on disk, deduplicated, up to the
// configured maximum. Best-ranked images win when the cap is hit. An empty
// result means text-only generation.
func (p *ResponsePolicy) SelectImages(context []models.ContextItem) []string {
	var paths []string
	seen := make(map[string]bool)

	for _, item := range context {
		if item.Metadata.Type != models.DocTypeImage {
			continue
		}
		source := item.Metadata.Source
		if source == "" || seen[source] {
			continue
		}
		if _, err := os.Stat(source); err != nil {
			continue
		}
		paths = append(paths, source)
		seen[source] = true
		if len(paths) >= p.maxImages {
			break
		}
	}
	return paths
}
