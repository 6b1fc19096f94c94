package ports

import (
	"context"

	"mediavault/internal/domain"
)

// PreparationCache is the §4.5 contract: get_or_build with at-most-one
// in-flight builder per MediaFile id.
type PreparationCache interface {
	GetOrBuild(ctx context.Context, mediaFileID string) (*domain.PreparedMedia, error)
	// Evict drops an entry from the in-memory tier only; the persisted blob
	// (if any) is untouched.
	Evict(mediaFileID string)
	Len() int
}
