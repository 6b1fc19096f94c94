package ports

import (
	"context"

	"mediavault/internal/domain"
)

// Classifier applies the §4.6 decision table to probe output.
type Classifier interface {
	Classify(info domain.MediaInfo) domain.Profile
	CanBeProfileA(info domain.MediaInfo) bool
	CanBeProfileB(info domain.MediaInfo) bool
}

// Qualifier runs the stricter §4.7 checks plus a live preparation probe
// before a MediaFile is allowed to keep an optimistic Profile B.
type Qualifier interface {
	// Qualify returns domain.ProfileB if mf genuinely qualifies, or
	// domain.ProfileC (with a reason) if it was demoted.
	Qualify(ctx context.Context, mf domain.MediaFile, info domain.MediaInfo) (domain.Profile, string)
}

// Prober invokes an external media prober (ffprobe) against a file.
type Prober interface {
	Probe(ctx context.Context, path string) (domain.MediaInfo, error)
}
