// Package resolver is the Streaming Resolver (spec.md §4.13): given an item
// and an optional explicit media source, it decides which MediaFile a
// player should be handed and whether that file can be served directly or
// needs the HLS pipeline.
package resolver

import (
	"context"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
	"mediavault/internal/metrics"
)

// Resolver implements ports.Resolver.
type Resolver struct {
	files ports.MediaFileRepository
}

var _ ports.Resolver = (*Resolver)(nil)

func New(files ports.MediaFileRepository) *Resolver {
	return &Resolver{files: files}
}

// Resolve picks a MediaFile and route for itemID:
//
//  1. If mediaSourceID is given, that exact file is used verbatim.
//  2. Otherwise, prefer a file with ServesAsUniversal == true (a Profile-B
//     master or a completed conversion output — both set the flag).
//  3. Otherwise, prefer any MediaFile whose SourceMediaFileID points back
//     into this item's files, i.e. a completed conversion that for some
//     reason didn't carry ServesAsUniversal (defensive; §4.10 always sets
//     it, but the resolver shouldn't assume every caller does).
//  4. Otherwise, fall back to the item's first source file, routed direct
//     (it is not HLS-servable without a conversion or live mux).
func (r *Resolver) Resolve(ctx context.Context, itemID, mediaSourceID string) (domain.PlaybackSource, error) {
	if mediaSourceID != "" {
		mf, err := r.files.Get(ctx, mediaSourceID)
		if err != nil {
			return domain.PlaybackSource{}, err
		}
		return r.emit(routeFor(mf), mf.ID), nil
	}

	files, err := r.files.ListByItem(ctx, itemID)
	if err != nil {
		return domain.PlaybackSource{}, err
	}
	if len(files) == 0 {
		return domain.PlaybackSource{}, domain.NotFound(nil)
	}

	if mf, ok := firstUniversal(files); ok {
		return r.emit(domain.RouteHLS, mf.ID), nil
	}
	if mf, ok := firstConversionOutput(files); ok {
		return r.emit(domain.RouteHLS, mf.ID), nil
	}

	source := firstSource(files)
	return r.emit(routeFor(source), source.ID), nil
}

func (r *Resolver) emit(route domain.Route, mediaFileID string) domain.PlaybackSource {
	metrics.RouteResolutionsTotal.WithLabelValues(string(route)).Inc()
	return domain.PlaybackSource{Route: route, MediaFileID: mediaFileID}
}

// routeFor classifies a single explicitly-requested file: anything that
// already serves HLS directly gets HLS, everything else is direct-only.
func routeFor(mf domain.MediaFile) domain.Route {
	if mf.ServesAsUniversal {
		return domain.RouteHLS
	}
	return domain.RouteDirect
}

func firstUniversal(files []domain.MediaFile) (domain.MediaFile, bool) {
	for _, mf := range files {
		if mf.ServesAsUniversal {
			return mf, true
		}
	}
	return domain.MediaFile{}, false
}

// firstConversionOutput finds a Profile-B file produced by a conversion
// (SourceMediaFileID set) among this item's files.
func firstConversionOutput(files []domain.MediaFile) (domain.MediaFile, bool) {
	for _, mf := range files {
		if mf.Profile == domain.ProfileB && mf.SourceMediaFileID != "" {
			return mf, true
		}
	}
	return domain.MediaFile{}, false
}

// firstSource returns the first file that is not itself a conversion
// output, or files[0] if every file happens to be one.
func firstSource(files []domain.MediaFile) domain.MediaFile {
	for _, mf := range files {
		if mf.SourceMediaFileID == "" {
			return mf
		}
	}
	return files[0]
}
