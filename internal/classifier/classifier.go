// Package classifier implements the Profile Classifier and Profile-B
// Qualifier (spec.md §4.6-§4.7): the decision table that sorts a probed
// MediaFile into Profile A/B/C, and the stricter re-check plus live
// preparation probe that guards the Profile B → "serves HLS directly"
// invariant.
package classifier

import (
	"context"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
	"mediavault/internal/fmp4"
	"mediavault/internal/metrics"
	"mediavault/internal/mp4"
	"mediavault/internal/segmap"
)

const (
	hevcMinWidth  = 3600
	hevcMinHeight = 2000
)

// Classifier is the stateless §4.6 decision table.
type Classifier struct{}

var _ ports.Classifier = Classifier{}

func New() Classifier { return Classifier{} }

// Classify applies the first-match-wins decision table.
func (Classifier) Classify(info domain.MediaInfo) domain.Profile {
	video := firstVideo(info)

	profile := domain.ProfileC
	switch {
	case info.HasHDRVideo() || isLargeHEVC(video):
		profile = domain.ProfileA
	case isUniversalCandidate(info, video):
		profile = domain.ProfileB
	}
	metrics.ClassificationsTotal.WithLabelValues(string(profile)).Inc()
	return profile
}

// CanBeProfileA reports whether the file already carries HDR/DV metadata.
func (Classifier) CanBeProfileA(info domain.MediaInfo) bool {
	return info.HasHDRVideo()
}

// CanBeProfileB reports whether the file has at least one video and one
// audio track — the minimal shape the qualifier might still approve.
func (Classifier) CanBeProfileB(info domain.MediaInfo) bool {
	return len(info.VideoTracks()) >= 1 && len(info.AudioTracks()) >= 1
}

func isLargeHEVC(video *domain.MediaTrack) bool {
	if video == nil || video.Codec != "hevc" {
		return false
	}
	return video.Width >= hevcMinWidth || video.Height >= hevcMinHeight
}

func isUniversalCandidate(info domain.MediaInfo, video *domain.MediaTrack) bool {
	if !info.ContainerIsMP4Family() {
		return false
	}
	videos := info.VideoTracks()
	if len(videos) != 1 || video == nil {
		return false
	}
	if video.Codec != "h264" && video.Codec != "avc1" {
		return false
	}
	if video.Width > 1920 || video.Height > 1080 {
		return false
	}
	if video.IsHDR() || video.DolbyVisionProfile != 0 {
		return false
	}
	return hasAACAudio(info)
}

func hasAACAudio(info domain.MediaInfo) bool {
	for _, a := range info.AudioTracks() {
		if a.Codec == "aac" {
			return true
		}
	}
	return false
}

func firstVideo(info domain.MediaInfo) *domain.MediaTrack {
	videos := info.VideoTracks()
	if len(videos) == 0 {
		return nil
	}
	return &videos[0]
}

// Qualifier runs the stricter §4.7 checks and, if those pass, a live
// preparation probe (parse moov, build the segment map, build the first
// segment's moof) before letting a file keep Profile B.
type Qualifier struct {
	opener prepcacheOpener
}

// prepcacheOpener mirrors internal/prepcache.FileOpener without importing
// it, so the qualifier can run the probe without depending on the cache's
// coalescing machinery — it always does a fresh, uncached parse.
type prepcacheOpener interface {
	Open(path string) (ReaderAtCloser, int64, error)
}

// ReaderAtCloser is the minimal surface internal/mp4.Parse needs plus Close.
type ReaderAtCloser interface {
	ReadAt(p []byte, off int64) (int, error)
	Close() error
}

var _ ports.Qualifier = (*Qualifier)(nil)

func NewQualifier(opener prepcacheOpener) *Qualifier {
	return &Qualifier{opener: opener}
}

// Qualify demotes mf to Profile C if any strict disqualifier applies, or if
// the live preparation probe fails. It never promotes — callers only invoke
// it on files the classifier already marked Profile B.
func (q *Qualifier) Qualify(ctx context.Context, mf domain.MediaFile, info domain.MediaInfo) (domain.Profile, string) {
	if reason := disqualify(info); reason != "" {
		metrics.QualifierDemotionsTotal.Inc()
		return domain.ProfileC, reason
	}

	if err := q.probeBuild(ctx, mf.Path); err != nil {
		metrics.QualifierProbeFailuresTotal.Inc()
		return domain.ProfileC, "live preparation probe failed: " + err.Error()
	}

	return domain.ProfileB, ""
}

func disqualify(info domain.MediaInfo) string {
	if !info.ContainerIsMP4Family() {
		return "container is not MP4-family"
	}
	videos, audios := info.VideoTracks(), info.AudioTracks()
	if len(videos) != 1 {
		return "not exactly one video track"
	}
	if len(audios) != 1 {
		return "not exactly one audio track"
	}
	v, a := videos[0], audios[0]
	if v.Codec != "h264" && v.Codec != "avc1" {
		return "video codec is not H.264"
	}
	if v.Width > 1920 || v.Height > 1080 {
		return "resolution exceeds 1920x1080"
	}
	if v.BitDepth > 8 {
		return "video bit depth exceeds 8"
	}
	if v.IsHDR() || v.DolbyVisionProfile != 0 {
		return "HDR or Dolby Vision metadata present"
	}
	if a.Codec != "aac" {
		return "audio codec is not AAC"
	}
	if a.Channels != 2 {
		return "audio channel count is not 2"
	}
	return ""
}

// probeBuild runs spec.md §4.5 step 4 without touching the preparation
// cache: a successful parse+segment-map+first-moof build is proof the file
// will serve HLS correctly, without publishing anything.
func (q *Qualifier) probeBuild(ctx context.Context, path string) error {
	r, size, err := q.opener.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	meta, err := mp4.Parse(r, size)
	if err != nil {
		return err
	}
	sm, err := segmap.Build(meta, segmap.DefaultTargetDuration)
	if err != nil {
		return err
	}
	if len(sm.Segments) == 0 || len(sm.Spans) == 0 {
		return domain.Invalid(errNoSegments{})
	}

	if _, err := fmp4.BuildInitSegment(meta); err != nil {
		return err
	}
	video := meta.VideoTrack()
	span := sm.Spans[0]
	if _, _, err := fmp4.BuildMoof(1, video.TrackID, uint64(span.StartDTS), video.Samples[span.StartSample:span.EndSample]); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

type errNoSegments struct{}

func (errNoSegments) Error() string { return "classifier: segment map has no segments" }
