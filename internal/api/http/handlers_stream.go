package apihttp

import (
	"fmt"
	"net/http"

	"mediavault/internal/domain"
	"mediavault/internal/hls"
	"mediavault/internal/segmap"
)

// handleMasterPlaylist serves GET /api/stream/<mf-uuid>/master.m3u8. Only
// one rendition exists per spec.md's scope, but hls.RenderMaster already
// accepts a slice so a future ladder is additive.
func (s *Server) handleMasterPlaylist(w http.ResponseWriter, r *http.Request, mediaFileID string) {
	if s.files == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "media file repository not configured")
		return
	}
	mf, err := s.files.Get(r.Context(), mediaFileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pm, err := s.cache.GetOrBuild(r.Context(), mediaFileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	variant := hls.VariantInfo{
		BandwidthBps: hls.EstimateBandwidthBps(preparedSizeBytes(pm), pm.TotalDurationSecs()),
		Width:        mf.Width,
		Height:       mf.Height,
		CodecString:  codecString(mf),
		PlaylistPath: "playlist.m3u8",
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = w.Write([]byte(hls.RenderMaster([]hls.VariantInfo{variant})))
}

// handleMediaPlaylist serves GET /api/stream/<mf-uuid>/playlist.m3u8.
func (s *Server) handleMediaPlaylist(w http.ResponseWriter, r *http.Request, mediaFileID string) {
	pm, err := s.cache.GetOrBuild(r.Context(), mediaFileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sm := &segmap.SegmentMap{Segments: pm.Segments}
	playlist := hls.RenderMedia(sm, "init.mp4", func(index int) string {
		return fmt.Sprintf("segment_%d.m4s", index)
	})

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = w.Write([]byte(playlist))
}

// handleInitSegment serves GET /api/stream/<mf-uuid>/init.mp4. This is the
// one fMP4 byte stream this package serves directly rather than leaving to
// internal/sendfile: it is small (a single moov/ftyp box, not per-segment
// data) and always fully resident in the cached PreparedMedia.
func (s *Server) handleInitSegment(w http.ResponseWriter, r *http.Request, mediaFileID string) {
	pm, err := s.cache.GetOrBuild(r.Context(), mediaFileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(pm.InitSegmentBytes)))
	_, _ = w.Write(pm.InitSegmentBytes)
}

func preparedSizeBytes(pm *domain.PreparedMedia) int64 {
	total := int64(len(pm.InitSegmentBytes))
	for _, seg := range pm.Segments {
		total += int64(seg.DataLength)
	}
	return total
}

// codecString derives an RFC 6381 codec string from a MediaFile's
// probe-recorded codec names, the vocabulary internal/classifier works
// against ("h264", "hevc", "aac", ...) rather than the raw fourccs
// internal/hls.CodecString reads out of a parsed moov — this layer never
// re-parses the source to get a TrackMetadata, so it works from what was
// already recorded at scan time.
func codecString(mf domain.MediaFile) string {
	video := videoCodecTag(mf.VideoCodec)
	if mf.AudioCodec == "" {
		return video
	}
	return video + "," + audioCodecTag(mf.AudioCodec)
}

func videoCodecTag(codec string) string {
	switch codec {
	case "h264", "avc1":
		return "avc1.640028"
	case "hevc", "hvc1":
		return "hvc1.1.6.L93.B0"
	default:
		return codec
	}
}

func audioCodecTag(codec string) string {
	switch codec {
	case "aac", "mp4a":
		return "mp4a.40.2"
	default:
		return codec
	}
}
