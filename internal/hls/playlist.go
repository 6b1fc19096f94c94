// Package hls renders HLS master and media playlists from a segmap.SegmentMap
// (spec.md §4.4). URLs are always emitted relative to the stream root —
// embedding a host is the known bug class this package specifically avoids.
package hls

import (
	"fmt"
	"strings"

	"mediavault/internal/domain"
	"mediavault/internal/segmap"
)

// VariantInfo carries what the master playlist needs to describe a single
// rendition: bandwidth estimate, resolution, and the RFC 6381 codec string.
type VariantInfo struct {
	BandwidthBps int
	Width        int
	Height       int
	CodecString  string // e.g. "avc1.640028,mp4a.40.2"
	PlaylistPath string // relative path to the variant's media playlist
}

// RenderMaster emits a master playlist with one #EXT-X-STREAM-INF entry per
// variant. spec.md only requires a single rendition per stream, but the
// renderer accepts a slice so a future multi-rendition ladder is a
// non-breaking addition.
func RenderMaster(variants []VariantInfo) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d,CODECS=\"%s\"\n",
			v.BandwidthBps, v.Width, v.Height, v.CodecString)
		b.WriteString(v.PlaylistPath)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMedia emits a version-7 media playlist: independent segments,
// #EXT-X-MAP pointing at initPath, then one #EXTINF+URI pair per segment.
// segmentPathFor builds the relative URL for segment index i (e.g.
// "segment_3.m4s").
func RenderMedia(sm *segmap.SegmentMap, initPath string, segmentPathFor func(index int) string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")

	maxDuration := 0
	for _, seg := range sm.Segments {
		if d := int(seg.DurationSecs + 0.999); d > maxDuration {
			maxDuration = d
		}
	}
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", maxDuration)
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	fmt.Fprintf(&b, "#EXT-X-MAP:URI=\"%s\"\n", initPath)

	for _, seg := range sm.Segments {
		fmt.Fprintf(&b, "#EXTINF:%.6f,\n", seg.DurationSecs)
		b.WriteString(segmentPathFor(seg.Index))
		b.WriteString("\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// CodecString derives an RFC 6381 codec string from the video and (if
// present) audio track, falling back to generic avc1/mp4a tags when a
// detailed profile/level cannot be read from the descriptor.
func CodecString(meta *domain.MovieMetadata) string {
	video := meta.VideoTrack()
	if video == nil {
		return ""
	}
	parts := []string{videoCodecTag(video)}
	if audio := meta.AudioTrack(); audio != nil {
		parts = append(parts, audioCodecTag(audio))
	}
	return strings.Join(parts, ",")
}

func videoCodecTag(t *domain.TrackMetadata) string {
	if t.Codec == "avc1" && len(t.Descriptor) >= 4 {
		// Descriptor here is the avcC payload; bytes 1-3 are
		// profile_idc/profile_compat/level_idc.
		return fmt.Sprintf("avc1.%02X%02X%02X", t.Descriptor[1], t.Descriptor[2], t.Descriptor[3])
	}
	return t.Codec
}

func audioCodecTag(t *domain.TrackMetadata) string {
	if t.Codec == "mp4a" {
		return "mp4a.40.2" // AAC-LC, the only audio codec Profile B admits
	}
	return t.Codec
}

// EstimateBandwidthBps computes a bandwidth estimate from total file size
// and duration, as the master playlist's BANDWIDTH attribute requires.
func EstimateBandwidthBps(sizeBytes int64, durationSecs float64) int {
	if durationSecs <= 0 {
		return 0
	}
	return int(float64(sizeBytes) * 8 / durationSecs)
}
