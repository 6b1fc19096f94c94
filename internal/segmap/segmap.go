// Package segmap builds GOP-aligned segment maps from a parsed MovieMetadata,
// the pure input the fMP4 Packager and HLS Playlist Renderer both consume.
package segmap

import "mediavault/internal/domain"

// DefaultTargetDuration is the target segment length in seconds (T in
// spec.md §4.2).
const DefaultTargetDuration = 6.0

// trailingMergeThreshold: a final partial segment shorter than this is
// folded into the previous one rather than standing alone. Pinned at
// exactly 2.0s: a segment whose duration == 2.0s keeps its own entry.
const trailingMergeThreshold = 2.0

// SegmentSpan describes one segment purely in terms of sample indices into
// the source track, before byte ranges are resolved.
type SegmentSpan struct {
	StartSample int // inclusive
	EndSample   int // exclusive
	StartDTS    int64
	EndDTS      int64
}

// SegmentMap is the Segment Map Builder's contract output. Spans mirrors
// Segments index-for-index, carrying the video sample-index boundaries that
// produced each domain.Segment — callers that need the raw samples back
// (the fMP4 Packager's per-segment moof builder) index into the video
// track's Samples slice with it instead of re-deriving boundaries from
// byte ranges or durations.
type SegmentMap struct {
	Timescale    uint32
	Segments     []domain.Segment
	Spans        []SegmentSpan
	SampleCount  int
	DurationSecs float64
}

// Build walks meta's video track in order, cutting only at keyframes: it
// closes the current segment once its cumulative duration reaches
// targetSecs AND the next sample is itself a keyframe. It is pure and
// deterministic: the same MovieMetadata and targetSecs always yields
// byte-identical segment boundaries, which is required for the blob cache
// to be safely reconstructed from a re-parsed moov.
func Build(meta *domain.MovieMetadata, targetSecs float64) (*SegmentMap, error) {
	if targetSecs <= 0 {
		targetSecs = DefaultTargetDuration
	}
	video := meta.VideoTrack()
	if video == nil {
		return nil, domain.Invalid(errNoVideoTrack{})
	}
	audio := meta.AudioTrack()

	spans := buildSpans(video.Samples, video.Timescale, targetSecs)
	spans = mergeTrailing(spans, video.Timescale)

	segments := make([]domain.Segment, 0, len(spans))
	for i, sp := range spans {
		videoRanges := byteRangesFor(video.Samples[sp.StartSample:sp.EndSample])
		var audioRanges []domain.ByteRange
		if audio != nil {
			audioRanges = audioRangesInWindow(audio.Samples, audio.Timescale, sp.StartDTS, sp.EndDTS, video.Timescale)
		}
		dataLen := rangesLength(videoRanges) + rangesLength(audioRanges)
		durationSecs := float64(sp.EndDTS-sp.StartDTS) / float64(video.Timescale)

		segments = append(segments, domain.Segment{
			Index:           i,
			VideoDataRanges: videoRanges,
			AudioDataRanges: audioRanges,
			DataLength:      dataLen,
			DurationSecs:    durationSecs,
		})
	}

	return &SegmentMap{
		Timescale:    video.Timescale,
		Segments:     segments,
		Spans:        spans,
		SampleCount:  len(video.Samples),
		DurationSecs: meta.DurationSecs,
	}, nil
}

type errNoVideoTrack struct{}

func (errNoVideoTrack) Error() string { return "segmap: no video track" }

func buildSpans(samples []domain.Sample, timescale uint32, targetSecs float64) []SegmentSpan {
	if len(samples) == 0 {
		return nil
	}
	targetTicks := int64(targetSecs * float64(timescale))

	// Tie-break: a file with no keyframes after sample 0 never satisfies
	// the "next sample is a keyframe" close condition, which would produce
	// one giant segment. In that pathological case, cut on fixed windows
	// regardless of keyframe boundaries.
	noInteriorKeyframes := true
	for i := 1; i < len(samples); i++ {
		if samples[i].IsKeyframe {
			noInteriorKeyframes = false
			break
		}
	}

	var spans []SegmentSpan
	start := 0
	for i := 1; i <= len(samples); i++ {
		atEnd := i == len(samples)
		closeHere := false
		if !atEnd {
			cum := samples[i-1].DTS - samples[start].DTS
			if cum >= targetTicks && (samples[i].IsKeyframe || noInteriorKeyframes) {
				closeHere = true
			}
		}
		if atEnd || closeHere {
			end := i
			var endDTS int64
			if end < len(samples) {
				endDTS = samples[end].DTS
			} else {
				// Last segment: extrapolate one sample duration past the
				// final sample's dts using the average delta, falling back
				// to the span's own duration for a single-sample span.
				endDTS = samples[end-1].DTS
				if end-1 > start {
					avgDelta := (samples[end-1].DTS - samples[start].DTS) / int64(end-1-start)
					endDTS += avgDelta
				}
			}
			spans = append(spans, SegmentSpan{
				StartSample: start,
				EndSample:   end,
				StartDTS:    samples[start].DTS,
				EndDTS:      endDTS,
			})
			start = end
		}
	}
	return spans
}

// mergeTrailing folds a final span shorter than trailingMergeThreshold
// seconds into the previous one (tie-break rule in spec.md §4.2).
func mergeTrailing(spans []SegmentSpan, timescale uint32) []SegmentSpan {
	if len(spans) < 2 {
		return spans
	}
	last := spans[len(spans)-1]
	durationSecs := float64(last.EndDTS-last.StartDTS) / float64(timescale)
	if durationSecs >= trailingMergeThreshold {
		return spans
	}
	merged := spans[:len(spans)-1]
	merged[len(merged)-1].EndSample = last.EndSample
	merged[len(merged)-1].EndDTS = last.EndDTS
	return merged
}

func byteRangesFor(samples []domain.Sample) []domain.ByteRange {
	var ranges []domain.ByteRange
	for _, s := range samples {
		if n := len(ranges); n > 0 {
			prev := &ranges[n-1]
			if prev.Offset+prev.Length == s.FileOffset {
				prev.Length += uint64(s.Size)
				continue
			}
		}
		ranges = append(ranges, domain.ByteRange{Offset: s.FileOffset, Length: uint64(s.Size)})
	}
	return ranges
}

// audioRangesInWindow selects audio samples whose dts, converted into the
// video track's timescale, falls within [startDTS, endDTS).
func audioRangesInWindow(samples []domain.Sample, audioTimescale uint32, startDTS, endDTS int64, videoTimescale uint32) []domain.ByteRange {
	var matched []domain.Sample
	for _, s := range samples {
		scaledDTS := s.DTS * int64(videoTimescale) / int64(audioTimescale)
		if scaledDTS >= startDTS && scaledDTS < endDTS {
			matched = append(matched, s)
		}
	}
	return byteRangesFor(matched)
}

func rangesLength(ranges []domain.ByteRange) uint64 {
	var total uint64
	for _, r := range ranges {
		total += r.Length
	}
	return total
}
