package segmap

import (
	"testing"

	"mediavault/internal/domain"
)

func sample(dts int64, offset uint64, size uint32, key bool) domain.Sample {
	return domain.Sample{DTS: dts, FileOffset: offset, Size: size, IsKeyframe: key}
}

func videoMeta(timescale uint32, samples []domain.Sample) *domain.MovieMetadata {
	return &domain.MovieMetadata{
		Tracks: []domain.TrackMetadata{
			{Kind: "video", Timescale: timescale, Samples: samples},
		},
	}
}

func TestBuildCutsOnKeyframeAfterTarget(t *testing.T) {
	// timescale 1 tick/sec for readability: keyframes at 0, 7, 14.
	var samples []domain.Sample
	offset := uint64(0)
	for i, dts := range []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15} {
		key := dts == 0 || dts == 7 || dts == 14
		samples = append(samples, sample(int64(dts), offset, 10, key))
		offset += 10
		_ = i
	}
	meta := videoMeta(1, samples)

	sm, err := Build(meta, 6)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sm.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(sm.Segments))
	}
	// segment 0: samples dts 0..6 (cum=6>=6 at dts=6, next sample dts=7 is keyframe)
	if sm.Segments[0].DurationSecs != 7 {
		t.Errorf("segment 0 duration = %v, want 7", sm.Segments[0].DurationSecs)
	}
}

func TestBuildMergesShortTrailingSegment(t *testing.T) {
	var samples []domain.Sample
	offset := uint64(0)
	// One 12s GOP (keyframes at dts 0 and 12 only) followed by a single
	// trailing sample at dts 12 with no further sample: an effectively
	// 0-second tail that must merge into the previous segment.
	for dts := int64(0); dts <= 12; dts++ {
		key := dts == 0 || dts == 12
		samples = append(samples, sample(dts, offset, 10, key))
		offset += 10
	}
	meta := videoMeta(1, samples)

	sm, err := Build(meta, 6)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sm.Segments) != 1 {
		t.Fatalf("segments = %d, want 1 (trailing <2s merged)", len(sm.Segments))
	}
}

func TestBuildNoInteriorKeyframesUsesFixedWindows(t *testing.T) {
	var samples []domain.Sample
	offset := uint64(0)
	for dts := int64(0); dts < 20; dts++ {
		samples = append(samples, sample(dts, offset, 10, dts == 0))
		offset += 10
	}
	meta := videoMeta(1, samples)

	sm, err := Build(meta, 6)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sm.Segments) < 2 {
		t.Fatalf("segments = %d, want fixed-window cuts despite no interior keyframes", len(sm.Segments))
	}
}

func TestBuildDeterministic(t *testing.T) {
	var samples []domain.Sample
	offset := uint64(0)
	for dts := int64(0); dts < 40; dts++ {
		samples = append(samples, sample(dts, offset, 10, dts%7 == 0))
		offset += 10
	}
	meta := videoMeta(1, samples)

	a, err := Build(meta, 6)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := Build(meta, 6)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(a.Segments) != len(b.Segments) {
		t.Fatalf("non-deterministic segment counts: %d vs %d", len(a.Segments), len(b.Segments))
	}
	for i := range a.Segments {
		if a.Segments[i].DurationSecs != b.Segments[i].DurationSecs {
			t.Fatalf("segment %d duration differs across runs", i)
		}
	}
}
