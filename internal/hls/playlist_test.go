package hls

import (
	"fmt"
	"strings"
	"testing"

	"mediavault/internal/domain"
	"mediavault/internal/segmap"
)

func sampleMeta() *domain.MovieMetadata {
	samples := make([]domain.Sample, 0, 8)
	for i := 0; i < 8; i++ {
		samples = append(samples, domain.Sample{
			DTS:        int64(i) * 90000,
			FileOffset: uint64(i) * 1000,
			Size:       1000,
			IsKeyframe: i%3 == 0,
		})
	}
	return &domain.MovieMetadata{
		DurationSecs: 8,
		Tracks: []domain.TrackMetadata{
			{TrackID: 1, Timescale: 90000, Kind: "video", Codec: "avc1", Width: 1920, Height: 1080,
				Descriptor: []byte{0x01, 0x64, 0x00, 0x28}, Samples: samples},
		},
	}
}

func TestRenderMediaIncludesMapAndSegments(t *testing.T) {
	meta := sampleMeta()
	sm, err := segmap.Build(meta, 3)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	playlist := RenderMedia(sm, "init.mp4", func(i int) string {
		return fmt.Sprintf("segment_%d.m4s", i)
	})

	if !strings.HasPrefix(playlist, "#EXTM3U\n") {
		t.Fatalf("missing #EXTM3U header: %q", playlist)
	}
	if !strings.Contains(playlist, "#EXT-X-VERSION:7\n") {
		t.Fatalf("missing version 7")
	}
	if !strings.Contains(playlist, `#EXT-X-MAP:URI="init.mp4"`) {
		t.Fatalf("missing EXT-X-MAP: %q", playlist)
	}
	if !strings.Contains(playlist, "#EXT-X-ENDLIST\n") {
		t.Fatalf("missing EXT-X-ENDLIST")
	}
	if strings.Count(playlist, "#EXTINF:") != len(sm.Segments) {
		t.Fatalf("EXTINF count mismatch: got %d want %d", strings.Count(playlist, "#EXTINF:"), len(sm.Segments))
	}
	for _, seg := range sm.Segments {
		want := fmt.Sprintf("segment_%d.m4s", seg.Index)
		if !strings.Contains(playlist, want) {
			t.Fatalf("missing segment reference %q", want)
		}
	}
}

func TestRenderMediaNeverEmitsAbsoluteURLs(t *testing.T) {
	meta := sampleMeta()
	sm, err := segmap.Build(meta, 3)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	playlist := RenderMedia(sm, "init.mp4", func(i int) string {
		return fmt.Sprintf("segment_%d.m4s", i)
	})
	for _, line := range strings.Split(playlist, "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "/") || strings.Contains(line, "://") {
			t.Fatalf("segment line embeds a host/absolute path: %q", line)
		}
	}
}

func TestRenderMasterIncludesStreamInf(t *testing.T) {
	out := RenderMaster([]VariantInfo{
		{BandwidthBps: 5_000_000, Width: 1920, Height: 1080, CodecString: "avc1.640028,mp4a.40.2", PlaylistPath: "stream.m3u8"},
	})
	if !strings.Contains(out, "#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080,CODECS=\"avc1.640028,mp4a.40.2\"\n") {
		t.Fatalf("unexpected master playlist: %q", out)
	}
	if !strings.Contains(out, "stream.m3u8\n") {
		t.Fatalf("missing variant playlist path")
	}
}

func TestCodecStringDerivesFromAvcCAndAudio(t *testing.T) {
	meta := sampleMeta()
	meta.Tracks = append(meta.Tracks, domain.TrackMetadata{
		TrackID: 2, Timescale: 48000, Kind: "audio", Codec: "mp4a", Channels: 2, SampleRate: 48000,
	})
	got := CodecString(meta)
	want := "avc1.640028,mp4a.40.2"
	if got != want {
		t.Fatalf("CodecString = %q, want %q", got, want)
	}
}

func TestEstimateBandwidthBps(t *testing.T) {
	got := EstimateBandwidthBps(75_000_000, 60)
	want := int(float64(75_000_000) * 8 / 60)
	if got != want {
		t.Fatalf("EstimateBandwidthBps = %d, want %d", got, want)
	}
	if EstimateBandwidthBps(100, 0) != 0 {
		t.Fatalf("zero duration should yield 0, not divide by zero")
	}
}
