package probe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"testing"
)

func mkPayload(streams []probeStream, dur, startTime, formatName string) []byte {
	p := probePayload{
		Streams: streams,
		Format:  probeFormat{Duration: dur, StartTime: startTime, FormatName: formatName},
	}
	data, _ := json.Marshal(p)
	return data
}

func mkVideoStream(codec string, w, h int, transfer string) probeStream {
	return probeStream{CodecType: "video", CodecName: codec, Width: w, Height: h, ColorTransfer: transfer}
}

func mkAudioStream(codec string, channels int, sampleRate string) probeStream {
	return probeStream{CodecType: "audio", CodecName: codec, Channels: channels, SampleRateStr: sampleRate}
}

func TestNewDefaultBinary(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "ffprobe"},
		{"   ", "ffprobe"},
		{"/usr/local/bin/ffprobe", "/usr/local/bin/ffprobe"},
	}
	for _, tc := range tests {
		if got := New(tc.in).binary; got != tc.want {
			t.Errorf("New(%q).binary = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProbeEmptyPath(t *testing.T) {
	p := New("")
	if _, err := p.Probe(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestProbeNonExistentBinary(t *testing.T) {
	p := New("/nonexistent/ffprobe")
	_, err := p.Probe(context.Background(), "/some/file.mp4")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestParseProbeOutputContainerAndTracks(t *testing.T) {
	data := mkPayload([]probeStream{
		mkVideoStream("h264", 1920, 1080, ""),
		mkAudioStream("aac", 2, "48000"),
	}, "120.5", "0.0", "mov,mp4,m4a,3gp,3g2,mj2")

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if info.Container != "mp4" {
		t.Fatalf("container = %q, want mp4", info.Container)
	}
	if info.Duration != 120.5 {
		t.Fatalf("duration = %f, want 120.5", info.Duration)
	}
	video := info.VideoTracks()
	if len(video) != 1 || video[0].Width != 1920 || video[0].Height != 1080 {
		t.Fatalf("video track = %+v", video)
	}
	audio := info.AudioTracks()
	if len(audio) != 1 || audio[0].Channels != 2 || audio[0].SampleRate != 48000 {
		t.Fatalf("audio track = %+v", audio)
	}
}

func TestParseProbeOutputHDR10(t *testing.T) {
	data := mkPayload([]probeStream{
		mkVideoStream("hevc", 3840, 2160, "smpte2084"),
	}, "60", "", "mov,mp4")

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if !info.HasHDRVideo() {
		t.Fatal("expected HasHDRVideo=true for smpte2084 transfer")
	}
	if info.Tracks[0].HDRFormat != "hdr10" {
		t.Fatalf("HDRFormat = %q, want hdr10", info.Tracks[0].HDRFormat)
	}
}

func TestParseProbeOutputDolbyVision(t *testing.T) {
	stream := mkVideoStream("hevc", 3840, 2160, "smpte2084")
	stream.SideData = []probeSideData{{SideDataType: "DOVI configuration record", DVProfile: 8}}
	data := mkPayload([]probeStream{stream}, "60", "", "mov,mp4")

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if info.Tracks[0].DolbyVisionProfile != 8 {
		t.Fatalf("DolbyVisionProfile = %d, want 8", info.Tracks[0].DolbyVisionProfile)
	}
	if info.Tracks[0].HDRFormat != "dolby_vision" {
		t.Fatalf("HDRFormat = %q, want dolby_vision", info.Tracks[0].HDRFormat)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"24000/1001", 24000.0 / 1001.0},
		{"30/1", 30.0},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
		{"30/0", 0},
	}
	for _, tc := range tests {
		got := parseFrameRate(tc.in)
		diff := got - tc.want
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.01 {
			t.Errorf("parseFrameRate(%q) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestContainerOf(t *testing.T) {
	tests := []struct{ in, want string }{
		{"mov,mp4,m4a,3gp,3g2,mj2", "mp4"},
		{"matroska,webm", "matroska"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := containerOf(tc.in); got != tc.want {
			t.Errorf("containerOf(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGetTagCaseInsensitive(t *testing.T) {
	tags := map[string]string{"LANGUAGE": "eng"}
	if got := getTag(tags, "language"); got != "eng" {
		t.Fatalf("getTag = %q, want eng", got)
	}
	if got := getTag(nil, "language"); got != "" {
		t.Fatalf("getTag(nil) = %q, want empty", got)
	}
}

func ffprobeAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe binary not available, skipping integration test")
	}
}

func TestProbeValidFileIntegration(t *testing.T) {
	ffprobeAvailable(t)
	p := New("")
	info, err := p.Probe(context.Background(), "/dev/null")
	if err == nil && len(info.Tracks) == 0 {
		return
	}
	if err != nil && !strings.Contains(err.Error(), "ffprobe") {
		t.Fatalf("unexpected error shape: %v", err)
	}
}
