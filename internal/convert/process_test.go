package convert

import (
	"os"
	"testing"
)

func writeProgressLines(t *testing.T, lines []string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	go func() {
		defer w.Close()
		for _, line := range lines {
			if _, err := w.WriteString(line + "\n"); err != nil {
				return
			}
		}
	}()
	return r
}

func TestParseProgressEmitsTicksOnProgressLine(t *testing.T) {
	var ticks []progressTick
	p := &process{onTick: func(pt progressTick) { ticks = append(ticks, pt) }}

	r := writeProgressLines(t, []string{
		"frame=100",
		"fps=24.50",
		"bitrate=4500.2kbits/s",
		"out_time_us=5000000",
		"speed=1.25x",
		"progress=continue",
		"out_time_us=10000000",
		"speed=1.30x",
		"progress=end",
	})
	p.parseProgress(r)

	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d: %+v", len(ticks), ticks)
	}
	first := ticks[0]
	if first.OutTimeUs != 5000000 || first.FPS != 24.50 || first.BitrateKbps != 4500.2 || first.Speed != 1.25 || first.Done {
		t.Errorf("first tick mismatch: %+v", first)
	}
	second := ticks[1]
	if second.OutTimeUs != 10000000 || !second.Done {
		t.Errorf("second tick mismatch: %+v", second)
	}
}

func TestParseBitrateKbpsHandlesNA(t *testing.T) {
	if got := parseBitrateKbps("N/A"); got != 0 {
		t.Errorf("parseBitrateKbps(N/A) = %f, want 0", got)
	}
	if got := parseBitrateKbps("1234.5kbits/s"); got != 1234.5 {
		t.Errorf("parseBitrateKbps = %f, want 1234.5", got)
	}
}

func TestParseSpeedHandlesNA(t *testing.T) {
	if got := parseSpeed("N/A"); got != 0 {
		t.Errorf("parseSpeed(N/A) = %f, want 0", got)
	}
	if got := parseSpeed("2.00x"); got != 2.0 {
		t.Errorf("parseSpeed = %f, want 2.0", got)
	}
}
