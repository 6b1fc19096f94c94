// Package probe wraps an external ffprobe invocation as a
// ports.Prober, the input the Profile Classifier and Qualifier run on for
// files not yet fully parsed.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
)

const maxProbeTimeout = 30 * time.Second

// Prober shells out to ffprobe and parses its JSON report into a
// domain.MediaInfo.
type Prober struct {
	binary string
}

var _ ports.Prober = (*Prober)(nil)

// New returns a Prober invoking binary (default "ffprobe" if blank).
func New(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

func (p *Prober) Probe(ctx context.Context, path string) (domain.MediaInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.MediaInfo{}, domain.Invalid(errors.New("file path is required"))
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-probesize", "100M",
		"-analyzeduration", "100M",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	info, parseErr := parseProbeOutput(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			return domain.MediaInfo{}, domain.IOErr(fmt.Errorf("ffprobe failed: %w: %s", runErr, strings.TrimSpace(stderr.String())))
		}
		return domain.MediaInfo{}, domain.ParseErr(fmt.Errorf("ffprobe output parse failed: %w", parseErr))
	}
	if runErr != nil && len(info.Tracks) == 0 {
		return domain.MediaInfo{}, domain.IOErr(fmt.Errorf("ffprobe failed: %w: %s", runErr, strings.TrimSpace(stderr.String())))
	}
	return info, nil
}

type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Channels      int               `json:"channels"`
	SampleRateStr string            `json:"sample_rate"`
	BitsPerRaw    int               `json:"bits_per_raw_sample"`
	ColorTransfer string            `json:"color_transfer"`
	RFrameRate    string            `json:"r_frame_rate"`
	SideData      []probeSideData   `json:"side_data_list"`
	Tags          map[string]string `json:"tags"`
	Disposition   struct {
		Default int `json:"default"`
	} `json:"disposition"`
}

type probeSideData struct {
	SideDataType string `json:"side_data_type"`
	DVProfile    int    `json:"dv_profile"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	StartTime  string `json:"start_time"`
}

func parseProbeOutput(data []byte) (domain.MediaInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.MediaInfo{}, err
	}

	tracks := make([]domain.MediaTrack, 0, len(payload.Streams))
	videoIdx, audioIdx, subIdx := 0, 0, 0

	for _, s := range payload.Streams {
		switch s.CodecType {
		case "video":
			track := domain.MediaTrack{
				Index:      videoIdx,
				Type:       "video",
				Codec:      s.CodecName,
				Language:   strings.TrimSpace(getTag(s.Tags, "language")),
				Title:      strings.TrimSpace(getTag(s.Tags, "title")),
				Default:    s.Disposition.Default == 1,
				Width:      s.Width,
				Height:     s.Height,
				FPS:        parseFrameRate(s.RFrameRate),
				BitDepth:   s.BitsPerRaw,
				HDRFormat:  hdrFormatOf(s),
			}
			if dv := dolbyVisionProfile(s); dv > 0 {
				track.DolbyVisionProfile = dv
				track.HDRFormat = "dolby_vision"
			}
			tracks = append(tracks, track)
			videoIdx++
		case "audio":
			sampleRate, _ := strconv.Atoi(s.SampleRateStr)
			tracks = append(tracks, domain.MediaTrack{
				Index:      audioIdx,
				Type:       "audio",
				Codec:      s.CodecName,
				Language:   strings.TrimSpace(getTag(s.Tags, "language")),
				Title:      strings.TrimSpace(getTag(s.Tags, "title")),
				Default:    s.Disposition.Default == 1,
				Channels:   s.Channels,
				SampleRate: sampleRate,
			})
			audioIdx++
		case "subtitle":
			tracks = append(tracks, domain.MediaTrack{
				Index:    subIdx,
				Type:     "subtitle",
				Codec:    s.CodecName,
				Language: strings.TrimSpace(getTag(s.Tags, "language")),
				Title:    strings.TrimSpace(getTag(s.Tags, "title")),
				Default:  s.Disposition.Default == 1,
			})
			subIdx++
		}
	}

	var duration, startTime float64
	if payload.Format.Duration != "" {
		if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
			duration = d
		}
	}
	if payload.Format.StartTime != "" {
		if st, err := strconv.ParseFloat(payload.Format.StartTime, 64); err == nil && st > 0 {
			startTime = st
		}
	}

	return domain.MediaInfo{
		Container: containerOf(payload.Format.FormatName),
		Tracks:    tracks,
		Duration:  duration,
		StartTime: startTime,
	}, nil
}

// containerOf maps ffprobe's comma-separated format_name (e.g.
// "mov,mp4,m4a,3gp,3g2,mj2") to the single canonical name
// domain.MediaInfo.ContainerIsMP4Family recognizes.
func containerOf(formatName string) string {
	names := strings.Split(formatName, ",")
	canonical := ""
	for _, n := range names {
		switch n {
		case "mp4":
			return n
		case "mov", "m4v", "isom":
			if canonical == "" {
				canonical = n
			}
		}
	}
	if canonical != "" {
		return canonical
	}
	if len(names) > 0 {
		return names[0]
	}
	return formatName
}

func hdrFormatOf(s probeStream) string {
	switch s.ColorTransfer {
	case "smpte2084":
		for _, sd := range s.SideData {
			if sd.SideDataType == "HDR Dynamic Metadata SMPTE2094-40" {
				return "hdr10plus"
			}
		}
		return "hdr10"
	case "arib-std-b67":
		return "hlg"
	default:
		return ""
	}
}

func dolbyVisionProfile(s probeStream) int {
	for _, sd := range s.SideData {
		if sd.SideDataType == "DOVI configuration record" {
			return sd.DVProfile
		}
	}
	return 0
}

func parseFrameRate(r string) float64 {
	parts := strings.SplitN(r, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func getTag(tags map[string]string, key string) string {
	if len(tags) == 0 {
		return ""
	}
	if v, ok := tags[key]; ok {
		return v
	}
	if v, ok := tags[strings.ToUpper(key)]; ok {
		return v
	}
	if v, ok := tags[strings.ToLower(key)]; ok {
		return v
	}
	return ""
}
