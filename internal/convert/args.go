// Package convert is the Conversion Worker (spec.md §4.10): it drives an
// external encoder to transcode a source media file into a Profile-B
// (universally compatible H.264/AAC MP4) output, streaming progress and
// installing the result into the preparation cache on success.
package convert

import (
	"fmt"
	"strconv"

	"mediavault/internal/domain"
)

// buildArgs constructs the encoder argument list from a ConversionConfig.
// Pure function, grounded on the teacher's buildStreamingFFmpegArgs: same
// progress/probe flags, same -c:v/-c:a/-crf shape, simplified from the
// teacher's HLS multi-variant muxer down to a single faststart MP4 output
// since a Profile-B conversion produces one universal file, not a ladder.
func buildArgs(cfg domain.ConversionConfig, input, output string, sourceWidth, sourceHeight int) []string {
	crf := effectiveCRF(cfg, sourceWidth, sourceHeight)
	preset := cfg.Preset
	if preset == "" {
		preset = "veryfast"
	}
	audioBitrate := cfg.AudioBitrate
	if audioBitrate == "" {
		audioBitrate = "192k"
	}

	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-fflags", "+genpts+discardcorrupt",
		"-err_detect", "ignore_err",
		"-analyzeduration", "20000000",
		"-probesize", "10000000",
		"-avoid_negative_ts", "make_zero",
		"-i", input,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-c:a", "aac",
		"-b:a", audioBitrate,
		"-ac", "2",
		"-movflags", "+faststart",
		"-y", output,
	}
}

// effectiveCRF applies spec.md §4.10 step 3's "CRF may be scaled by source
// resolution": higher source resolutions get a lower (stricter) CRF so the
// perceptual quality loss of a fixed CRF doesn't compound with downscaling
// artifacts, clamped to libx264's valid [0, 51] range.
func effectiveCRF(cfg domain.ConversionConfig, sourceWidth, sourceHeight int) int {
	crf := cfg.CRF
	if crf <= 0 {
		crf = 23
	}
	if !cfg.AdaptiveCRF {
		return clampCRF(crf)
	}
	switch {
	case sourceHeight >= 2160 || sourceWidth >= 3840:
		crf -= 2
	case sourceHeight >= 1440:
		crf -= 1
	}
	return clampCRF(crf)
}

func clampCRF(crf int) int {
	if crf < 0 {
		return 0
	}
	if crf > 51 {
		return 51
	}
	return crf
}

// outputPath computes `<source_dir>/<source_stem>-pb.mp4` per spec.md §4.10
// step 2.
func outputPath(sourceDir, sourceStem string) string {
	return fmt.Sprintf("%s/%s-pb.mp4", sourceDir, sourceStem)
}
