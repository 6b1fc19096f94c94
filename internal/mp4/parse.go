// Package mp4 implements a streaming ISOBMFF ("MP4") box parser: enough of
// the moov hierarchy to reconstruct every track's sample table, and nothing
// else. It never decodes sample payloads.
package mp4

import (
	"io"

	"mediavault/internal/domain"
)

// Parse walks r (an io.ReaderAt over the whole file, size bytes long) and
// returns the movie's metadata. Only one video track and one audio track
// are kept; additional tracks are dropped (spec's single-track policy).
//
// Failure modes: a malformed/truncated box returns a domain.KindParse
// error; a moov that has not been fully written yet (mdat precedes it and
// it is still streaming in) returns ErrNeedMoreData. Parse never panics.
func Parse(r io.ReaderAt, size int64) (*domain.MovieMetadata, error) {
	if size < 8 {
		return nil, ErrNeedMoreData
	}

	var moovHdr *boxHeader
	var mdatSeenBeforeMoov bool
	var sawMoov bool

	err := walkBoxes(r, 0, size, func(h boxHeader) error {
		switch h.typ {
		case "moov":
			hc := h
			moovHdr = &hc
			sawMoov = true
			return errStopWalk
		case "mdat":
			if !sawMoov {
				mdatSeenBeforeMoov = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moovHdr == nil {
		return nil, ErrNeedMoreData
	}

	var traks []parsedTrak
	err = walkBoxes(r, moovHdr.bodyStart, moovHdr.bodyEnd, func(h boxHeader) error {
		if h.typ != "trak" {
			return nil
		}
		pt, err := parseTrak(r, h)
		if err != nil {
			return err
		}
		traks = append(traks, pt)
		return nil
	})
	if err != nil {
		return nil, err
	}

	meta := &domain.MovieMetadata{HasFaststart: !mdatSeenBeforeMoov}

	var video, audio *parsedTrak
	for i := range traks {
		switch traks[i].handler {
		case "vide":
			if video == nil {
				video = &traks[i]
			}
		case "soun":
			if audio == nil {
				audio = &traks[i]
			}
		}
	}

	for _, t := range []*parsedTrak{video, audio} {
		if t == nil {
			continue
		}
		dt, err := t.toDomain()
		if err != nil {
			return nil, err
		}
		meta.Tracks = append(meta.Tracks, dt)
	}
	if video == nil {
		return nil, invalid("no video track found")
	}

	meta.DurationSecs = trackDurationSecs(meta.VideoTrack())
	return meta, nil
}

func trackDurationSecs(t *domain.TrackMetadata) float64 {
	if t == nil || t.Timescale == 0 || len(t.Samples) == 0 {
		return 0
	}
	last := t.Samples[len(t.Samples)-1]
	return float64(last.DTS) / float64(t.Timescale)
}
