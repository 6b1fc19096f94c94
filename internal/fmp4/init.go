// Package fmp4 implements the two pure builders from spec.md §4.3: an
// InitSegmentBuilder (ftyp+moov, no samples) and a MoofBuilder (moof plus an
// mdat *header* — the mdat payload is never copied, only referenced by the
// segment's existing byte ranges).
package fmp4

import "mediavault/internal/domain"

// BuildInitSegment produces the bytes of ftyp+moov describing meta's
// selected video and (if present) audio tracks as fragmented-mp4 tracks,
// consumed once per track by HLS clients via init.mp4.
func BuildInitSegment(meta *domain.MovieMetadata) ([]byte, error) {
	video := meta.VideoTrack()
	if video == nil {
		return nil, domain.Invalid(errMissingVideoTrack{})
	}

	ftyp := writeBox("ftyp", concat(
		[]byte("iso5"), be32(0), []byte("iso5"), []byte("iso6"), []byte("mp41"),
	))

	var traks []byte
	traks = append(traks, buildTrak(video)...)
	trexes := []byte(nil)
	trexes = append(trexes, buildTrex(trackID(video))...)

	audio := meta.AudioTrack()
	if audio != nil {
		traks = append(traks, buildTrak(audio)...)
		trexes = append(trexes, buildTrex(trackID(audio))...)
	}

	mvhd := buildMvhd(video.Timescale)
	mvex := writeBox("mvex", trexes)
	moov := writeBox("moov", concat(mvhd, traks, mvex))

	return concat(ftyp, moov), nil
}

type errMissingVideoTrack struct{}

func (errMissingVideoTrack) Error() string { return "fmp4: no video track in metadata" }

func trackID(t *domain.TrackMetadata) uint32 {
	if t.TrackID == 0 {
		return 1
	}
	return t.TrackID
}

func buildMvhd(timescale uint32) []byte {
	payload := concat(
		be32(0), be32(0), // creation, modification time
		be32(timescale),
		be32(0),             // duration (fragmented: unknown/0)
		be32(0x00010000),    // rate 1.0
		be16(0x0100), be16(0), // volume 1.0, reserved
		be32(0), be32(0), // reserved
		identityMatrix(),
		make([]byte, 24), // pre_defined
		be32(0xFFFFFFFF), // next_track_id
	)
	return fullBox("mvhd", 0, 0, payload)
}

func identityMatrix() []byte {
	return concat(
		be32(0x00010000), be32(0), be32(0),
		be32(0), be32(0x00010000), be32(0),
		be32(0), be32(0), be32(0x40000000),
	)
}

func buildTrex(trackID uint32) []byte {
	payload := concat(
		be32(trackID),
		be32(1), // default_sample_description_index
		be32(0), // default_sample_duration
		be32(0), // default_sample_size
		be32(0), // default_sample_flags
	)
	return fullBox("trex", 0, 0, payload)
}

func buildTrak(t *domain.TrackMetadata) []byte {
	tkhd := buildTkhd(t)
	mdia := buildMdia(t)
	return writeBox("trak", concat(tkhd, mdia))
}

func buildTkhd(t *domain.TrackMetadata) []byte {
	flags := uint32(0x000007) // track enabled, in movie, in preview
	payload := concat(
		be32(0), be32(0), // creation, modification
		be32(trackID(t)),
		be32(0), // reserved
		be32(0), // duration
		make([]byte, 8),
		be16(0), be16(0), // layer, alternate_group
		be16(volumeFor(t)), be16(0),
		identityMatrix(),
		be32(uint32(t.Width)<<16), be32(uint32(t.Height)<<16),
	)
	return fullBox("tkhd", 0, flags, payload)
}

func volumeFor(t *domain.TrackMetadata) uint16 {
	if t.Kind == "audio" {
		return 0x0100
	}
	return 0
}

func buildMdia(t *domain.TrackMetadata) []byte {
	mdhd := fullBox("mdhd", 0, 0, concat(
		be32(0), be32(0), be32(t.Timescale), be32(0), be16(0x55c4), be16(0),
	))

	handlerType := "vide"
	name := "VideoHandler"
	if t.Kind == "audio" {
		handlerType = "soun"
		name = "SoundHandler"
	}
	hdlr := fullBox("hdlr", 0, 0, concat(
		be32(0), []byte(handlerType), make([]byte, 12), []byte(name), []byte{0},
	))

	minf := buildMinf(t)
	return writeBox("mdia", concat(mdhd, hdlr, minf))
}

func buildMinf(t *domain.TrackMetadata) []byte {
	var mediaHeader []byte
	if t.Kind == "audio" {
		mediaHeader = fullBox("smhd", 0, 0, concat(be16(0), be16(0)))
	} else {
		mediaHeader = fullBox("vmhd", 0, 1, concat(be16(0), be16(0), be16(0), be16(0)))
	}

	dref := fullBox("dref", 0, 0, concat(be32(1), fullBox("url ", 0, 1, nil)))
	dinf := writeBox("dinf", dref)

	stbl := buildEmptyStbl(t)
	return writeBox("minf", concat(mediaHeader, dinf, stbl))
}

// buildEmptyStbl emits a stbl carrying only stsd (the codec sample
// description a client needs to decode) with empty stts/stsc/stsz/stco —
// a fragmented track's sample table lives in each moof's traf instead.
func buildEmptyStbl(t *domain.TrackMetadata) []byte {
	stsd := buildStsd(t)
	empty32 := fullBox("stts", 0, 0, be32(0))
	emptyStsc := fullBox("stsc", 0, 0, be32(0))
	emptyStsz := fullBox("stsz", 0, 0, concat(be32(0), be32(0)))
	emptyStco := fullBox("stco", 0, 0, be32(0))
	return writeBox("stbl", concat(stsd, empty32, emptyStsc, emptyStsz, emptyStco))
}

func buildStsd(t *domain.TrackMetadata) []byte {
	var entry []byte
	if t.Kind == "audio" {
		entry = buildAudioSampleEntry(t)
	} else {
		entry = buildVisualSampleEntry(t)
	}
	return fullBox("stsd", 0, 0, concat(be32(1), entry))
}

func buildVisualSampleEntry(t *domain.TrackMetadata) []byte {
	fixed := concat(
		be16(0), be16(0), make([]byte, 12),
		be16(uint16(t.Width)), be16(uint16(t.Height)),
		be32(0x00480000), be32(0x00480000), // 72 dpi
		be32(0),
		be16(1), make([]byte, 32), // frame_count, compressorname
		be16(0x0018), be16(0xFFFF), // depth, pre_defined
	)
	children := wrapDescriptor(t)
	body := concat(make([]byte, 6), be16(1), fixed, children)
	return writeBox(sampleEntryFourCC(t.Codec), body)
}

func buildAudioSampleEntry(t *domain.TrackMetadata) []byte {
	channels := t.Channels
	if channels == 0 {
		channels = 2
	}
	sampleRate := t.SampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}
	fixed := concat(
		be16(0), be16(0), be32(0),
		be16(channels), be16(16),
		be16(0), be16(0),
		be32(sampleRate<<16),
	)
	children := wrapDescriptor(t)
	body := concat(make([]byte, 6), be16(1), fixed, children)
	return writeBox(sampleEntryFourCC(t.Codec), body)
}

func wrapDescriptor(t *domain.TrackMetadata) []byte {
	if len(t.Descriptor) == 0 {
		return nil
	}
	childType := "avcC"
	if t.Kind == "audio" {
		childType = "esds"
	} else if t.Codec == "hvc1" || t.Codec == "hev1" {
		childType = "hvcC"
	}
	return writeBox(childType, t.Descriptor)
}

func sampleEntryFourCC(codec string) string {
	if len(codec) == 4 {
		return codec
	}
	if codec == "" {
		return "avc1"
	}
	// pad/truncate defensively; real codec strings from the MP4 parser are
	// already 4 characters.
	b := []byte(codec + "    ")
	return string(b[:4])
}
