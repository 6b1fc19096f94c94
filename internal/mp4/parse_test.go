package mp4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// box builds a size-prefixed box from a 4cc type and already-encoded body.
func box(typ string, body []byte) []byte {
	buf := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(8+len(body)))
	copy(buf[4:8], typ)
	copy(buf[8:], body)
	return buf
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func fullBox(typ string, payload []byte) []byte {
	body := append([]byte{0, 0, 0, 0}, payload...) // version=0 flags=0
	return box(typ, body)
}

// buildMinimalMovie constructs a synthetic single-video-track MP4 with 4
// samples, one chunk, 2 keyframes (sample 1 and sample 3), so the test can
// assert the parser reconstructs offsets/dts/keyframe flags correctly
// without needing a real encoder fixture.
func buildMinimalMovie(t *testing.T) ([]byte, []byte) {
	t.Helper()

	sampleSize := uint32(100)
	mdatPayload := make([]byte, 4*sampleSize)
	mdat := box("mdat", mdatPayload)

	// moov comes after mdat in this fixture (not faststart) to exercise
	// HasFaststart=false.
	ftyp := box("ftyp", append([]byte("isom"), 0, 0, 0, 0))

	tkhd := fullBox("tkhd", append(append(make([]byte, 8), be32(1)...), make([]byte, 60)...))

	mdhd := fullBox("mdhd", append(append(make([]byte, 8), be32(1000)...), make([]byte, 4)...))
	hdlr := fullBox("hdlr", append(append(make([]byte, 4), []byte("vide")...), make([]byte, 12)...))

	// stsd: 1 entry, format "avc1", minimal visual sample entry.
	visualFixed := make([]byte, 70)
	binary.BigEndian.PutUint16(visualFixed[16:18], 1920)
	binary.BigEndian.PutUint16(visualFixed[18:20], 1080)
	entryBody := append(make([]byte, 8), visualFixed...) // reserved(6)+dref_index(2)
	entry := box("avc1", entryBody)
	stsdPayload := append(be32(1), entry...)
	stsd := fullBox("stsd", stsdPayload)

	// stts: one run of 4 samples, delta 10.
	stts := fullBox("stts", append(be32(1), append(be32(4), be32(10)...)...))

	// stss: samples 1 and 3 are sync samples.
	stss := fullBox("stss", append(be32(2), append(be32(1), be32(3)...)...))

	// stsz: explicit per-sample size list of 4 entries.
	stszPayload := append(be32(0), be32(4)...)
	for i := 0; i < 4; i++ {
		stszPayload = append(stszPayload, be32(sampleSize)...)
	}
	stsz := fullBox("stsz", stszPayload)

	// stsc: one chunk holding all 4 samples (firstChunk, samplesPerChunk,
	// sampleDescriptionIndex).
	stsc := fullBox("stsc", concat(be32(1), be32(1), be32(4), be32(1)))

	// stco: chunk 1 starts right after ftyp (offset computed below once we
	// know ftyp's length); mdat payload starts right after the mdat header.
	mdatHeaderLen := 8
	chunkOffset := uint32(len(ftyp) + mdatHeaderLen)
	stco := fullBox("stco", append(be32(1), be32(chunkOffset)...))

	stbl := box("stbl", concat(stsd, stts, stss, stsz, stsc, stco))
	minf := box("minf", stbl)
	mdia := box("mdia", concat(mdhd, hdlr, minf))
	trak := box("trak", concat(tkhd, mdia))
	moov := box("moov", trak)

	file := concat(ftyp, mdat, moov)
	return file, mdatPayload
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestParseReconstructsSampleTable(t *testing.T) {
	file, _ := buildMinimalMovie(t)
	r := bytes.NewReader(file)

	meta, err := Parse(r, int64(len(file)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.HasFaststart {
		t.Fatalf("expected HasFaststart=false (mdat precedes moov in fixture)")
	}

	video := meta.VideoTrack()
	if video == nil {
		t.Fatalf("expected a video track")
	}
	if video.Codec != "avc1" {
		t.Fatalf("codec = %q, want avc1", video.Codec)
	}
	if video.Width != 1920 || video.Height != 1080 {
		t.Fatalf("dims = %dx%d, want 1920x1080", video.Width, video.Height)
	}
	if len(video.Samples) != 4 {
		t.Fatalf("sample count = %d, want 4", len(video.Samples))
	}

	wantKey := []bool{true, false, true, false}
	for i, s := range video.Samples {
		if s.IsKeyframe != wantKey[i] {
			t.Errorf("sample %d keyframe = %v, want %v", i, s.IsKeyframe, wantKey[i])
		}
		if s.DTS != int64(i)*10 {
			t.Errorf("sample %d dts = %d, want %d", i, s.DTS, int64(i)*10)
		}
		if s.Size != 100 {
			t.Errorf("sample %d size = %d, want 100", i, s.Size)
		}
	}
	// Samples are contiguous within the single chunk.
	for i := 1; i < len(video.Samples); i++ {
		want := video.Samples[i-1].FileOffset + uint64(video.Samples[i-1].Size)
		if video.Samples[i].FileOffset != want {
			t.Errorf("sample %d offset = %d, want %d", i, video.Samples[i].FileOffset, want)
		}
	}
}

func TestParseTruncatedFileNeedsMoreData(t *testing.T) {
	file, _ := buildMinimalMovie(t)
	truncated := file[:len(file)-20]

	_, err := Parse(bytes.NewReader(truncated), int64(len(truncated)))
	if !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("err = %v, want ErrNeedMoreData", err)
	}
}

func TestParseMissingMoovNeedsMoreData(t *testing.T) {
	ftyp := box("ftyp", append([]byte("isom"), 0, 0, 0, 0))
	mdat := box("mdat", make([]byte, 16))
	file := concat(ftyp, mdat)

	_, err := Parse(bytes.NewReader(file), int64(len(file)))
	if !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("err = %v, want ErrNeedMoreData", err)
	}
}
