package mp4

import (
	"encoding/binary"
	"io"

	"mediavault/internal/domain"
)

type sttsEntry struct {
	sampleCount uint32
	sampleDelta uint32
}

type cttsEntry struct {
	sampleCount  uint32
	sampleOffset int64 // signed in version 1
}

type stscEntry struct {
	firstChunk      uint32
	samplesPerChunk uint32
}

// sampleTable holds the raw box contents for one track's stbl, before being
// flattened into []domain.Sample.
type sampleTable struct {
	stts        []sttsEntry
	ctts        []cttsEntry
	syncSamples map[uint32]bool // 1-based sample index; nil means "all keyframes" (no stss box)
	sampleSizes []uint32        // per-sample; nil when uniformSize>0 (all samples share it)
	uniformSize uint32
	stsc        []stscEntry
	chunkOffsets []uint64
}

func parseStts(r io.ReaderAt, h boxHeader) ([]sttsEntry, error) {
	body, err := fullVersionedBody(r, h)
	if err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(body[0:4])
	entries := make([]sttsEntry, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+8 > len(body) {
			return nil, invalid("stts: truncated entry table")
		}
		entries = append(entries, sttsEntry{
			sampleCount: binary.BigEndian.Uint32(body[off : off+4]),
			sampleDelta: binary.BigEndian.Uint32(body[off+4 : off+8]),
		})
		off += 8
	}
	return entries, nil
}

func parseCtts(r io.ReaderAt, h boxHeader) ([]cttsEntry, error) {
	body, version, err := versionedBody(r, h)
	if err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(body[0:4])
	entries := make([]cttsEntry, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+8 > len(body) {
			return nil, invalid("ctts: truncated entry table")
		}
		sampleCount := binary.BigEndian.Uint32(body[off : off+4])
		raw := binary.BigEndian.Uint32(body[off+4 : off+8])
		var sampleOffset int64
		if version == 1 {
			sampleOffset = int64(int32(raw))
		} else {
			sampleOffset = int64(raw)
		}
		entries = append(entries, cttsEntry{sampleCount: sampleCount, sampleOffset: sampleOffset})
		off += 8
	}
	return entries, nil
}

func parseStss(r io.ReaderAt, h boxHeader) (map[uint32]bool, error) {
	body, err := fullVersionedBody(r, h)
	if err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(body[0:4])
	set := make(map[uint32]bool, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+4 > len(body) {
			return nil, invalid("stss: truncated entry table")
		}
		set[binary.BigEndian.Uint32(body[off:off+4])] = true
		off += 4
	}
	return set, nil
}

func parseStsz(r io.ReaderAt, h boxHeader) (sizes []uint32, uniform uint32, err error) {
	body, err := fullVersionedBody(r, h)
	if err != nil {
		return nil, 0, err
	}
	if len(body) < 8 {
		return nil, 0, invalid("stsz: truncated header")
	}
	sampleSize := binary.BigEndian.Uint32(body[0:4])
	count := binary.BigEndian.Uint32(body[4:8])
	if sampleSize != 0 {
		return nil, sampleSize, nil
	}
	sizes = make([]uint32, 0, count)
	off := 8
	for i := uint32(0); i < count; i++ {
		if off+4 > len(body) {
			return nil, 0, invalid("stsz: truncated size table")
		}
		sizes = append(sizes, binary.BigEndian.Uint32(body[off:off+4]))
		off += 4
	}
	return sizes, 0, nil
}

func parseStsc(r io.ReaderAt, h boxHeader) ([]stscEntry, error) {
	body, err := fullVersionedBody(r, h)
	if err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(body[0:4])
	entries := make([]stscEntry, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+12 > len(body) {
			return nil, invalid("stsc: truncated entry table")
		}
		entries = append(entries, stscEntry{
			firstChunk:      binary.BigEndian.Uint32(body[off : off+4]),
			samplesPerChunk: binary.BigEndian.Uint32(body[off+4 : off+8]),
		})
		off += 12
	}
	return entries, nil
}

func parseStco(r io.ReaderAt, h boxHeader) ([]uint64, error) {
	body, err := fullVersionedBody(r, h)
	if err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(body[0:4])
	offsets := make([]uint64, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+4 > len(body) {
			return nil, invalid("stco: truncated offset table")
		}
		offsets = append(offsets, uint64(binary.BigEndian.Uint32(body[off:off+4])))
		off += 4
	}
	return offsets, nil
}

func parseCo64(r io.ReaderAt, h boxHeader) ([]uint64, error) {
	body, err := fullVersionedBody(r, h)
	if err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(body[0:4])
	offsets := make([]uint64, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+8 > len(body) {
			return nil, invalid("co64: truncated offset table")
		}
		offsets = append(offsets, binary.BigEndian.Uint64(body[off:off+8]))
		off += 8
	}
	return offsets, nil
}

// fullVersionedBody reads a full-box body (4-byte version+flags header
// followed by the payload) and strips the version+flags prefix.
func fullVersionedBody(r io.ReaderAt, h boxHeader) ([]byte, error) {
	body, _, err := versionedBody(r, h)
	return body, err
}

func versionedBody(r io.ReaderAt, h boxHeader) (body []byte, version byte, err error) {
	n := h.bodyLen()
	if n < 4 {
		return nil, 0, invalid("box %q too small for version+flags", h.typ)
	}
	buf := make([]byte, n)
	if err := readFull(r, h.bodyStart, buf); err != nil {
		return nil, 0, err
	}
	return buf[4:], buf[0], nil
}

// buildSamples flattens a sample table into an ordered []domain.Sample with
// absolute file offsets and decode timestamps, using 64-bit arithmetic
// throughout per spec.
func (st sampleTable) buildSamples() ([]domain.Sample, error) {
	sampleCount := 0
	for _, e := range st.stts {
		sampleCount += int(e.sampleCount)
	}
	if sampleCount == 0 {
		return nil, nil
	}

	// Flatten stsc run-length chunk groups into (chunk index -> samples in
	// that chunk), then walk chunks in order assigning samples to their
	// resolved absolute file offset via chunkOffsets.
	if len(st.stsc) == 0 {
		return nil, invalid("stsc: no entries")
	}
	totalChunks := len(st.chunkOffsets)

	samples := make([]domain.Sample, 0, sampleCount)
	sampleIdx := 0 // 0-based overall sample index
	dts := int64(0)
	sttsEntryIdx, sttsRemaining := 0, 0
	if len(st.stts) > 0 {
		sttsRemaining = int(st.stts[0].sampleCount)
	}
	cttsEntryIdx, cttsRemaining := 0, 0
	if len(st.ctts) > 0 {
		cttsRemaining = int(st.ctts[0].sampleCount)
	}

	scIdx := 0 // index into st.stsc

	for chunk := 1; chunk <= totalChunks; chunk++ {
		for scIdx+1 < len(st.stsc) && uint32(chunk) >= st.stsc[scIdx+1].firstChunk {
			scIdx++
		}
		samplesInChunk := int(st.stsc[scIdx].samplesPerChunk)
		if chunk-1 >= len(st.chunkOffsets) {
			return nil, invalid("stco/co64: chunk %d has no offset entry", chunk)
		}
		fileOffset := st.chunkOffsets[chunk-1]

		for i := 0; i < samplesInChunk; i++ {
			if sampleIdx >= sampleCount {
				return nil, invalid("stsc: describes more samples than stts")
			}
			size := st.uniformSize
			if st.uniformSize == 0 {
				if sampleIdx >= len(st.sampleSizes) {
					return nil, invalid("stsz: missing size for sample %d", sampleIdx)
				}
				size = st.sampleSizes[sampleIdx]
			}

			var ptsOffset int64
			if len(st.ctts) > 0 {
				for cttsRemaining == 0 && cttsEntryIdx+1 < len(st.ctts) {
					cttsEntryIdx++
					cttsRemaining = int(st.ctts[cttsEntryIdx].sampleCount)
				}
				if cttsRemaining > 0 {
					ptsOffset = st.ctts[cttsEntryIdx].sampleOffset
					cttsRemaining--
				}
			}

			isKey := st.syncSamples == nil || st.syncSamples[uint32(sampleIdx+1)]

			samples = append(samples, domain.Sample{
				DTS:        dts,
				PTSOffset:  ptsOffset,
				FileOffset: fileOffset,
				Size:       size,
				IsKeyframe: isKey,
			})

			fileOffset += uint64(size)

			for sttsRemaining == 0 && sttsEntryIdx+1 < len(st.stts) {
				sttsEntryIdx++
				sttsRemaining = int(st.stts[sttsEntryIdx].sampleCount)
			}
			if sttsRemaining > 0 {
				dts += int64(st.stts[sttsEntryIdx].sampleDelta)
				sttsRemaining--
			}
			sampleIdx++
		}
	}

	if sampleIdx != sampleCount {
		return nil, invalid("stsc/stco: resolved %d samples, stts declares %d", sampleIdx, sampleCount)
	}
	return samples, nil
}
