package mp4

import (
	"encoding/binary"
	"io"
)

// sampleEntry is the decoded subset of a stsd VisualSampleEntry or
// AudioSampleEntry this parser cares about.
type sampleEntry struct {
	format     string
	width      uint32
	height     uint32
	channels   uint16
	sampleRate uint32
	descriptor []byte // raw bytes of the first codec-config child box (avcC/hvcC/esds)
}

// parseStsd reads the first sample entry out of a stsd box. Only one
// sample entry is ever consulted, matching the "single track selected"
// policy for both video and audio.
func parseStsd(r io.ReaderAt, h boxHeader, kind string) (sampleEntry, error) {
	n := h.bodyLen()
	if n < 8 {
		return sampleEntry{}, invalid("stsd: truncated full-box header")
	}
	full := make([]byte, n)
	if err := readFull(r, h.bodyStart, full); err != nil {
		return sampleEntry{}, err
	}
	body := full[4:] // strip version+flags
	if len(body) < 4 {
		return sampleEntry{}, invalid("stsd: missing entry count")
	}
	entryCount := binary.BigEndian.Uint32(body[0:4])
	if entryCount == 0 {
		return sampleEntry{}, invalid("stsd: no sample entries")
	}
	entryStart := 4
	if entryStart+8 > len(body) {
		return sampleEntry{}, invalid("stsd: truncated sample entry")
	}
	entrySize := int(binary.BigEndian.Uint32(body[entryStart : entryStart+4]))
	if entryStart+entrySize > len(body) || entrySize < 16 {
		return sampleEntry{}, invalid("stsd: sample entry size out of range")
	}
	format := string(body[entryStart+4 : entryStart+8])
	entryBody := body[entryStart+8 : entryStart+entrySize] // past SampleEntry's 16-byte header (size+format already excluded, 8 of the 16 remain: reserved(6)+dref_index(2))
	if len(entryBody) < 8 {
		return sampleEntry{}, invalid("stsd: sample entry too small")
	}
	entryBody = entryBody[8:] // skip reserved(6) + data_reference_index(2)

	se := sampleEntry{format: format}
	switch kind {
	case "video":
		parseVisualSampleEntry(&se, entryBody)
	case "audio":
		parseAudioSampleEntry(&se, entryBody)
	}
	return se, nil
}

func parseVisualSampleEntry(se *sampleEntry, body []byte) {
	const fixedLen = 70 // pre_defined+reserved+pre_defined[3]+w+h+hres+vres+reserved+frame_count+compressorname+depth+pre_defined
	if len(body) < fixedLen {
		return
	}
	se.width = uint32(binary.BigEndian.Uint16(body[16:18]))
	se.height = uint32(binary.BigEndian.Uint16(body[18:20]))
	if len(body) > fixedLen {
		se.descriptor = firstChildBoxBody(body[fixedLen:])
	}
}

func parseAudioSampleEntry(se *sampleEntry, body []byte) {
	const fixedLen = 20 // version+revision+vendor+channels+sample_size+pre_defined+reserved+sample_rate
	if len(body) < fixedLen {
		return
	}
	se.channels = binary.BigEndian.Uint16(body[8:10])
	se.sampleRate = uint32(binary.BigEndian.Uint16(body[16:18])) // high 16 bits of the 16.16 fixed-point rate
	if len(body) > fixedLen {
		se.descriptor = firstChildBoxBody(body[fixedLen:])
	}
}

// firstChildBoxBody returns the body (excluding its own 8-byte header) of
// the first nested box found in buf, e.g. avcC/hvcC/esds trailing a
// sample entry's fixed fields.
func firstChildBoxBody(buf []byte) []byte {
	if len(buf) < 8 {
		return nil
	}
	size := binary.BigEndian.Uint32(buf[0:4])
	if size < 8 || int(size) > len(buf) {
		return nil
	}
	out := make([]byte, size-8)
	copy(out, buf[8:size])
	return out
}
