package mp4

import (
	"encoding/binary"
	"io"

	"mediavault/internal/domain"
)

// parsedTrak is the intermediate result of walking one trak box, before
// it is flattened into a domain.TrackMetadata.
type parsedTrak struct {
	trackID   uint32
	timescale uint32
	handler   string // "vide", "soun", or something else (ignored)
	entry     sampleEntry
	table     sampleTable
}

func parseTrak(r io.ReaderAt, h boxHeader) (parsedTrak, error) {
	var pt parsedTrak
	err := walkBoxes(r, h.bodyStart, h.bodyEnd, func(child boxHeader) error {
		switch child.typ {
		case "tkhd":
			id, err := parseTkhd(r, child)
			if err != nil {
				return err
			}
			pt.trackID = id
		case "mdia":
			return walkBoxes(r, child.bodyStart, child.bodyEnd, func(m boxHeader) error {
				switch m.typ {
				case "mdhd":
					ts, err := parseMdhd(r, m)
					if err != nil {
						return err
					}
					pt.timescale = ts
				case "hdlr":
					hdlr, err := parseHdlr(r, m)
					if err != nil {
						return err
					}
					pt.handler = hdlr
				case "minf":
					return walkBoxes(r, m.bodyStart, m.bodyEnd, func(mi boxHeader) error {
						if mi.typ != "stbl" {
							return nil
						}
						table, entry, err := parseStbl(r, mi, handlerKind(pt.handler))
						if err != nil {
							return err
						}
						pt.table = table
						pt.entry = entry
						return nil
					})
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return parsedTrak{}, err
	}
	return pt, nil
}

func handlerKind(hdlr string) string {
	switch hdlr {
	case "vide":
		return "video"
	case "soun":
		return "audio"
	default:
		return ""
	}
}

func parseTkhd(r io.ReaderAt, h boxHeader) (uint32, error) {
	body, version, err := versionedBody(r, h)
	if err != nil {
		return 0, err
	}
	// version 0: creation(4) modification(4) track_id(4) ...
	// version 1: creation(8) modification(8) track_id(4) ...
	idOff := 8
	if version == 1 {
		idOff = 16
	}
	if idOff+4 > len(body) {
		return 0, invalid("tkhd: truncated")
	}
	return binary.BigEndian.Uint32(body[idOff : idOff+4]), nil
}

func parseMdhd(r io.ReaderAt, h boxHeader) (uint32, error) {
	body, version, err := versionedBody(r, h)
	if err != nil {
		return 0, err
	}
	// version 0: creation(4) modification(4) timescale(4) duration(4)
	// version 1: creation(8) modification(8) timescale(4) duration(8)
	tsOff := 8
	if version == 1 {
		tsOff = 16
	}
	if tsOff+4 > len(body) {
		return 0, invalid("mdhd: truncated")
	}
	return binary.BigEndian.Uint32(body[tsOff : tsOff+4]), nil
}

func parseHdlr(r io.ReaderAt, h boxHeader) (string, error) {
	body, err := fullVersionedBody(r, h)
	if err != nil {
		return "", err
	}
	// pre_defined(4) handler_type(4) reserved[3](12) name...
	if len(body) < 8 {
		return "", invalid("hdlr: truncated")
	}
	return string(body[4:8]), nil
}

// parseStbl walks one stbl box, returning the raw sample table and the
// track's single selected sample entry (stsd's first entry).
func parseStbl(r io.ReaderAt, h boxHeader, kind string) (sampleTable, sampleEntry, error) {
	var table sampleTable
	var entry sampleEntry
	err := walkBoxes(r, h.bodyStart, h.bodyEnd, func(child boxHeader) error {
		var err error
		switch child.typ {
		case "stsd":
			entry, err = parseStsd(r, child, kind)
		case "stts":
			table.stts, err = parseStts(r, child)
		case "ctts":
			table.ctts, err = parseCtts(r, child)
		case "stss":
			table.syncSamples, err = parseStss(r, child)
		case "stsz", "stz2":
			table.sampleSizes, table.uniformSize, err = parseStsz(r, child)
		case "stsc":
			table.stsc, err = parseStsc(r, child)
		case "stco":
			table.chunkOffsets, err = parseStco(r, child)
		case "co64":
			table.chunkOffsets, err = parseCo64(r, child)
		}
		return err
	})
	if err != nil {
		return sampleTable{}, sampleEntry{}, err
	}
	return table, entry, nil
}

func (pt parsedTrak) toDomain() (domain.TrackMetadata, error) {
	samples, err := pt.table.buildSamples()
	if err != nil {
		return domain.TrackMetadata{}, err
	}
	return domain.TrackMetadata{
		TrackID:    pt.trackID,
		Timescale:  pt.timescale,
		Kind:       handlerKind(pt.handler),
		Codec:      pt.entry.format,
		Descriptor: pt.entry.descriptor,
		Width:      pt.entry.width,
		Height:     pt.entry.height,
		Channels:   pt.entry.channels,
		SampleRate: pt.entry.sampleRate,
		Samples:    samples,
	}, nil
}
