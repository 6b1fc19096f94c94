package fmp4

import "mediavault/internal/domain"

// trunSampleFlagNonKeyframe marks a sample as non-sync in a trun's optional
// per-sample flags field (ISOBMFF sample_is_non_sync_sample=1).
const trunSampleFlagNonKeyframe = 0x00010000

const (
	trunFlagDataOffsetPresent      = 0x000001
	trunFlagFirstSampleFlagsPresent = 0x000004
	trunFlagSampleDurationPresent  = 0x000100
	trunFlagSampleSizePresent      = 0x000200
	trunFlagSampleFlagsPresent     = 0x000400
	trunFlagSampleCtsPresent       = 0x000800

	tfhdFlagDefaultBaseIsMoof = 0x020000
)

// BuildMoof builds the fragment header (moof) and the mdat *header* (an
// 8-byte size+'mdat' prefix, no payload) for one segment's video samples.
// sequenceNumber increases monotonically per connection/session; trackID
// must match the init segment's video track; baseMediaDecodeTime is the
// segment's starting dts in the track's timescale.
//
// The mdat size recorded in the header equals 8 plus the sum of the
// sample sizes — the caller is responsible for following this header with
// exactly that many bytes of file data, in sample order.
func BuildMoof(sequenceNumber uint32, trackID uint32, baseMediaDecodeTime uint64, samples []domain.Sample) (moof []byte, mdatHeader []byte, err error) {
	if len(samples) == 0 {
		return nil, nil, domain.Invalid(errEmptySegment{})
	}

	mfhd := fullBox("mfhd", 0, 0, be32(sequenceNumber))
	traf := buildTraf(trackID, baseMediaDecodeTime, samples)
	moof = writeBox("moof", concat(mfhd, traf))

	var dataLen uint64
	for _, s := range samples {
		dataLen += uint64(s.Size)
	}
	mdatHeader = concat(be32(uint32(8+dataLen)), []byte("mdat"))

	// trun's data_offset is relative to the start of the moof box; it must
	// point past moof and the 8-byte mdat header to the first sample byte.
	patchTrunDataOffset(moof, int32(len(moof)+8))

	return moof, mdatHeader, nil
}

type errEmptySegment struct{}

func (errEmptySegment) Error() string { return "fmp4: segment has no samples" }

func buildTraf(trackID uint32, baseMediaDecodeTime uint64, samples []domain.Sample) []byte {
	tfhd := fullBox("tfhd", 0, tfhdFlagDefaultBaseIsMoof, be32(trackID))
	tfdt := fullBox("tfdt", 1, 0, be64(baseMediaDecodeTime))
	trun := buildTrun(samples)
	return writeBox("traf", concat(tfhd, tfdt, trun))
}

func buildTrun(samples []domain.Sample) []byte {
	flags := uint32(trunFlagDataOffsetPresent |
		trunFlagFirstSampleFlagsPresent |
		trunFlagSampleDurationPresent |
		trunFlagSampleSizePresent |
		trunFlagSampleCtsPresent)

	payload := concat(be32(uint32(len(samples))), be32(0) /* data_offset, patched below */)

	firstFlags := sampleFlags(samples[0])
	payload = append(payload, be32(firstFlags)...)

	for i, s := range samples {
		duration := sampleDuration(samples, i)
		payload = append(payload, be32(duration)...)
		payload = append(payload, be32(s.Size)...)
		payload = append(payload, be32(uint32(s.PTSOffset))...)
	}
	return fullBox("trun", 0, flags, payload)
}

func sampleFlags(s domain.Sample) uint32 {
	if s.IsKeyframe {
		return 0x02000000 // sample_depends_on=2 (does not depend on others)
	}
	return trunSampleFlagNonKeyframe
}

func sampleDuration(samples []domain.Sample, i int) uint32 {
	if i+1 < len(samples) {
		return uint32(samples[i+1].DTS - samples[i].DTS)
	}
	if i > 0 {
		return uint32(samples[i].DTS - samples[i-1].DTS)
	}
	return 0
}

// patchTrunDataOffset overwrites the data_offset field inside moof's
// traf/trun in place now that moof's total size (and therefore the
// correct offset) is known.
func patchTrunDataOffset(moof []byte, dataOffset int32) {
	if len(moof) < 8 {
		return
	}
	trafRel := findBox(moof[8:], "traf")
	if trafRel < 0 {
		return
	}
	trafAbs := 8 + trafRel
	if trafAbs+8 > len(moof) {
		return
	}
	trunRel := findBox(moof[trafAbs+8:], "trun")
	if trunRel < 0 {
		return
	}
	trunAbs := trafAbs + 8 + trunRel
	// trun body: version+flags(4) + sample_count(4) + data_offset(4) ...
	dataOffsetPos := trunAbs + 8 + 4 + 4
	if dataOffsetPos+4 > len(moof) {
		return
	}
	putBe32(moof[dataOffsetPos:dataOffsetPos+4], uint32(dataOffset))
}

func putBe32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// findBox returns the offset of typ's header within buf (a box's body,
// possibly containing nested boxes), scanning only top-level children the
// same way box.go's walker would, or -1 if not found. It is a linear scan
// over the known two-level moof/traf/trun nesting this package produces,
// not a general-purpose box walker.
func findBox(buf []byte, typ string) int {
	off := 0
	for off+8 <= len(buf) {
		size := int(be32ToUint(buf[off : off+4]))
		if size < 8 || off+size > len(buf) {
			return -1
		}
		boxType := string(buf[off+4 : off+8])
		if boxType == typ {
			return off
		}
		off += size
	}
	return -1
}

func be32ToUint(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
