package domain

import "time"

// Profile is the streaming classification of a MediaFile.
type Profile string

const (
	ProfileA Profile = "A" // HDR/DV master, not directly HLS-servable
	ProfileB Profile = "B" // universal playback, serves HLS directly
	ProfileC Profile = "C" // needs conversion before it can serve HLS
)

// MediaFile is a physical file belonging to an Item.
//
// Invariant: Profile == ProfileB iff a preparation-cache entry exists for
// this file, whether live in memory, in HLSPrepared, or reconstructible from
// the file's moov. See internal/prepcache.
type MediaFile struct {
	ID        string `json:"id" bson:"_id"`
	ItemID    string `json:"itemId" bson:"itemId"`
	Path      string `json:"path" bson:"path"`
	Container string `json:"container" bson:"container"`
	SizeBytes int64  `json:"sizeBytes" bson:"sizeBytes"`

	VideoCodec         string  `json:"videoCodec" bson:"videoCodec"`
	AudioCodec         string  `json:"audioCodec" bson:"audioCodec"`
	Width               int     `json:"width" bson:"width"`
	Height              int     `json:"height" bson:"height"`
	DurationSecs        float64 `json:"durationSecs" bson:"durationSecs"`
	HDR                 bool    `json:"hdr" bson:"hdr"`
	DolbyVisionProfile  int     `json:"dolbyVisionProfile,omitempty" bson:"dolbyVisionProfile,omitempty"`

	Profile            Profile `json:"profile" bson:"profile"`
	CanBeProfileA      bool    `json:"canBeProfileA" bson:"canBeProfileA"`
	CanBeProfileB      bool    `json:"canBeProfileB" bson:"canBeProfileB"`
	ServesAsUniversal  bool    `json:"servesAsUniversal" bson:"servesAsUniversal"`

	HasFaststart         bool   `json:"hasFaststart" bson:"hasFaststart"`
	KeyframeIntervalSecs float64 `json:"keyframeIntervalSecs" bson:"keyframeIntervalSecs"`

	// HLSPrepared is the serialised PreparedMedia, set once §4.5 step 4 has
	// run successfully. Nil until then.
	HLSPrepared []byte `json:"-" bson:"hlsPrepared,omitempty"`

	// SourceMediaFileID is set on conversion outputs, pointing back at the
	// file they were transcoded from.
	SourceMediaFileID string `json:"sourceMediaFileId,omitempty" bson:"sourceMediaFileId,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ByteRange is a half-open region of an existing file: [Offset, Offset+Length).
type ByteRange struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// Segment is one fMP4 media segment's worth of metadata: enough to build a
// moof box and locate the mdat payload inside the source file without
// copying it.
type Segment struct {
	Index           int         `json:"index"`
	MoofBytes       []byte      `json:"moofBytes"`
	MdatHeader      []byte      `json:"mdatHeader"`
	VideoDataRanges []ByteRange `json:"videoDataRanges"`
	AudioDataRanges []ByteRange `json:"audioDataRanges"`
	DataLength      uint64      `json:"dataLength"`
	DurationSecs    float64     `json:"durationSecs"`
}

// PreparedMedia is the Preparation Cache's value type: everything needed to
// serve HLS for one MediaFile without re-touching its moov box.
type PreparedMedia struct {
	FilePath         string    `json:"filePath"`
	InitSegmentBytes []byte    `json:"initSegmentBytes"`
	Segments         []Segment `json:"segments"`
}

func (p *PreparedMedia) TotalDurationSecs() float64 {
	var total float64
	for _, s := range p.Segments {
		total += s.DurationSecs
	}
	return total
}
