package fmp4

import (
	"encoding/binary"
	"testing"

	"mediavault/internal/domain"
)

func sampleTrack() *domain.TrackMetadata {
	return &domain.TrackMetadata{
		TrackID:   1,
		Timescale: 90000,
		Kind:      "video",
		Codec:     "avc1",
		Width:     1920,
		Height:    1080,
		Descriptor: []byte{0x01, 0x42, 0x00, 0x1f},
	}
}

func TestBuildInitSegmentIncludesFtypAndMoov(t *testing.T) {
	meta := &domain.MovieMetadata{Tracks: []domain.TrackMetadata{*sampleTrack()}}
	out, err := BuildInitSegment(meta)
	if err != nil {
		t.Fatalf("BuildInitSegment: %v", err)
	}
	if len(out) < 16 {
		t.Fatalf("output too short: %d bytes", len(out))
	}
	if string(out[4:8]) != "ftyp" {
		t.Fatalf("first box = %q, want ftyp", out[4:8])
	}
	ftypSize := binary.BigEndian.Uint32(out[0:4])
	moovStart := int(ftypSize)
	if moovStart+8 > len(out) || string(out[moovStart+4:moovStart+8]) != "moov" {
		t.Fatalf("second box is not moov")
	}
}

func TestBuildInitSegmentRequiresVideoTrack(t *testing.T) {
	meta := &domain.MovieMetadata{}
	if _, err := BuildInitSegment(meta); err == nil {
		t.Fatalf("expected error for metadata with no video track")
	}
}

func TestBuildMoofProducesConsistentMdatHeader(t *testing.T) {
	samples := []domain.Sample{
		{DTS: 0, FileOffset: 1000, Size: 500, IsKeyframe: true},
		{DTS: 3000, FileOffset: 1500, Size: 300, IsKeyframe: false},
		{DTS: 6000, FileOffset: 1800, Size: 400, IsKeyframe: false},
	}
	moof, mdatHeader, err := BuildMoof(7, 1, 90000, samples)
	if err != nil {
		t.Fatalf("BuildMoof: %v", err)
	}
	if string(moof[4:8]) != "moof" {
		t.Fatalf("box type = %q, want moof", moof[4:8])
	}
	if len(mdatHeader) != 8 || string(mdatHeader[4:8]) != "mdat" {
		t.Fatalf("mdat header malformed: %x", mdatHeader)
	}
	wantSize := uint32(8 + 500 + 300 + 400)
	gotSize := binary.BigEndian.Uint32(mdatHeader[0:4])
	if gotSize != wantSize {
		t.Fatalf("mdat size = %d, want %d", gotSize, wantSize)
	}
}

func TestBuildMoofRejectsEmptySegment(t *testing.T) {
	if _, _, err := BuildMoof(1, 1, 0, nil); err == nil {
		t.Fatalf("expected error for empty sample list")
	}
}
