package mongo

import (
	"testing"
	"time"

	"mediavault/internal/domain"
)

func TestLibraryDocRoundtrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := domain.Library{
		ID:        "lib1",
		Name:      "Movies",
		Type:      domain.LibraryMovies,
		Roots:     []string{"/media/movies"},
		CreatedAt: now,
		UpdatedAt: now.Add(time.Hour),
	}

	got := fromLibraryDoc(toLibraryDoc(l))
	if got.ID != l.ID || got.Name != l.Name || got.Type != l.Type {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
	if len(got.Roots) != 1 || got.Roots[0] != "/media/movies" {
		t.Errorf("Roots mismatch: %+v", got.Roots)
	}
	if !got.CreatedAt.Equal(l.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, l.CreatedAt)
	}
}

func TestItemDocRoundtrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	it := domain.Item{
		ID:          "item1",
		LibraryID:   "lib1",
		Kind:        domain.ItemEpisode,
		Name:        "Pilot",
		ReleaseYear: 2020,
		ParentID:    "season1",
		ScanStatus:  domain.ScanScanned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	got := fromItemDoc(toItemDoc(it))
	if got != it {
		t.Errorf("roundtrip mismatch:\n got  %+v\n want %+v", got, it)
	}
}

func TestMediaFileDocRoundtripPreservesConversionLinkage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mf := domain.MediaFile{
		ID:                   "mf1",
		ItemID:               "item1",
		Path:                 "/media/movies/a.mkv",
		Container:            "matroska",
		SizeBytes:            123456,
		VideoCodec:           "hevc",
		AudioCodec:           "eac3",
		Width:                3840,
		Height:               2160,
		DurationSecs:         7200,
		HDR:                  true,
		DolbyVisionProfile:   5,
		Profile:              domain.ProfileC,
		CanBeProfileA:        true,
		CanBeProfileB:        false,
		ServesAsUniversal:    false,
		HasFaststart:         false,
		KeyframeIntervalSecs: 2,
		SourceMediaFileID:    "mf0",
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	got := fromMediaFileDoc(toMediaFileDoc(mf))
	// MediaFile carries a []byte field, so compare scalar fields rather
	// than the whole struct.
	if got.ID != mf.ID || got.ItemID != mf.ItemID || got.Path != mf.Path ||
		got.Profile != mf.Profile || got.HDR != mf.HDR ||
		got.DolbyVisionProfile != mf.DolbyVisionProfile ||
		got.Width != mf.Width || got.Height != mf.Height ||
		got.SourceMediaFileID != mf.SourceMediaFileID {
		t.Errorf("roundtrip mismatch:\n got  %+v\n want %+v", got, mf)
	}
	if !got.CreatedAt.Equal(mf.CreatedAt) || !got.UpdatedAt.Equal(mf.UpdatedAt) {
		t.Errorf("timestamp mismatch: got %+v, want %+v", got, mf)
	}
}

func TestMediaFileDocRoundtripOmitsNilHLSPrepared(t *testing.T) {
	mf := domain.MediaFile{ID: "mf1", HLSPrepared: nil}
	doc := toMediaFileDoc(mf)
	if doc.HLSPrepared != nil {
		t.Errorf("expected nil HLSPrepared, got %v", doc.HLSPrepared)
	}
}

func TestUserItemDataDocRoundtrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := domain.UserItemData{
		UserID:                "user1",
		ItemID:                "item1",
		PlayCount:             3,
		PlaybackPositionTicks: domain.SecondsToTicks(120.5),
		Played:                false,
		IsFavorite:            true,
		LastPlayedAt:          &now,
	}

	got := fromUserItemDataDoc(toUserItemDataDoc(d))
	if got.UserID != d.UserID || got.ItemID != d.ItemID || got.PlayCount != d.PlayCount {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
	if got.PlaybackPositionTicks != d.PlaybackPositionTicks {
		t.Errorf("PlaybackPositionTicks = %d, want %d", got.PlaybackPositionTicks, d.PlaybackPositionTicks)
	}
	if got.LastPlayedAt == nil || !got.LastPlayedAt.Equal(*d.LastPlayedAt) {
		t.Errorf("LastPlayedAt = %v, want %v", got.LastPlayedAt, d.LastPlayedAt)
	}
}

func TestUserItemDataDocOmitsNilLastPlayedAt(t *testing.T) {
	d := domain.UserItemData{UserID: "u", ItemID: "i"}
	got := fromUserItemDataDoc(toUserItemDataDoc(d))
	if got.LastPlayedAt != nil {
		t.Errorf("expected nil LastPlayedAt, got %v", got.LastPlayedAt)
	}
}
