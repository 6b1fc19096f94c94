package resolver

import (
	"context"
	"testing"

	"mediavault/internal/domain"
)

type fakeFiles struct {
	byID    map[string]domain.MediaFile
	byItem  map[string][]domain.MediaFile
	listErr error
}

func (f *fakeFiles) Create(ctx context.Context, mf domain.MediaFile) error { return nil }
func (f *fakeFiles) Update(ctx context.Context, mf domain.MediaFile) error { return nil }
func (f *fakeFiles) Get(ctx context.Context, id string) (domain.MediaFile, error) {
	mf, ok := f.byID[id]
	if !ok {
		return domain.MediaFile{}, domain.NotFound(nil)
	}
	return mf, nil
}
func (f *fakeFiles) ListByItem(ctx context.Context, itemID string) ([]domain.MediaFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byItem[itemID], nil
}
func (f *fakeFiles) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeFiles) SetHLSPrepared(ctx context.Context, id string, blob []byte) error {
	return nil
}

func TestResolveExplicitMediaSourceUsesItVerbatim(t *testing.T) {
	mf := domain.MediaFile{ID: "mf1", ServesAsUniversal: false}
	files := &fakeFiles{byID: map[string]domain.MediaFile{"mf1": mf}}
	r := New(files)

	got, err := r.Resolve(context.Background(), "item1", "mf1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.MediaFileID != "mf1" || got.Route != domain.RouteDirect {
		t.Errorf("got %+v", got)
	}
}

func TestResolveExplicitMediaSourceUniversalRoutesHLS(t *testing.T) {
	mf := domain.MediaFile{ID: "mf1", ServesAsUniversal: true}
	files := &fakeFiles{byID: map[string]domain.MediaFile{"mf1": mf}}
	r := New(files)

	got, err := r.Resolve(context.Background(), "item1", "mf1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Route != domain.RouteHLS {
		t.Errorf("route = %v, want hls", got.Route)
	}
}

func TestResolvePrefersUniversalFileOverSource(t *testing.T) {
	source := domain.MediaFile{ID: "src", ServesAsUniversal: false}
	universal := domain.MediaFile{ID: "universal", ServesAsUniversal: true}
	files := &fakeFiles{byItem: map[string][]domain.MediaFile{
		"item1": {source, universal},
	}}
	r := New(files)

	got, err := r.Resolve(context.Background(), "item1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.MediaFileID != "universal" || got.Route != domain.RouteHLS {
		t.Errorf("got %+v, want universal/hls", got)
	}
}

func TestResolveFallsBackToCompletedConversionOutput(t *testing.T) {
	source := domain.MediaFile{ID: "src", ServesAsUniversal: false}
	converted := domain.MediaFile{
		ID: "conv", ServesAsUniversal: false,
		Profile: domain.ProfileB, SourceMediaFileID: "src",
	}
	files := &fakeFiles{byItem: map[string][]domain.MediaFile{
		"item1": {source, converted},
	}}
	r := New(files)

	got, err := r.Resolve(context.Background(), "item1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.MediaFileID != "conv" || got.Route != domain.RouteHLS {
		t.Errorf("got %+v, want conv/hls", got)
	}
}

func TestResolveFallsBackToSourceDirectWhenNoUniversalOrConversion(t *testing.T) {
	source := domain.MediaFile{ID: "src", ServesAsUniversal: false, Profile: domain.ProfileC}
	files := &fakeFiles{byItem: map[string][]domain.MediaFile{
		"item1": {source},
	}}
	r := New(files)

	got, err := r.Resolve(context.Background(), "item1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.MediaFileID != "src" || got.Route != domain.RouteDirect {
		t.Errorf("got %+v, want src/direct", got)
	}
}

func TestResolveNoFilesForItemReturnsNotFound(t *testing.T) {
	files := &fakeFiles{byItem: map[string][]domain.MediaFile{}}
	r := New(files)

	_, err := r.Resolve(context.Background(), "missing-item", "")
	if err == nil {
		t.Fatal("expected error for item with no media files")
	}
}

func TestResolveExplicitMediaSourceNotFoundPropagatesError(t *testing.T) {
	files := &fakeFiles{byID: map[string]domain.MediaFile{}}
	r := New(files)

	_, err := r.Resolve(context.Background(), "item1", "nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown media source id")
	}
}
