package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
)

// --- fakes -------------------------------------------------------------

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]domain.ConversionJob
}

func newFakeJobs(job domain.ConversionJob) *fakeJobs {
	return &fakeJobs{jobs: map[string]domain.ConversionJob{job.ID: job}}
}

func (f *fakeJobs) Submit(ctx context.Context, job domain.ConversionJob) error { return nil }

func (f *fakeJobs) DequeueNext(ctx context.Context, workerID string) (domain.ConversionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, j := range f.jobs {
		if j.Status == domain.JobQueued {
			j.Status = domain.JobRunning
			f.jobs[id] = j
			return j, nil
		}
	}
	return domain.ConversionJob{}, domain.NotFound(errors.New("no queued job"))
}

func (f *fakeJobs) Get(ctx context.Context, id string) (domain.ConversionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ConversionJob{}, domain.NotFound(nil)
	}
	return j, nil
}

func (f *fakeJobs) ListByItem(ctx context.Context, itemID string) ([]domain.ConversionJob, error) {
	return nil, nil
}
func (f *fakeJobs) List(ctx context.Context) ([]domain.ConversionJob, error) { return nil, nil }

func (f *fakeJobs) UpdateProgress(ctx context.Context, id string, pct, fps, bitrateKbps, speed float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.ProgressPct = pct
	f.jobs[id] = j
	return nil
}

func (f *fakeJobs) Complete(ctx context.Context, id, outputMediaFileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = domain.JobCompleted
	j.OutputMediaFileID = outputMediaFileID
	f.jobs[id] = j
	return nil
}

func (f *fakeJobs) Fail(ctx context.Context, id string, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = domain.JobFailed
	if cause != nil {
		j.Error = cause.Error()
	}
	f.jobs[id] = j
	return nil
}

func (f *fakeJobs) Requeue(ctx context.Context, id string) error { return nil }

func (f *fakeJobs) Cancel(ctx context.Context, id string) (bool, bool, error) { return false, false, nil }

func (f *fakeJobs) status(id string) domain.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Status
}

type fakeFiles struct {
	mu      sync.Mutex
	byID    map[string]domain.MediaFile
	created []domain.MediaFile
}

func newFakeFiles(mf domain.MediaFile) *fakeFiles {
	return &fakeFiles{byID: map[string]domain.MediaFile{mf.ID: mf}}
}

func (f *fakeFiles) Create(ctx context.Context, mf domain.MediaFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[mf.ID] = mf
	f.created = append(f.created, mf)
	return nil
}
func (f *fakeFiles) Update(ctx context.Context, mf domain.MediaFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[mf.ID] = mf
	return nil
}
func (f *fakeFiles) Get(ctx context.Context, id string) (domain.MediaFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mf, ok := f.byID[id]
	if !ok {
		return domain.MediaFile{}, domain.NotFound(nil)
	}
	return mf, nil
}
func (f *fakeFiles) ListByItem(ctx context.Context, itemID string) ([]domain.MediaFile, error) {
	return nil, nil
}
func (f *fakeFiles) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeFiles) SetHLSPrepared(ctx context.Context, id string, blob []byte) error { return nil }

type fakeCache struct {
	calls []string
	err   error
}

func (c *fakeCache) GetOrBuild(ctx context.Context, mediaFileID string) (*domain.PreparedMedia, error) {
	c.calls = append(c.calls, mediaFileID)
	if c.err != nil {
		return nil, c.err
	}
	return &domain.PreparedMedia{}, nil
}
func (c *fakeCache) Evict(mediaFileID string) {}
func (c *fakeCache) Len() int                 { return 0 }

type fakeBus struct {
	mu     sync.Mutex
	events []ports.Event
}

func (b *fakeBus) Publish(evt ports.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}
func (b *fakeBus) Subscribe(bufferSize int) ports.Subscription { return nil }

func (b *fakeBus) has(category ports.EventCategory, match func(any) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.Category == category && match(e.Payload) {
			return true
		}
	}
	return false
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []ports.ConversionNotification
}

func (n *fakeNotifier) Notify(ctx context.Context, notification ports.ConversionNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification)
}

// writeScript writes an executable shell script standing in for the
// external encoder, writing ffmpeg-style progress lines to stdout (its
// only fd 1, matching `-progress pipe:1`) before exiting with exitCode.
func writeScript(t *testing.T, dir string, lines []string, exitCode int) string {
	t.Helper()
	path := filepath.Join(dir, "fake-encoder.sh")
	script := "#!/bin/sh\n"
	for _, l := range lines {
		script += "echo '" + l + "'\n"
	}
	script += "exit " + itoa(exitCode) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

// --- tests ---------------------------------------------------------------

func TestProcessJobSuccessPathCompletesAndPublishes(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.mkv")
	if err := os.WriteFile(sourcePath, []byte("fake"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outputPath := filepath.Join(dir, "source-pb.mp4")

	source := domain.MediaFile{ID: "src1", ItemID: "item1", Path: sourcePath, DurationSecs: 100, Width: 1920, Height: 1080}
	job := domain.ConversionJob{ID: "job1", ItemID: "item1", SourceMediaFileID: "src1", Status: domain.JobQueued, SubmittedAt: time.Now()}

	jobs := newFakeJobs(job)
	files := newFakeFiles(source)
	cache := &fakeCache{}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}

	encoder := writeScript(t, dir, []string{
		"out_time_us=50000000",
		"speed=1.0x",
		"progress=continue",
		"progress=end",
	}, 0)

	w := New(jobs, files, cache, bus, notifier, Config{EncoderPath: encoder}, nil)

	claimed, err := jobs.DequeueNext(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("DequeueNext: %v", err)
	}

	// The fake encoder doesn't actually write outputPath; create it so
	// os.Stat in finish() succeeds, mirroring a real encoder's output file.
	if err := os.WriteFile(outputPath, []byte("fake-output"), 0o644); err != nil {
		t.Fatalf("WriteFile output: %v", err)
	}

	w.processJob(context.Background(), claimed)

	if got := jobs.status("job1"); got != domain.JobCompleted {
		t.Fatalf("job status = %v, want completed", got)
	}
	if len(files.created) != 1 {
		t.Fatalf("expected 1 output MediaFile created, got %d", len(files.created))
	}
	out := files.created[0]
	if out.Profile != domain.ProfileB || !out.ServesAsUniversal || out.SourceMediaFileID != "src1" {
		t.Errorf("output MediaFile mismatch: %+v", out)
	}
	if len(cache.calls) != 1 || cache.calls[0] != out.ID {
		t.Errorf("expected cache populated for %q, got calls %v", out.ID, cache.calls)
	}
	if !bus.has(ports.CategoryJob, func(p any) bool {
		_, ok := p.(ports.JobCompleted)
		return ok
	}) {
		t.Error("expected JobCompleted event published")
	}
	if len(notifier.calls) != 1 || !notifier.calls[0].Succeeded {
		t.Errorf("expected one successful notification, got %+v", notifier.calls)
	}
}

func TestProcessJobEncoderFailureMarksJobFailed(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.mkv")
	if err := os.WriteFile(sourcePath, []byte("fake"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	source := domain.MediaFile{ID: "src1", ItemID: "item1", Path: sourcePath, DurationSecs: 100}
	job := domain.ConversionJob{ID: "job1", ItemID: "item1", SourceMediaFileID: "src1", Status: domain.JobQueued, SubmittedAt: time.Now()}

	jobs := newFakeJobs(job)
	files := newFakeFiles(source)
	cache := &fakeCache{}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}

	encoder := writeScript(t, dir, []string{"progress=continue"}, 1)
	w := New(jobs, files, cache, bus, notifier, Config{EncoderPath: encoder}, nil)

	claimed, err := jobs.DequeueNext(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("DequeueNext: %v", err)
	}
	w.processJob(context.Background(), claimed)

	if got := jobs.status("job1"); got != domain.JobFailed {
		t.Fatalf("job status = %v, want failed", got)
	}
	if len(files.created) != 0 {
		t.Errorf("expected no output MediaFile on failure, got %d", len(files.created))
	}
	if !bus.has(ports.CategoryJob, func(p any) bool {
		_, ok := p.(ports.JobFailed)
		return ok
	}) {
		t.Error("expected JobFailed event published")
	}
	if len(notifier.calls) != 1 || notifier.calls[0].Succeeded {
		t.Errorf("expected one failure notification, got %+v", notifier.calls)
	}
}

func TestProcessJobCacheBuildFailureDemotesAndFails(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.mkv")
	if err := os.WriteFile(sourcePath, []byte("fake"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outputPath := filepath.Join(dir, "source-pb.mp4")

	source := domain.MediaFile{ID: "src1", ItemID: "item1", Path: sourcePath, DurationSecs: 100}
	job := domain.ConversionJob{ID: "job1", ItemID: "item1", SourceMediaFileID: "src1", Status: domain.JobQueued, SubmittedAt: time.Now()}

	jobs := newFakeJobs(job)
	files := newFakeFiles(source)
	cache := &fakeCache{err: errors.New("moov reparse failed")}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}

	encoder := writeScript(t, dir, []string{
		"out_time_us=50000000",
		"speed=1.0x",
		"progress=continue",
		"progress=end",
	}, 0)

	w := New(jobs, files, cache, bus, notifier, Config{EncoderPath: encoder}, nil)

	claimed, err := jobs.DequeueNext(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("DequeueNext: %v", err)
	}
	if err := os.WriteFile(outputPath, []byte("fake-output"), 0o644); err != nil {
		t.Fatalf("WriteFile output: %v", err)
	}

	w.processJob(context.Background(), claimed)

	if got := jobs.status("job1"); got != domain.JobFailed {
		t.Fatalf("job status = %v, want failed", got)
	}
	if len(files.created) != 1 {
		t.Fatalf("expected output MediaFile to still be created, got %d", len(files.created))
	}
	out := files.created[0]
	stored, err := files.Get(context.Background(), out.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Profile != domain.ProfileC || stored.CanBeProfileB || stored.ServesAsUniversal {
		t.Errorf("expected output MediaFile demoted to profile C, got %+v", stored)
	}
	if !bus.has(ports.CategoryJob, func(p any) bool {
		_, ok := p.(ports.JobFailed)
		return ok
	}) {
		t.Error("expected JobFailed event published")
	}
	if len(notifier.calls) != 1 || notifier.calls[0].Succeeded {
		t.Errorf("expected one failure notification, got %+v", notifier.calls)
	}
}
