package jobstore

import (
	"testing"
	"time"

	"mediavault/internal/domain"
)

func TestToDocFromDocRoundtrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	started := now.Add(time.Second)
	job := domain.ConversionJob{
		ID:                "job1",
		ItemID:            "item1",
		SourceMediaFileID: "mf1",
		Status:            domain.JobRunning,
		Retries:           2,
		WorkerID:          "worker-a",
		SubmittedAt:       now,
		StartedAt:         &started,
		UpdatedAt:         now,
		ProgressPct:       0.42,
		FPS:               24.0,
		BitrateKbps:       4500,
		Speed:             1.1,
		TotalSize:         123456,
	}

	doc := toDoc(job)
	got := fromDoc(doc)

	if got.ID != job.ID || got.ItemID != job.ItemID || got.SourceMediaFileID != job.SourceMediaFileID {
		t.Fatalf("identity fields mismatch: got %+v", got)
	}
	if got.Status != job.Status || got.Retries != job.Retries || got.WorkerID != job.WorkerID {
		t.Fatalf("status fields mismatch: got %+v", got)
	}
	if got.ProgressPct != job.ProgressPct || got.FPS != job.FPS || got.BitrateKbps != job.BitrateKbps || got.Speed != job.Speed {
		t.Fatalf("progress fields mismatch: got %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(*job.StartedAt) {
		t.Fatalf("StartedAt mismatch: got %v", got.StartedAt)
	}
	if got.FinishedAt != nil {
		t.Fatalf("expected nil FinishedAt, got %v", got.FinishedAt)
	}
}

func TestToDocOmitsNilStartedAt(t *testing.T) {
	job := domain.ConversionJob{ID: "j", Status: domain.JobQueued}
	doc := toDoc(job)
	if doc.StartedAt != nil {
		t.Fatalf("expected nil StartedAt, got %v", doc.StartedAt)
	}
	got := fromDoc(doc)
	if got.StartedAt != nil {
		t.Fatalf("expected nil StartedAt roundtrip, got %v", got.StartedAt)
	}
}

func TestFromDocPreservesTerminalStatus(t *testing.T) {
	doc := jobDoc{ID: "j", Status: string(domain.JobCompleted), OutputMediaFileID: "out1"}
	got := fromDoc(doc)
	if !got.Status.Terminal() {
		t.Fatalf("expected terminal status, got %v", got.Status)
	}
	if got.OutputMediaFileID != "out1" {
		t.Fatalf("OutputMediaFileID mismatch: got %q", got.OutputMediaFileID)
	}
}

func TestRetryBackoffCapsAt300(t *testing.T) {
	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{10, 300 * time.Second},
		{20, 300 * time.Second},
	}
	for _, tt := range tests {
		if got := domain.RetryBackoff(tt.retries); got != tt.want {
			t.Errorf("RetryBackoff(%d) = %v, want %v", tt.retries, got, tt.want)
		}
	}
}
