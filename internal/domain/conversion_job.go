package domain

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// ConversionJob tracks one Profile-B (or Dolby-Vision 7->8) conversion
// request from submission through completion. Only one non-terminal job may
// exist per item at a time; submitting a second cancels the first.
type ConversionJob struct {
	ID                 string    `json:"id" bson:"_id"`
	ItemID             string    `json:"itemId" bson:"itemId"`
	SourceMediaFileID  string    `json:"sourceMediaFileId" bson:"sourceMediaFileId"`
	Status             JobStatus `json:"status" bson:"status"`
	Retries            int       `json:"retries" bson:"retries"`
	WorkerID           string    `json:"workerId,omitempty" bson:"workerId,omitempty"`

	SubmittedAt time.Time  `json:"submittedAt" bson:"submittedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`

	ProgressPct float64 `json:"progressPct" bson:"progressPct"`
	FPS         float64 `json:"fps,omitempty" bson:"fps,omitempty"`
	BitrateKbps float64 `json:"bitrateKbps,omitempty" bson:"bitrateKbps,omitempty"`
	Speed       float64 `json:"speed,omitempty" bson:"speed,omitempty"`
	TotalSize   int64   `json:"totalSize,omitempty" bson:"totalSize,omitempty"`

	Error             string `json:"error,omitempty" bson:"error,omitempty"`
	OutputMediaFileID string `json:"outputMediaFileId,omitempty" bson:"outputMediaFileId,omitempty"`
}

// RetryBackoff is the exponential backoff applied before a failed job is
// re-queued: min(2^retries, 300) seconds.
func RetryBackoff(retries int) time.Duration {
	secs := 1 << retries
	if secs > 300 || secs <= 0 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

// ConversionConfig parameterises the external encoder invocation.
type ConversionConfig struct {
	CRF          int
	Preset       string
	AudioBitrate string
	AdaptiveCRF  bool
}
