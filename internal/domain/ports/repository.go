package ports

import (
	"context"

	"mediavault/internal/domain"
)

type LibraryRepository interface {
	Create(ctx context.Context, l domain.Library) error
	Get(ctx context.Context, id string) (domain.Library, error)
	List(ctx context.Context) ([]domain.Library, error)
	Delete(ctx context.Context, id string) error
}

type ItemRepository interface {
	Create(ctx context.Context, it domain.Item) error
	Update(ctx context.Context, it domain.Item) error
	Get(ctx context.Context, id string) (domain.Item, error)
	List(ctx context.Context, libraryID string) ([]domain.Item, error)
	Delete(ctx context.Context, id string) error
}

// MediaFileRepository is also where the Preparation Cache's persisted tier
// reads/writes the hls_prepared blob column (see internal/prepcache).
type MediaFileRepository interface {
	Create(ctx context.Context, mf domain.MediaFile) error
	Update(ctx context.Context, mf domain.MediaFile) error
	Get(ctx context.Context, id string) (domain.MediaFile, error)
	ListByItem(ctx context.Context, itemID string) ([]domain.MediaFile, error)
	Delete(ctx context.Context, id string) error

	// SetHLSPrepared persists the serialised PreparedMedia blob for id,
	// independent of the rest of the document, so a concurrent metadata
	// update cannot race with a cache-builder publish.
	SetHLSPrepared(ctx context.Context, id string, blob []byte) error
}

type UserItemDataRepository interface {
	Get(ctx context.Context, userID, itemID string) (domain.UserItemData, error)
	Upsert(ctx context.Context, d domain.UserItemData) error
}

// ConversionJobRepository is the Job Store port (spec.md §4.9): all
// mutation methods are required to be atomic at the storage layer.
type ConversionJobRepository interface {
	Submit(ctx context.Context, job domain.ConversionJob) error
	// DequeueNext atomically claims the oldest queued job for workerID, or
	// returns a domain.KindNotFound error if none is queued.
	DequeueNext(ctx context.Context, workerID string) (domain.ConversionJob, error)
	Get(ctx context.Context, id string) (domain.ConversionJob, error)
	ListByItem(ctx context.Context, itemID string) ([]domain.ConversionJob, error)
	List(ctx context.Context) ([]domain.ConversionJob, error)
	UpdateProgress(ctx context.Context, id string, pct, fps, bitrateKbps, speed float64) error
	Complete(ctx context.Context, id, outputMediaFileID string) error
	Fail(ctx context.Context, id string, cause error) error
	// Requeue sets the job back to queued with retries+=1, for callers that
	// have already waited out domain.RetryBackoff.
	Requeue(ctx context.Context, id string) error
	// Cancel atomically flips status to cancelled iff it is currently
	// queued or running, reporting whether it did so.
	Cancel(ctx context.Context, id string) (cancelled bool, wasRunning bool, err error)
}
