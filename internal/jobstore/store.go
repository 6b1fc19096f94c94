// Package jobstore is the Job Store (spec.md §4.9): a persistent queue of
// conversion jobs backed by MongoDB, with atomic dequeue-locking, progress
// tracking, retry, and cancellation.
package jobstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediavault/internal/domain"
	"mediavault/internal/metrics"
)

// Store implements ports.ConversionJobRepository atop a single Mongo
// collection, following the teacher's Repository{collection} shape.
type Store struct {
	collection *mongo.Collection
}

func New(client *mongo.Client, dbName, collectionName string) *Store {
	return &Store{collection: client.Database(dbName).Collection(collectionName)}
}

type jobDoc struct {
	ID                string     `bson:"_id"`
	ItemID            string     `bson:"itemId"`
	SourceMediaFileID string     `bson:"sourceMediaFileId"`
	Status            string     `bson:"status"`
	Retries           int        `bson:"retries"`
	WorkerID          string     `bson:"workerId,omitempty"`
	SubmittedAt       time.Time  `bson:"submittedAt"`
	StartedAt         *time.Time `bson:"startedAt,omitempty"`
	FinishedAt        *time.Time `bson:"finishedAt,omitempty"`
	UpdatedAt         time.Time  `bson:"updatedAt"`
	ProgressPct       float64    `bson:"progressPct"`
	FPS               float64    `bson:"fps,omitempty"`
	BitrateKbps       float64    `bson:"bitrateKbps,omitempty"`
	Speed             float64    `bson:"speed,omitempty"`
	TotalSize         int64      `bson:"totalSize,omitempty"`
	Error             string     `bson:"error,omitempty"`
	OutputMediaFileID string     `bson:"outputMediaFileId,omitempty"`
}

// EnsureIndexes creates the three indices spec.md §4.9 names: by status, by
// item_id, and the compound (status, updated_at) work-stealing index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if s == nil || s.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "itemId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Submit inserts job as queued. Per spec.md §4.9's one-non-terminal-job-per-item
// invariant, any existing queued/running job for the same item is cancelled
// first.
func (s *Store) Submit(ctx context.Context, job domain.ConversionJob) error {
	_, err := s.collection.UpdateMany(ctx,
		bson.M{"itemId": job.ItemID, "status": bson.M{"$in": []string{string(domain.JobQueued), string(domain.JobRunning)}}},
		bson.M{"$set": bson.M{"status": string(domain.JobCancelled), "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return domain.IOErr(err)
	}

	doc := toDoc(job)
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Conflict(err)
		}
		return domain.IOErr(err)
	}
	metrics.JobsSubmittedTotal.Inc()
	metrics.JobQueueDepth.Inc()
	return nil
}

// DequeueNext atomically claims the oldest queued job for workerID, matching
// spec.md §4.9's single-statement UPDATE...RETURNING pattern via
// FindOneAndUpdate with a sort, which gives exclusive claim without a
// separate lock.
func (s *Store) DequeueNext(ctx context.Context, workerID string) (domain.ConversionJob, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "submittedAt", Value: 1}}).
		SetReturnDocument(options.After)

	var doc jobDoc
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"status": string(domain.JobQueued)},
		bson.M{"$set": bson.M{
			"status":    string(domain.JobRunning),
			"workerId":  workerID,
			"startedAt": now,
			"updatedAt": now,
		}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ConversionJob{}, domain.NotFound(err)
		}
		return domain.ConversionJob{}, domain.IOErr(err)
	}
	metrics.JobQueueDepth.Dec()
	return fromDoc(doc), nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.ConversionJob, error) {
	var doc jobDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ConversionJob{}, domain.NotFound(err)
		}
		return domain.ConversionJob{}, domain.IOErr(err)
	}
	return fromDoc(doc), nil
}

func (s *Store) ListByItem(ctx context.Context, itemID string) ([]domain.ConversionJob, error) {
	return s.list(ctx, bson.M{"itemId": itemID})
}

func (s *Store) List(ctx context.Context) ([]domain.ConversionJob, error) {
	return s.list(ctx, bson.M{})
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]domain.ConversionJob, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.IOErr(err)
	}
	defer cursor.Close(ctx)

	var docs []jobDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.IOErr(err)
	}
	jobs := make([]domain.ConversionJob, 0, len(docs))
	for _, d := range docs {
		jobs = append(jobs, fromDoc(d))
	}
	return jobs, nil
}

// UpdateProgress persists the conversion worker's latest progress tick. Per
// spec.md §4.10 step 4, the caller is expected to only invoke this when the
// integer percent has changed, so this method itself does no debouncing.
func (s *Store) UpdateProgress(ctx context.Context, id string, pct, fps, bitrateKbps, speed float64) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.JobRunning)},
		bson.M{"$set": bson.M{
			"progressPct": pct,
			"fps":         fps,
			"bitrateKbps": bitrateKbps,
			"speed":       speed,
			"updatedAt":   time.Now().UTC(),
		}},
	)
	if err != nil {
		return domain.IOErr(err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFound(nil)
	}
	return nil
}

// Complete marks id completed and links the output file, only if it is
// currently running (a cancelled-while-running job must not be able to
// complete after the fact).
func (s *Store) Complete(ctx context.Context, id, outputMediaFileID string) error {
	now := time.Now().UTC()
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.JobRunning)},
		bson.M{"$set": bson.M{
			"status":            string(domain.JobCompleted),
			"progressPct":       1.0,
			"outputMediaFileId": outputMediaFileID,
			"finishedAt":        now,
			"updatedAt":         now,
		}},
	)
	if err != nil {
		return domain.IOErr(err)
	}
	if res.MatchedCount == 0 {
		return domain.Conflict(errors.New("job is no longer running"))
	}
	metrics.JobsCompletedTotal.Inc()
	return nil
}

func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	now := time.Now().UTC()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.JobRunning)},
		bson.M{"$set": bson.M{
			"status":     string(domain.JobFailed),
			"error":      msg,
			"finishedAt": now,
			"updatedAt":  now,
		}},
	)
	if err != nil {
		return domain.IOErr(err)
	}
	if res.MatchedCount == 0 {
		return domain.Conflict(errors.New("job is no longer running"))
	}
	metrics.JobsFailedTotal.Inc()
	return nil
}

// Requeue sets a failed job back to queued with retries+=1, for callers that
// have already waited out domain.RetryBackoff.
func (s *Store) Requeue(ctx context.Context, id string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.JobFailed)},
		bson.M{
			"$set": bson.M{
				"status":      string(domain.JobQueued),
				"progressPct": 0.0,
				"workerId":    "",
				"startedAt":   nil,
				"finishedAt":  nil,
				"updatedAt":   time.Now().UTC(),
			},
			"$inc": bson.M{"retries": 1},
		},
	)
	if err != nil {
		return domain.IOErr(err)
	}
	if res.MatchedCount == 0 {
		return domain.Conflict(errors.New("job is not in a failed state"))
	}
	metrics.JobsRetriedTotal.Inc()
	metrics.JobQueueDepth.Inc()
	return nil
}

// Cancel atomically flips status to cancelled iff it is currently queued or
// running, reporting whether it was running so the caller can fire the
// in-process cancellation token (spec.md §4.9/§4.10).
func (s *Store) Cancel(ctx context.Context, id string) (cancelled bool, wasRunning bool, err error) {
	var doc jobDoc
	now := time.Now().UTC()
	findErr := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []string{string(domain.JobQueued), string(domain.JobRunning)}}},
		bson.M{"$set": bson.M{
			"status":     string(domain.JobCancelled),
			"finishedAt": now,
			"updatedAt":  now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&doc)
	if findErr != nil {
		if errors.Is(findErr, mongo.ErrNoDocuments) {
			return false, false, nil
		}
		return false, false, domain.IOErr(findErr)
	}
	metrics.JobsCancelledTotal.Inc()
	if doc.Status == string(domain.JobQueued) {
		metrics.JobQueueDepth.Dec()
	}
	return true, doc.Status == string(domain.JobRunning), nil
}

func toDoc(j domain.ConversionJob) jobDoc {
	return jobDoc{
		ID:                j.ID,
		ItemID:            j.ItemID,
		SourceMediaFileID: j.SourceMediaFileID,
		Status:            string(j.Status),
		Retries:           j.Retries,
		WorkerID:          j.WorkerID,
		SubmittedAt:       j.SubmittedAt,
		StartedAt:         j.StartedAt,
		FinishedAt:        j.FinishedAt,
		UpdatedAt:         j.UpdatedAt,
		ProgressPct:       j.ProgressPct,
		FPS:               j.FPS,
		BitrateKbps:       j.BitrateKbps,
		Speed:             j.Speed,
		TotalSize:         j.TotalSize,
		Error:             j.Error,
		OutputMediaFileID: j.OutputMediaFileID,
	}
}

func fromDoc(d jobDoc) domain.ConversionJob {
	return domain.ConversionJob{
		ID:                d.ID,
		ItemID:            d.ItemID,
		SourceMediaFileID: d.SourceMediaFileID,
		Status:            domain.JobStatus(d.Status),
		Retries:           d.Retries,
		WorkerID:          d.WorkerID,
		SubmittedAt:       d.SubmittedAt,
		StartedAt:         d.StartedAt,
		FinishedAt:        d.FinishedAt,
		UpdatedAt:         d.UpdatedAt,
		ProgressPct:       d.ProgressPct,
		FPS:               d.FPS,
		BitrateKbps:       d.BitrateKbps,
		Speed:             d.Speed,
		TotalSize:         d.TotalSize,
		Error:             d.Error,
		OutputMediaFileID: d.OutputMediaFileID,
	}
}
