package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
)

type mediaFileDoc struct {
	ID        string `bson:"_id"`
	ItemID    string `bson:"itemId"`
	Path      string `bson:"path"`
	Container string `bson:"container"`
	SizeBytes int64  `bson:"sizeBytes"`

	VideoCodec string `bson:"videoCodec"`
	AudioCodec string `bson:"audioCodec"`

	Width              int     `bson:"width"`
	Height             int     `bson:"height"`
	DurationSecs       float64 `bson:"durationSecs"`
	HDR                bool    `bson:"hdr"`
	DolbyVisionProfile int     `bson:"dolbyVisionProfile,omitempty"`

	Profile           string `bson:"profile"`
	CanBeProfileA     bool   `bson:"canBeProfileA"`
	CanBeProfileB     bool   `bson:"canBeProfileB"`
	ServesAsUniversal bool   `bson:"servesAsUniversal"`

	HasFaststart         bool    `bson:"hasFaststart"`
	KeyframeIntervalSecs float64 `bson:"keyframeIntervalSecs"`

	HLSPrepared []byte `bson:"hlsPrepared,omitempty"`

	SourceMediaFileID string `bson:"sourceMediaFileId,omitempty"`

	CreatedAt int64 `bson:"createdAt"`
	UpdatedAt int64 `bson:"updatedAt"`
}

// MediaFileRepository is the Mongo-backed ports.MediaFileRepository. It is
// also where the preparation cache's persisted tier reads/writes the
// hls_prepared blob (see internal/prepcache), via SetHLSPrepared's
// independent $set so a concurrent metadata Update can never clobber it.
type MediaFileRepository struct {
	collection *mongo.Collection
}

var _ ports.MediaFileRepository = (*MediaFileRepository)(nil)

func NewMediaFileRepository(client *mongo.Client, dbName, collectionName string) *MediaFileRepository {
	return &MediaFileRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func (r *MediaFileRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "itemId", Value: 1}}},
		{Keys: bson.D{{Key: "sourceMediaFileId", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *MediaFileRepository) Create(ctx context.Context, mf domain.MediaFile) error {
	_, err := r.collection.InsertOne(ctx, toMediaFileDoc(mf))
	if mongo.IsDuplicateKeyError(err) {
		return domain.Conflict(err)
	}
	return err
}

func (r *MediaFileRepository) Update(ctx context.Context, mf domain.MediaFile) error {
	doc := toMediaFileDoc(mf)
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": mf.ID}, bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NotFound(nil)
	}
	return nil
}

func (r *MediaFileRepository) Get(ctx context.Context, id string) (domain.MediaFile, error) {
	var doc mediaFileDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.MediaFile{}, domain.NotFound(err)
		}
		return domain.MediaFile{}, err
	}
	return fromMediaFileDoc(doc), nil
}

func (r *MediaFileRepository) ListByItem(ctx context.Context, itemID string) ([]domain.MediaFile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"itemId": itemID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mediaFileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.MediaFile, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromMediaFileDoc(d))
	}
	return out, nil
}

func (r *MediaFileRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(nil)
	}
	return nil
}

// SetHLSPrepared persists blob independently of the rest of the document,
// so a concurrent metadata Update cannot race with a cache-builder publish
// (spec.md §4.5 step 4).
func (r *MediaFileRepository) SetHLSPrepared(ctx context.Context, id string, blob []byte) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"hlsPrepared": blob}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NotFound(nil)
	}
	return nil
}

func toMediaFileDoc(mf domain.MediaFile) mediaFileDoc {
	return mediaFileDoc{
		ID:                   mf.ID,
		ItemID:               mf.ItemID,
		Path:                 mf.Path,
		Container:            mf.Container,
		SizeBytes:            mf.SizeBytes,
		VideoCodec:           mf.VideoCodec,
		AudioCodec:           mf.AudioCodec,
		Width:                mf.Width,
		Height:               mf.Height,
		DurationSecs:         mf.DurationSecs,
		HDR:                  mf.HDR,
		DolbyVisionProfile:   mf.DolbyVisionProfile,
		Profile:              string(mf.Profile),
		CanBeProfileA:        mf.CanBeProfileA,
		CanBeProfileB:        mf.CanBeProfileB,
		ServesAsUniversal:    mf.ServesAsUniversal,
		HasFaststart:         mf.HasFaststart,
		KeyframeIntervalSecs: mf.KeyframeIntervalSecs,
		HLSPrepared:          mf.HLSPrepared,
		SourceMediaFileID:    mf.SourceMediaFileID,
		CreatedAt:            unixFromTime(mf.CreatedAt),
		UpdatedAt:            unixFromTime(mf.UpdatedAt),
	}
}

func fromMediaFileDoc(d mediaFileDoc) domain.MediaFile {
	return domain.MediaFile{
		ID:                   d.ID,
		ItemID:               d.ItemID,
		Path:                 d.Path,
		Container:            d.Container,
		SizeBytes:            d.SizeBytes,
		VideoCodec:           d.VideoCodec,
		AudioCodec:           d.AudioCodec,
		Width:                d.Width,
		Height:               d.Height,
		DurationSecs:         d.DurationSecs,
		HDR:                  d.HDR,
		DolbyVisionProfile:   d.DolbyVisionProfile,
		Profile:              domain.Profile(d.Profile),
		CanBeProfileA:        d.CanBeProfileA,
		CanBeProfileB:        d.CanBeProfileB,
		ServesAsUniversal:    d.ServesAsUniversal,
		HasFaststart:         d.HasFaststart,
		KeyframeIntervalSecs: d.KeyframeIntervalSecs,
		HLSPrepared:          d.HLSPrepared,
		SourceMediaFileID:    d.SourceMediaFileID,
		CreatedAt:            timeFromUnix(d.CreatedAt),
		UpdatedAt:            timeFromUnix(d.UpdatedAt),
	}
}
