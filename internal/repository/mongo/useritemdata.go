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

type userItemDataDoc struct {
	UserID                string `bson:"userId"`
	ItemID                string `bson:"itemId"`
	PlayCount             int    `bson:"playCount"`
	PlaybackPositionTicks int64  `bson:"playbackPositionTicks"`
	Played                bool   `bson:"played"`
	IsFavorite            bool   `bson:"isFavorite"`
	LastPlayedAt          int64  `bson:"lastPlayedAt,omitempty"`
}

// UserItemDataRepository is the Mongo-backed ports.UserItemDataRepository.
// Documents are keyed on the (userId, itemId) pair rather than a synthetic
// id, enforced with a unique compound index and exploited by Upsert.
type UserItemDataRepository struct {
	collection *mongo.Collection
}

var _ ports.UserItemDataRepository = (*UserItemDataRepository)(nil)

func NewUserItemDataRepository(client *mongo.Client, dbName, collectionName string) *UserItemDataRepository {
	return &UserItemDataRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func (r *UserItemDataRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "itemId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *UserItemDataRepository) Get(ctx context.Context, userID, itemID string) (domain.UserItemData, error) {
	var doc userItemDataDoc
	filter := bson.M{"userId": userID, "itemId": itemID}
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.UserItemData{}, domain.NotFound(err)
		}
		return domain.UserItemData{}, err
	}
	return fromUserItemDataDoc(doc), nil
}

func (r *UserItemDataRepository) Upsert(ctx context.Context, d domain.UserItemData) error {
	filter := bson.M{"userId": d.UserID, "itemId": d.ItemID}
	update := bson.M{"$set": toUserItemDataDoc(d)}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func toUserItemDataDoc(d domain.UserItemData) userItemDataDoc {
	return userItemDataDoc{
		UserID:                d.UserID,
		ItemID:                d.ItemID,
		PlayCount:             d.PlayCount,
		PlaybackPositionTicks: d.PlaybackPositionTicks,
		Played:                d.Played,
		IsFavorite:            d.IsFavorite,
		LastPlayedAt:          unixFromTimePtr(d.LastPlayedAt),
	}
}

func fromUserItemDataDoc(doc userItemDataDoc) domain.UserItemData {
	return domain.UserItemData{
		UserID:                doc.UserID,
		ItemID:                doc.ItemID,
		PlayCount:             doc.PlayCount,
		PlaybackPositionTicks: doc.PlaybackPositionTicks,
		Played:                doc.Played,
		IsFavorite:            doc.IsFavorite,
		LastPlayedAt:          timePtrFromUnix(doc.LastPlayedAt),
	}
}
