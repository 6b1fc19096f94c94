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

type itemDoc struct {
	ID          string `bson:"_id"`
	LibraryID   string `bson:"libraryId"`
	Kind        string `bson:"kind"`
	Name        string `bson:"name"`
	ReleaseYear int    `bson:"releaseYear,omitempty"`
	ParentID    string `bson:"parentId,omitempty"`
	ScanStatus  string `bson:"scanStatus"`
	CreatedAt   int64  `bson:"createdAt"`
	UpdatedAt   int64  `bson:"updatedAt"`
}

// ItemRepository is the Mongo-backed ports.ItemRepository.
type ItemRepository struct {
	collection *mongo.Collection
}

var _ ports.ItemRepository = (*ItemRepository)(nil)

func NewItemRepository(client *mongo.Client, dbName, collectionName string) *ItemRepository {
	return &ItemRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func (r *ItemRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "libraryId", Value: 1}}},
		{Keys: bson.D{{Key: "parentId", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: "text"}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *ItemRepository) Create(ctx context.Context, it domain.Item) error {
	_, err := r.collection.InsertOne(ctx, toItemDoc(it))
	if mongo.IsDuplicateKeyError(err) {
		return domain.Conflict(err)
	}
	return err
}

func (r *ItemRepository) Update(ctx context.Context, it domain.Item) error {
	doc := toItemDoc(it)
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": it.ID}, bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NotFound(nil)
	}
	return nil
}

func (r *ItemRepository) Get(ctx context.Context, id string) (domain.Item, error) {
	var doc itemDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Item{}, domain.NotFound(err)
		}
		return domain.Item{}, err
	}
	return fromItemDoc(doc), nil
}

func (r *ItemRepository) List(ctx context.Context, libraryID string) ([]domain.Item, error) {
	filter := bson.M{}
	if libraryID != "" {
		filter["libraryId"] = libraryID
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []itemDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Item, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromItemDoc(d))
	}
	return out, nil
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(nil)
	}
	return nil
}

func toItemDoc(it domain.Item) itemDoc {
	return itemDoc{
		ID:          it.ID,
		LibraryID:   it.LibraryID,
		Kind:        string(it.Kind),
		Name:        it.Name,
		ReleaseYear: it.ReleaseYear,
		ParentID:    it.ParentID,
		ScanStatus:  string(it.ScanStatus),
		CreatedAt:   unixFromTime(it.CreatedAt),
		UpdatedAt:   unixFromTime(it.UpdatedAt),
	}
}

func fromItemDoc(d itemDoc) domain.Item {
	return domain.Item{
		ID:          d.ID,
		LibraryID:   d.LibraryID,
		Kind:        domain.ItemKind(d.Kind),
		Name:        d.Name,
		ReleaseYear: d.ReleaseYear,
		ParentID:    d.ParentID,
		ScanStatus:  domain.ScanStatus(d.ScanStatus),
		CreatedAt:   timeFromUnix(d.CreatedAt),
		UpdatedAt:   timeFromUnix(d.UpdatedAt),
	}
}
