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

type libraryDoc struct {
	ID        string   `bson:"_id"`
	Name      string   `bson:"name"`
	Type      string   `bson:"type"`
	Roots     []string `bson:"roots"`
	CreatedAt int64    `bson:"createdAt"`
	UpdatedAt int64    `bson:"updatedAt"`
}

// LibraryRepository is the Mongo-backed ports.LibraryRepository.
type LibraryRepository struct {
	collection *mongo.Collection
}

var _ ports.LibraryRepository = (*LibraryRepository)(nil)

func NewLibraryRepository(client *mongo.Client, dbName, collectionName string) *LibraryRepository {
	return &LibraryRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func (r *LibraryRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: "text"}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *LibraryRepository) Create(ctx context.Context, l domain.Library) error {
	_, err := r.collection.InsertOne(ctx, toLibraryDoc(l))
	if mongo.IsDuplicateKeyError(err) {
		return domain.Conflict(err)
	}
	return err
}

func (r *LibraryRepository) Get(ctx context.Context, id string) (domain.Library, error) {
	var doc libraryDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Library{}, domain.NotFound(err)
		}
		return domain.Library{}, err
	}
	return fromLibraryDoc(doc), nil
}

func (r *LibraryRepository) List(ctx context.Context) ([]domain.Library, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []libraryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Library, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromLibraryDoc(d))
	}
	return out, nil
}

func (r *LibraryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(nil)
	}
	return nil
}

func toLibraryDoc(l domain.Library) libraryDoc {
	return libraryDoc{
		ID:        l.ID,
		Name:      l.Name,
		Type:      string(l.Type),
		Roots:     l.Roots,
		CreatedAt: unixFromTime(l.CreatedAt),
		UpdatedAt: unixFromTime(l.UpdatedAt),
	}
}

func fromLibraryDoc(d libraryDoc) domain.Library {
	return domain.Library{
		ID:        d.ID,
		Name:      d.Name,
		Type:      domain.LibraryType(d.Type),
		Roots:     d.Roots,
		CreatedAt: timeFromUnix(d.CreatedAt),
		UpdatedAt: timeFromUnix(d.UpdatedAt),
	}
}
