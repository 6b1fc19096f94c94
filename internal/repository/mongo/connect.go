// Package mongo holds the MongoDB-backed ports.LibraryRepository,
// ports.ItemRepository, ports.MediaFileRepository, and
// ports.UserItemDataRepository implementations. internal/jobstore is the
// fifth Mongo-backed repository (the Job Store, §4.9) and lives in its own
// package since its atomic claim/cancel semantics make it a distinct
// concern from these CRUD-shaped entity stores.
package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect dials client-side only; it does not verify the server is
// reachable (callers should Ping if they need that guarantee before
// serving traffic).
func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}
