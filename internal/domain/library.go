package domain

import "time"

type LibraryType string

const (
	LibraryMovies LibraryType = "movies"
	LibrarySeries LibraryType = "series"
	LibraryMusic  LibraryType = "music"
)

// Library is a named collection of filesystem roots scanned for a single
// media type. Items are scoped to exactly one library.
type Library struct {
	ID        string      `json:"id" bson:"_id"`
	Name      string      `json:"name" bson:"name"`
	Type      LibraryType `json:"type" bson:"type"`
	Roots     []string    `json:"roots" bson:"roots"`
	CreatedAt time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt" bson:"updatedAt"`
}
