package domain

import "time"

type ItemKind string

const (
	ItemMovie   ItemKind = "movie"
	ItemSeries  ItemKind = "series"
	ItemSeason  ItemKind = "season"
	ItemEpisode ItemKind = "episode"
	ItemAudio   ItemKind = "audio"
)

type ScanStatus string

const (
	ScanPending ScanStatus = "pending"
	ScanScanned ScanStatus = "scanned"
	ScanFailed  ScanStatus = "failed"
)

// Item is a logical work: a movie, a series, a season, an episode, or an
// audio track. Hierarchical works (series -> season -> episode) are linked
// via ParentID.
type Item struct {
	ID          string     `json:"id" bson:"_id"`
	LibraryID   string     `json:"libraryId" bson:"libraryId"`
	Kind        ItemKind   `json:"kind" bson:"kind"`
	Name        string     `json:"name" bson:"name"`
	ReleaseYear int        `json:"releaseYear,omitempty" bson:"releaseYear,omitempty"`
	ParentID    string     `json:"parentId,omitempty" bson:"parentId,omitempty"`
	ScanStatus  ScanStatus `json:"scanStatus" bson:"scanStatus"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
}
