package domain

import "time"

// UserItemData is one user's playback bookkeeping for one Item. Position is
// expressed in 100-ns ticks for compatibility with upstream (Jellyfin/Emby)
// clients.
type UserItemData struct {
	UserID                 string     `json:"userId" bson:"userId"`
	ItemID                 string     `json:"itemId" bson:"itemId"`
	PlayCount              int        `json:"playCount" bson:"playCount"`
	PlaybackPositionTicks  int64      `json:"playbackPositionTicks" bson:"playbackPositionTicks"`
	Played                 bool       `json:"played" bson:"played"`
	IsFavorite             bool       `json:"isFavorite" bson:"isFavorite"`
	LastPlayedAt           *time.Time `json:"lastPlayedAt,omitempty" bson:"lastPlayedAt,omitempty"`
}

// TicksPerSecond is the tick resolution used by PlaybackPositionTicks.
const TicksPerSecond int64 = 10_000_000

func SecondsToTicks(s float64) int64 { return int64(s * float64(TicksPerSecond)) }
func TicksToSeconds(t int64) float64 { return float64(t) / float64(TicksPerSecond) }
