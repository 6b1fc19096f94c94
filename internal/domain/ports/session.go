package ports

import (
	"context"

	"mediavault/internal/domain"
)

// SessionManager is the §4.12 contract: in-memory player sessions, reaped
// by a janitor after 60s of silence.
type SessionManager interface {
	Start(itemID, mediaFileID string, route domain.Route) *domain.Session
	Progress(sessionID string, positionTicks int64) error
	Stop(sessionID string) error
	Get(sessionID string) (*domain.Session, bool)
	List() []*domain.Session
}

// Resolver is the §4.13 contract.
type Resolver interface {
	Resolve(ctx context.Context, itemID, mediaSourceID string) (domain.PlaybackSource, error)
}
