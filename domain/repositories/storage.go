package repositories

import (
	"context"

	"github.com/satriahrh/mockmaster-client/domain/entities"
)

// SessionArchive stores a record of every live session that reached a terminal state
type SessionArchive interface {
	Save(ctx context.Context, record *entities.SessionRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (*entities.SessionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*entities.SessionRecord, error)
}
