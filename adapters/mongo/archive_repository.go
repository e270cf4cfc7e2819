package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
)

const archiveCollection = "session_archive"

// ArchiveRepository stores finished live sessions in MongoDB
type ArchiveRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewArchiveRepository creates the repository and ensures its indexes
func NewArchiveRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (repositories.SessionArchive, error) {
	collection := db.Collection(archiveCollection)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "ended_at", Value: -1}}},
		{Keys: bson.D{{Key: "ended_at", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive indexes: %w", err)
	}

	return &ArchiveRepository{collection: collection, logger: logger}, nil
}

// Save implements repositories.SessionArchive
func (r *ArchiveRepository) Save(ctx context.Context, record *entities.SessionRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.EndedAt.IsZero() {
		record.EndedAt = time.Now().UTC()
	}

	// Records are keyed by their own id so a retried save replaces instead of duplicating
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": record.ID},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		r.logger.Error("Failed to archive session", zap.Error(err), zap.String("session_id", record.SessionID))
		return fmt.Errorf("failed to archive session: %w", err)
	}

	r.logger.Info("Session archived",
		zap.String("record_id", record.ID),
		zap.String("session_id", record.SessionID),
		zap.String("final_state", string(record.FinalState)))
	return nil
}

// GetBySessionID returns the most recent record for a session
func (r *ArchiveRepository) GetBySessionID(ctx context.Context, sessionID string) (*entities.SessionRecord, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "ended_at", Value: -1}})

	var record entities.SessionRecord
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get archived session %s: %w", sessionID, err)
	}
	return &record, nil
}

// ListRecent returns up to limit records, newest first
func (r *ArchiveRepository) ListRecent(ctx context.Context, limit int) ([]*entities.SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "ended_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*entities.SessionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode archived sessions: %w", err)
	}
	return records, nil
}
