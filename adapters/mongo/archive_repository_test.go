package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
)

// TestArchiveRepository_Integration requires a running MongoDB instance
// (skipped if MONGODB_URI is not set)
func TestArchiveRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	client, err := NewClient(ctx, mongoURI, "mockmaster_test", logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		client.Database.Drop(ctx)
		client.Close(ctx)
	}()

	repo, err := NewArchiveRepository(ctx, client.Database, logger)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("SaveAndGetLatest", func(t *testing.T) {
		older := &entities.SessionRecord{
			ID: uuid.NewString(), SessionID: "42", FinalState: entities.StateError,
			Error: "WebSocket connection failed. Is the backend running?", EndedAt: base.Add(-time.Hour),
		}
		newer := &entities.SessionRecord{
			ID: uuid.NewString(), SessionID: "42", FinalState: entities.StateEnded, ElapsedSeconds: 95,
			Transcript: []entities.TranscriptEntry{{Role: entities.RoleInterviewer, Content: "Hello"}},
			LastEmotion: &entities.EmotionSample{DominantEmotion: "happy", ConfidenceScore: 0.8},
			EndedAt:     base,
		}
		for _, r := range []*entities.SessionRecord{older, newer} {
			if err := repo.Save(ctx, r); err != nil {
				t.Fatalf("Failed to save record: %v", err)
			}
		}

		got, err := repo.GetBySessionID(ctx, "42")
		if err != nil {
			t.Fatalf("Failed to get record: %v", err)
		}
		if got.ID != newer.ID || got.FinalState != entities.StateEnded || len(got.Transcript) != 1 {
			t.Errorf("Expected newest record, got %+v", got)
		}
		if got.LastEmotion == nil || got.LastEmotion.DominantEmotion != "happy" {
			t.Errorf("Expected emotion to round-trip, got %+v", got.LastEmotion)
		}
	})

	t.Run("SaveIsIdempotent", func(t *testing.T) {
		r := &entities.SessionRecord{ID: uuid.NewString(), SessionID: "43", FinalState: entities.StateEnded, EndedAt: base}
		repo.Save(ctx, r)
		r.ElapsedSeconds = 10
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("Failed to resave record: %v", err)
		}
		got, _ := repo.GetBySessionID(ctx, "43")
		if got == nil || got.ElapsedSeconds != 10 {
			t.Errorf("Expected replaced record, got %+v", got)
		}
	})

	t.Run("ListRecent", func(t *testing.T) {
		records, err := repo.ListRecent(ctx, 2)
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		if records[0].EndedAt.Before(records[1].EndedAt) {
			t.Error("Expected newest first")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetBySessionID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		if err := repo.Save(ctx, &entities.SessionRecord{ID: uuid.NewString()}); err == nil {
			t.Error("Expected validation error")
		}
	})
}
