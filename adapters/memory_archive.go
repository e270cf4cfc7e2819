package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
)

// MemoryArchive is an in-memory SessionArchive used when no database is configured
type MemoryArchive struct {
	mu        sync.RWMutex
	records   map[string]*entities.SessionRecord   // id -> record
	bySession map[string][]*entities.SessionRecord // session_id -> records
}

var _ repositories.SessionArchive = (*MemoryArchive)(nil)

// NewMemoryArchive creates an empty archive
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		records:   make(map[string]*entities.SessionRecord),
		bySession: make(map[string][]*entities.SessionRecord),
	}
}

// Save stores a copy of the record, replacing any record with the same id
func (m *MemoryArchive) Save(ctx context.Context, record *entities.SessionRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.EndedAt.IsZero() {
		record.EndedAt = time.Now().UTC()
	}

	stored := cloneRecord(record)
	if old, exists := m.records[stored.ID]; exists {
		m.removeFromSession(old)
	}
	m.records[stored.ID] = stored
	m.bySession[stored.SessionID] = append(m.bySession[stored.SessionID], stored)
	return nil
}

// GetBySessionID returns the most recent record for a session
func (m *MemoryArchive) GetBySessionID(ctx context.Context, sessionID string) (*entities.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *entities.SessionRecord
	for _, r := range m.bySession[sessionID] {
		if latest == nil || r.EndedAt.After(latest.EndedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(latest), nil
}

// ListRecent returns up to limit records, newest first
func (m *MemoryArchive) ListRecent(ctx context.Context, limit int) ([]*entities.SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	m.mu.RLock()
	all := make([]*entities.SessionRecord, 0, len(m.records))
	for _, r := range m.records {
		all = append(all, cloneRecord(r))
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].EndedAt.After(all[j].EndedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryArchive) removeFromSession(old *entities.SessionRecord) {
	list := m.bySession[old.SessionID]
	for i, r := range list {
		if r == old {
			m.bySession[old.SessionID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func cloneRecord(r *entities.SessionRecord) *entities.SessionRecord {
	c := *r
	c.Transcript = append([]entities.TranscriptEntry(nil), r.Transcript...)
	if r.LastEmotion != nil {
		e := *r.LastEmotion
		c.LastEmotion = &e
	}
	return &c
}
