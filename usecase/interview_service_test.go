package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mockmaster-client/adapters"
	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
)

type stubBackend struct {
	topics    []entities.Topic
	created   *entities.CreateSessionRequest
	createErr error
	session   *entities.Session
}

func (b *stubBackend) GetInterview(ctx context.Context, id entities.SessionID) (*entities.Session, error) {
	return nil, domain.ErrNotFound
}

func (b *stubBackend) CreateInterview(ctx context.Context, req *entities.CreateSessionRequest) (*entities.Session, error) {
	b.created = req
	return b.session, b.createErr
}

func (b *stubBackend) ListTopics(ctx context.Context) ([]entities.Topic, error) {
	return b.topics, nil
}

func (b *stubBackend) GenerateFeedback(ctx context.Context, id entities.SessionID) (*entities.Feedback, error) {
	return nil, errors.New("not used")
}

func (b *stubBackend) RunCode(ctx context.Context, req *entities.CodeRunRequest) (*entities.CodeRunResult, error) {
	return nil, errors.New("not used")
}

func TestFindTopic(t *testing.T) {
	backend := &stubBackend{topics: []entities.Topic{{ID: 1, Name: "Arrays"}, {ID: 2, Name: "System Design"}}}
	svc := NewInterviewService(backend, nil, zaptest.NewLogger(t))

	tests := []struct {
		ref    string
		wantID int
		found  bool
	}{
		{ref: "2", wantID: 2, found: true},
		{ref: "system design", wantID: 2, found: true},
		{ref: " Arrays ", wantID: 1, found: true},
		{ref: "9", found: false},
		{ref: "Graphs", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			topic, err := svc.FindTopic(context.Background(), tt.ref)
			if !tt.found {
				if !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("Expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil || topic.ID != tt.wantID {
				t.Errorf("Expected topic %d, got %+v %v", tt.wantID, topic, err)
			}
		})
	}
}

func TestCreateSession(t *testing.T) {
	backend := &stubBackend{session: &entities.Session{ID: "11"}}
	svc := NewInterviewService(backend, nil, zaptest.NewLogger(t))

	topic := 2
	s, err := svc.CreateSession(context.Background(), &entities.CreateSessionRequest{SessionType: entities.SessionTypeTopic, TopicID: &topic})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if s.ID != "11" || backend.created.Difficulty != "medium" {
		t.Errorf("Unexpected result %+v, request %+v", s, backend.created)
	}

	if _, err := svc.CreateSession(context.Background(), &entities.CreateSessionRequest{SessionType: entities.SessionTypeCustom}); err == nil {
		t.Error("Expected custom session without job description to be rejected")
	}

	backend.session = &entities.Session{}
	if _, err := svc.CreateSession(context.Background(), &entities.CreateSessionRequest{SessionType: entities.SessionTypeTopic, TopicID: &topic}); err == nil {
		t.Error("Expected session without id to be rejected")
	}
}

func TestArchiveQueries(t *testing.T) {
	ctx := context.Background()

	empty := NewInterviewService(&stubBackend{}, nil, zaptest.NewLogger(t))
	if _, err := empty.LastRecord(ctx, "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound without archive, got %v", err)
	}

	archive := adapters.NewMemoryArchive()
	archive.Save(ctx, &entities.SessionRecord{SessionID: "1", FinalState: entities.StateEnded})
	svc := NewInterviewService(&stubBackend{}, archive, zaptest.NewLogger(t))

	rec, err := svc.LastRecord(ctx, "1")
	if err != nil || rec.FinalState != entities.StateEnded {
		t.Errorf("Unexpected record %+v %v", rec, err)
	}
	list, _ := svc.RecentRecords(ctx, 10)
	if len(list) != 1 {
		t.Errorf("Expected 1 record, got %d", len(list))
	}
}
