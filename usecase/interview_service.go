package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
)

// InterviewService prepares sessions before the live connection and reads
// the archive afterwards
type InterviewService struct {
	backend repositories.InterviewBackend
	archive repositories.SessionArchive
	logger  *zap.Logger
}

// NewInterviewService creates a new interview service
func NewInterviewService(backend repositories.InterviewBackend, archive repositories.SessionArchive, logger *zap.Logger) *InterviewService {
	return &InterviewService{backend: backend, archive: archive, logger: logger}
}

// ListTopics returns the topics offered by the backend
func (s *InterviewService) ListTopics(ctx context.Context) ([]entities.Topic, error) {
	topics, err := s.backend.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// FindTopic resolves a topic by numeric id or case-insensitive name
func (s *InterviewService) FindTopic(ctx context.Context, ref string) (*entities.Topic, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("topic reference is empty")
	}

	topics, err := s.ListTopics(ctx)
	if err != nil {
		return nil, err
	}

	id, isID := strconv.Atoi(ref)
	for i := range topics {
		if (isID == nil && topics[i].ID == id) || strings.EqualFold(topics[i].Name, ref) {
			return &topics[i], nil
		}
	}
	return nil, fmt.Errorf("%w: topic %q", domain.ErrNotFound, ref)
}

// CreateSession creates a new interview session on the backend
func (s *InterviewService) CreateSession(ctx context.Context, req *entities.CreateSessionRequest) (*entities.Session, error) {
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session request: %w", err)
	}

	session, err := s.backend.CreateInterview(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("backend returned invalid session: %w", err)
	}

	s.logger.Info("Interview session created",
		zap.String("sessionID", string(session.ID)),
		zap.String("sessionType", req.SessionType),
		zap.String("difficulty", req.Difficulty))
	return session, nil
}

// LastRecord returns the archived outcome of a session
func (s *InterviewService) LastRecord(ctx context.Context, sessionID entities.SessionID) (*entities.SessionRecord, error) {
	if s.archive == nil {
		return nil, domain.ErrNotFound
	}
	return s.archive.GetBySessionID(ctx, string(sessionID))
}

// RecentRecords lists archived sessions, newest first
func (s *InterviewService) RecentRecords(ctx context.Context, limit int) ([]*entities.SessionRecord, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.ListRecent(ctx, limit)
}
