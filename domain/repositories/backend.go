package repositories

import (
	"context"

	"github.com/satriahrh/mockmaster-client/domain/entities"
)

// InterviewBackend is the REST surface of the interview backend
type InterviewBackend interface {
	GetInterview(ctx context.Context, id entities.SessionID) (*entities.Session, error)
	CreateInterview(ctx context.Context, req *entities.CreateSessionRequest) (*entities.Session, error)
	ListTopics(ctx context.Context) ([]entities.Topic, error)
	GenerateFeedback(ctx context.Context, id entities.SessionID) (*entities.Feedback, error)
	RunCode(ctx context.Context, req *entities.CodeRunRequest) (*entities.CodeRunResult, error)
}
