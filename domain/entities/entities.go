package entities

import (
	"errors"
	"strings"
	"time"
)

// Topic represents an interview topic offered by the backend
type Topic struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Icon             string   `json:"icon"`
	Description      string   `json:"description"`
	Subtopics        []string `json:"subtopics"`
	DifficultyLevels []string `json:"difficulty_levels"`
}

// Session types accepted by the backend
const (
	SessionTypeTopic  = "topic"
	SessionTypeCustom = "custom"
)

// CreateSessionRequest is the payload for creating an interview session
type CreateSessionRequest struct {
	SessionType    string `json:"session_type"`
	TopicID        *int   `json:"topic_id,omitempty"`
	Difficulty     string `json:"difficulty"`
	ResumeText     string `json:"resume_text,omitempty"`
	JobDescription string `json:"job_description,omitempty"`
	JobTitle       string `json:"job_title,omitempty"`
}

// Validate validates the create request
func (r *CreateSessionRequest) Validate() error {
	switch r.SessionType {
	case SessionTypeTopic:
		if r.TopicID == nil {
			return errors.New("topic_id is required for topic sessions")
		}
	case SessionTypeCustom:
		if strings.TrimSpace(r.JobDescription) == "" {
			return errors.New("job_description is required for custom sessions")
		}
	default:
		return errors.New("session_type must be one of: topic, custom")
	}
	return nil
}

// FeedbackPoint is a strength or weakness called out in feedback
type FeedbackPoint struct {
	Area   string `json:"area"`
	Detail string `json:"detail,omitempty"`
}

// EmotionSummary aggregates emotion samples over the whole interview
type EmotionSummary struct {
	AvgStress         float64 `json:"avg_stress"`
	AvgConfidence     float64 `json:"avg_confidence"`
	DominantMood      string  `json:"dominant_mood"`
	BodyLanguageNotes string  `json:"body_language_notes,omitempty"`
}

// QuestionReview grades the answer to one interview question
type QuestionReview struct {
	Question        string `json:"question"`
	ResponseQuality string `json:"response_quality"`
	Notes           string `json:"notes,omitempty"`
}

// Feedback is the AI-generated assessment of a finished interview
type Feedback struct {
	SessionID         SessionID        `json:"session_id"`
	OverallScore      float64          `json:"overall_score"`
	Summary           string           `json:"summary"`
	Strengths         []FeedbackPoint  `json:"strengths"`
	Weaknesses        []FeedbackPoint  `json:"weaknesses"`
	Suggestions       []string         `json:"suggestions"`
	EmotionSummary    EmotionSummary   `json:"emotion_summary"`
	QuestionBreakdown []QuestionReview `json:"question_breakdown"`
}

// CodeRunRequest asks the backend sandbox to execute code
type CodeRunRequest struct {
	SourceCode string `json:"source_code"`
	Language   string `json:"language"`
	Stdin      string `json:"stdin"`
}

// Validate validates the run request
func (r *CodeRunRequest) Validate() error {
	if strings.TrimSpace(r.SourceCode) == "" {
		return errors.New("source_code is required")
	}
	if r.Language == "" {
		return errors.New("language is required")
	}
	return nil
}

// CodeRunResult is the sandbox execution outcome
type CodeRunResult struct {
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	CompileOutput string  `json:"compile_output"`
	Status        string  `json:"status"`
	Time          *string `json:"time,omitempty"`
	Memory        *int    `json:"memory,omitempty"`
}

// SessionRecord is the client-side archive of a finished live session
type SessionRecord struct {
	ID             string            `json:"id" bson:"_id"`
	SessionID      string            `json:"session_id" bson:"session_id"`
	Title          string            `json:"title" bson:"title"`
	FinalState     ConnectionState   `json:"final_state" bson:"final_state"`
	ElapsedSeconds int               `json:"elapsed_seconds" bson:"elapsed_seconds"`
	Transcript     []TranscriptEntry `json:"transcript" bson:"transcript"`
	LastEmotion    *EmotionSample    `json:"last_emotion,omitempty" bson:"last_emotion,omitempty"`
	Error          string            `json:"error,omitempty" bson:"error,omitempty"`
	EndedAt        time.Time         `json:"ended_at" bson:"ended_at"`
}

// Validate validates the record before it is archived
func (r *SessionRecord) Validate() error {
	if r.SessionID == "" {
		return errors.New("session_id is required")
	}
	if !r.FinalState.IsTerminal() {
		return errors.New("final_state must be ended or error")
	}
	return nil
}
