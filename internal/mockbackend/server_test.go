package mockbackend

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mockmaster-client/adapters"
	"github.com/satriahrh/mockmaster-client/adapters/backend"
	"github.com/satriahrh/mockmaster-client/adapters/devices"
	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/internal/session"
	"github.com/satriahrh/mockmaster-client/internal/websocket"
)

type countingSpeaker struct {
	chunks atomic.Int32
}

func (s *countingSpeaker) Play(ctx context.Context, samples []float32, sampleRate int) error {
	s.chunks.Add(1)
	return nil
}

func newBackend(t *testing.T, script Script) (*httptest.Server, *backend.Client) {
	t.Helper()
	e := echo.New()
	NewServer(script, zaptest.NewLogger(t)).Register(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(backend.Config{BaseURL: srv.URL + "/api"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return srv, client
}

func TestRESTEndpoints(t *testing.T) {
	_, client := newBackend(t, DefaultScript())
	ctx := context.Background()

	topics, err := client.ListTopics(ctx)
	if err != nil || len(topics) != 3 {
		t.Fatalf("Unexpected topics %v %v", topics, err)
	}

	topicID := 2
	s, err := client.CreateInterview(ctx, &entities.CreateSessionRequest{SessionType: entities.SessionTypeTopic, TopicID: &topicID, Difficulty: "hard"})
	if err != nil {
		t.Fatalf("CreateInterview failed: %v", err)
	}
	got, err := client.GetInterview(ctx, s.ID)
	if err != nil || got.TopicName != "System Design" || got.DisplayTitle() != "System Design" {
		t.Errorf("Unexpected session %+v %v", got, err)
	}

	if _, err := client.GetInterview(ctx, "999"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	fb, err := client.GenerateFeedback(ctx, s.ID)
	if err != nil || fb.OverallScore == 0 {
		t.Errorf("Unexpected feedback %+v %v", fb, err)
	}

	res, err := client.RunCode(ctx, &entities.CodeRunRequest{SourceCode: "a\nb\n", Language: "go"})
	if err != nil || res.Stdout != "ran 2 line(s) of go\n" {
		t.Errorf("Unexpected run result %+v %v", res, err)
	}
}

func TestUnknownSessionSocket(t *testing.T) {
	srv, _ := newBackend(t, DefaultScript())
	url, _ := websocket.BuildURL(srv.URL, "404")

	ws, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	var msg domain.InboundMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Type != domain.MessageTypeError || msg.Message != "Session not found" {
		t.Errorf("Unexpected message %+v", msg)
	}
}

func TestScriptedInterviewEndToEnd(t *testing.T) {
	script := Script{
		Greeting:        "Hello there.",
		Questions:       []string{"Tell me about a project you are proud of."},
		Closing:         "Thanks, that is all.",
		AnswerBytes:     1600,
		EmotionEvery:    5,
		WordsPerPartial: 2,
	}
	srv, client := newBackend(t, script)

	topicID := 3
	created, err := client.CreateInterview(context.Background(), &entities.CreateSessionRequest{SessionType: entities.SessionTypeTopic, TopicID: &topicID})
	if err != nil {
		t.Fatalf("CreateInterview failed: %v", err)
	}

	archive := adapters.NewMemoryArchive()
	speaker := &countingSpeaker{}
	ctrl, err := session.New(session.Deps{
		Backend: client,
		Microphone: &devices.FileMicrophone{
			SampleRate:    48000,
			FrameDuration: 5 * time.Millisecond,
			Realtime:      true,
		},
		Speaker: speaker,
		Archive: archive,
		Logger:  zaptest.NewLogger(t),
	}, session.Options{SessionID: created.ID, WSBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	v := ctrl.View()
	if v.State != entities.StateEnded {
		t.Fatalf("Expected ended, got %s (%s)", v.State, v.Error)
	}

	want := []entities.TranscriptEntry{
		{Role: entities.RoleInterviewer, Content: "Hello there. Tell me about a project you are proud of."},
		{Role: entities.RoleCandidate, Content: "(answer 1)"},
		{Role: entities.RoleInterviewer, Content: "Thanks, that is all."},
	}
	if len(v.Transcript) != len(want) {
		t.Fatalf("Expected transcript %+v, got %+v", want, v.Transcript)
	}
	for i := range want {
		if v.Transcript[i] != want[i] {
			t.Errorf("Entry %d: expected %+v, got %+v", i, want[i], v.Transcript[i])
		}
	}

	if v.Emotion == nil {
		t.Error("Expected an emotion sample")
	}
	if v.Title != "Behavioral" {
		t.Errorf("Expected title from metadata, got %q", v.Title)
	}
	if speaker.chunks.Load() == 0 {
		t.Error("Expected interviewer audio to be played")
	}

	rec, err := archive.GetBySessionID(context.Background(), string(created.ID))
	if err != nil {
		t.Fatalf("Expected archived record: %v", err)
	}
	if rec.FinalState != entities.StateEnded || !strings.HasPrefix(rec.Transcript[0].Content, "Hello there.") {
		t.Errorf("Unexpected record %+v", rec)
	}
}
