// Package mockbackend is a scripted stand-in for the interview backend. It
// serves the REST endpoints and the live interview socket well enough to run
// the client locally without the real service.
package mockbackend

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/internal/audio"
)

// Script is what the mock interviewer says
type Script struct {
	Greeting  string
	Questions []string
	Closing   string
	// AnswerBytes of microphone PCM count as one spoken answer
	AnswerBytes int
	// EmotionEvery sends an emotion sample every N microphone frames
	EmotionEvery int
	// WordsPerPartial controls how interviewer text is split into partial transcripts
	WordsPerPartial int
}

// DefaultScript is a short system design interview
func DefaultScript() Script {
	return Script{
		Greeting: "Hi, thanks for joining. Let's get started.",
		Questions: []string{
			"How would you design a URL shortener?",
			"How would you scale the redirect path?",
		},
		Closing:         "That's all from me. Thanks for your time!",
		AnswerBytes:     3 * audio.TargetSampleRate * 2,
		EmotionEvery:    50,
		WordsPerPartial: 3,
	}
}

var defaultTopics = []entities.Topic{
	{ID: 1, Name: "Arrays & Hashing", Category: "dsa", Icon: "🧮", DifficultyLevels: []string{"easy", "medium", "hard"}},
	{ID: 2, Name: "System Design", Category: "design", Icon: "🏗️", DifficultyLevels: []string{"medium", "hard"}},
	{ID: 3, Name: "Behavioral", Category: "behavioral", Icon: "🗣️", DifficultyLevels: []string{"easy", "medium"}},
}

// Server holds the mock sessions
type Server struct {
	script   Script
	logger   *zap.Logger
	upgrader gws.Upgrader

	mu       sync.Mutex
	nextID   int
	sessions map[string]*entities.Session
}

// NewServer creates a mock backend
func NewServer(script Script, logger *zap.Logger) *Server {
	if script.WordsPerPartial <= 0 {
		script.WordsPerPartial = 3
	}
	if script.AnswerBytes <= 0 {
		script.AnswerBytes = DefaultScript().AnswerBytes
	}
	return &Server{
		script:   script,
		logger:   logger,
		upgrader: gws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		sessions: make(map[string]*entities.Session),
	}
}

// Register mounts the REST API under /api and the socket under /ws
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/topics", s.listTopics)
	g.POST("/interviews", s.createInterview)
	g.GET("/interviews/:id", s.getInterview)
	g.POST("/feedback/:id", s.generateFeedback)
	g.POST("/code/run", s.runCode)

	e.GET("/ws/interview/:id", s.interview)
}

// AddSession registers a session directly
func (s *Server) AddSession(session *entities.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[string(session.ID)] = session
}

func (s *Server) session(id string) (*entities.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func notFound(c echo.Context, what string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"detail": what + " not found"})
}

func (s *Server) listTopics(c echo.Context) error {
	return c.JSON(http.StatusOK, defaultTopics)
}

func (s *Server) createInterview(c echo.Context) error {
	var req entities.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid request"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
	}

	s.mu.Lock()
	s.nextID++
	session := &entities.Session{
		ID:              entities.SessionID(strconv.Itoa(s.nextID)),
		SessionType:     req.SessionType,
		TopicID:         req.TopicID,
		Difficulty:      req.Difficulty,
		JobTitle:        req.JobTitle,
		Status:          "active",
		CreatedAt:       time.Now().UTC(),
		DurationSeconds: 30 * 60,
	}
	if req.TopicID != nil {
		for _, t := range defaultTopics {
			if t.ID == *req.TopicID {
				session.TopicName = t.Name
			}
		}
	}
	s.sessions[string(session.ID)] = session
	s.mu.Unlock()

	s.logger.Info("Mock session created", zap.String("sessionID", string(session.ID)))
	return c.JSON(http.StatusOK, session)
}

func (s *Server) getInterview(c echo.Context) error {
	session, ok := s.session(c.Param("id"))
	if !ok {
		return notFound(c, "Session")
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) generateFeedback(c echo.Context) error {
	if _, ok := s.session(c.Param("id")); !ok {
		return notFound(c, "Session")
	}
	return c.JSON(http.StatusOK, entities.Feedback{
		SessionID:    entities.SessionID(c.Param("id")),
		OverallScore: 7,
		Summary:      "Clear structure, could go deeper on trade-offs.",
		Strengths:    []entities.FeedbackPoint{{Area: "Communication"}},
		Weaknesses:   []entities.FeedbackPoint{{Area: "Capacity estimates"}},
		Suggestions:  []string{"Quantify read and write load before choosing storage."},
	})
}

func (s *Server) runCode(c echo.Context) error {
	var req entities.CodeRunRequest
	if err := c.Bind(&req); err != nil || req.Validate() != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "source_code and language are required"})
	}
	lines := strings.Count(strings.TrimRight(req.SourceCode, "\n"), "\n") + 1
	return c.JSON(http.StatusOK, entities.CodeRunResult{
		Stdout: fmt.Sprintf("ran %d line(s) of %s\n", lines, req.Language),
		Status: "Accepted",
	})
}

type clientFrame struct {
	binary  bool
	payload []byte
}

// interview runs one scripted conversation. All writes happen on this goroutine.
func (s *Server) interview(c echo.Context) error {
	id := c.Param("id")
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", zap.Error(err))
		return nil
	}
	defer ws.Close()

	logger := s.logger.With(zap.String("sessionID", id))

	if _, ok := s.session(id); !ok {
		ws.WriteJSON(map[string]string{"type": "error", "message": "Session not found"})
		ws.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
		return nil
	}

	frames := make(chan clientFrame, 64)
	go func() {
		defer close(frames)
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			frames <- clientFrame{binary: mt == gws.BinaryMessage, payload: data}
		}
	}()

	conv := &conversation{server: s, ws: ws, logger: logger}
	if err := conv.start(); err != nil {
		logger.Warn("Failed to start conversation", zap.Error(err))
		return nil
	}

	for f := range frames {
		done, err := conv.handle(f)
		if err != nil {
			logger.Warn("Conversation write failed", zap.Error(err))
			return nil
		}
		if done {
			ws.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "interview complete"))
			logger.Info("Mock interview finished")
			return nil
		}
	}
	logger.Info("Client disconnected")
	return nil
}

type conversation struct {
	server *Server
	ws     *gws.Conn
	logger *zap.Logger

	speaking  bool
	closing   bool
	question  int
	heard     int
	frames    int
	answers   int
	codeShare int
}

func (c *conversation) start() error {
	if err := c.ws.WriteJSON(map[string]string{"type": "status", "message": "Preparing your interviewer..."}); err != nil {
		return err
	}
	if err := c.ws.WriteJSON(domain.NewControlMessage(domain.MessageTypeReady)); err != nil {
		return err
	}
	opening := c.server.script.Greeting
	if len(c.server.script.Questions) > 0 {
		opening += " " + c.server.script.Questions[0]
	}
	return c.say(opening)
}

// handle processes one client frame and reports whether the interview is over
func (c *conversation) handle(f clientFrame) (bool, error) {
	if f.binary {
		return c.onAudio(len(f.payload))
	}

	var msg struct {
		Type    domain.MessageType `json:"type"`
		Role    entities.Role      `json:"role"`
		Content string             `json:"content"`
		Code    string             `json:"code"`
	}
	if err := json.Unmarshal(f.payload, &msg); err != nil {
		c.logger.Warn("Ignoring malformed client message", zap.Error(err))
		return false, nil
	}

	switch msg.Type {
	case domain.MessageTypePlaybackComplete:
		c.speaking = false
		c.heard = 0
		return c.closing, nil
	case domain.MessageTypeEnd:
		c.logger.Info("Client ended the interview")
		return true, nil
	case domain.MessageTypeTranscript:
		if msg.Role != entities.RoleCandidate || strings.TrimSpace(msg.Content) == "" {
			return false, nil
		}
		if err := c.ws.WriteJSON(domain.InboundMessage{Type: domain.MessageTypeTranscript, Role: entities.RoleCandidate, Content: msg.Content}); err != nil {
			return false, err
		}
		return false, c.advance()
	case domain.MessageTypeCodeShare:
		c.codeShare++
		c.logger.Info("Code shared", zap.Int("bytes", len(msg.Code)))
	case domain.MessageTypeFrame, domain.MessageTypeCodeRunResult:
		c.logger.Debug("Client message", zap.String("type", string(msg.Type)))
	}
	return false, nil
}

func (c *conversation) onAudio(n int) (bool, error) {
	c.frames++
	if every := c.server.script.EmotionEvery; every > 0 && c.frames%every == 0 {
		if err := c.sendEmotion(); err != nil {
			return false, err
		}
	}
	if c.speaking || c.closing {
		return false, nil
	}

	c.heard += n
	if c.heard < c.server.script.AnswerBytes {
		return false, nil
	}
	c.answers++
	if err := c.ws.WriteJSON(domain.InboundMessage{
		Type:    domain.MessageTypeTranscript,
		Role:    entities.RoleCandidate,
		Content: fmt.Sprintf("(answer %d)", c.answers),
	}); err != nil {
		return false, err
	}
	return false, c.advance()
}

// advance moves to the next question, or to the closing remark
func (c *conversation) advance() error {
	if c.speaking || c.closing {
		return nil
	}
	c.heard = 0
	c.question++
	if c.question < len(c.server.script.Questions) {
		return c.say(c.server.script.Questions[c.question])
	}
	c.closing = true
	return c.say(c.server.script.Closing)
}

// say streams text as partial transcripts with matching audio, then completes the turn
func (c *conversation) say(text string) error {
	c.speaking = true
	words := strings.Fields(text)
	step := c.server.script.WordsPerPartial

	for i := 0; i < len(words); i += step {
		end := i + step
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if i > 0 {
			chunk = " " + chunk
		}
		if err := c.ws.WriteJSON(domain.InboundMessage{
			Type:    domain.MessageTypeTranscript,
			Role:    entities.RoleInterviewer,
			Content: chunk,
			Partial: true,
		}); err != nil {
			return err
		}

		data, _ := json.Marshal(tone(end-i, i/step))
		if err := c.ws.WriteJSON(domain.InboundMessage{Type: domain.MessageTypeAudio, Data: data}); err != nil {
			return err
		}
	}

	return c.ws.WriteJSON(domain.InboundMessage{Type: domain.MessageTypeTurnComplete, Role: entities.RoleInterviewer})
}

func (c *conversation) sendEmotion() error {
	moods := []string{"neutral", "happy", "neutral", "surprise"}
	sample := entities.EmotionSample{
		DominantEmotion: moods[(c.frames/max(c.server.script.EmotionEvery, 1))%len(moods)],
		ConfidenceScore: 0.7,
		StressScore:     0.2,
	}
	data, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	return c.ws.WriteJSON(domain.InboundMessage{Type: domain.MessageTypeEmotion, Data: data})
}

// tone is base64 PCM16 at the playback rate, 120ms per word
func tone(words, seq int) string {
	n := words * audio.PlaybackSampleRate * 120 / 1000
	freq := 220.0 + float64(seq%4)*55
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = audio.FloatToPCM16(float32(0.2 * math.Sin(2*math.Pi*freq*float64(i)/audio.PlaybackSampleRate)))
	}
	return base64.StdEncoding.EncodeToString(audio.EncodePCM16LE(pcm))
}
