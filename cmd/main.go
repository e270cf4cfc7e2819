package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/adapters"
	"github.com/satriahrh/mockmaster-client/adapters/backend"
	"github.com/satriahrh/mockmaster-client/adapters/devices"
	"github.com/satriahrh/mockmaster-client/adapters/mongo"
	"github.com/satriahrh/mockmaster-client/adapters/stt"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/api"
	"github.com/satriahrh/mockmaster-client/internal/auth"
	"github.com/satriahrh/mockmaster-client/internal/config"
	"github.com/satriahrh/mockmaster-client/internal/session"
	"github.com/satriahrh/mockmaster-client/internal/websocket"
	"github.com/satriahrh/mockmaster-client/usecase"
)

type flags struct {
	sessionID      string
	topic          string
	difficulty     string
	jobTitle       string
	jobDescription string
	resumeFile     string
	listTopics     bool
	listArchive    int
	showArchive    string
	feedback       bool
	noControl      bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.sessionID, "session", "", "existing interview session id to join")
	flag.StringVar(&f.topic, "topic", "", "create a topic session by topic id or name")
	flag.StringVar(&f.difficulty, "difficulty", "medium", "difficulty for a new session")
	flag.StringVar(&f.jobTitle, "job-title", "", "job title for a new custom session")
	flag.StringVar(&f.jobDescription, "job-description", "", "job description for a new custom session")
	flag.StringVar(&f.resumeFile, "resume", "", "plain text resume for a new session")
	flag.BoolVar(&f.listTopics, "list-topics", false, "print available topics and exit")
	flag.IntVar(&f.listArchive, "list-archive", 0, "print the N most recent archived sessions and exit")
	flag.StringVar(&f.showArchive, "show-archive", "", "print the archived outcome of a session id and exit")
	flag.BoolVar(&f.feedback, "feedback", false, "generate feedback once the interview has ended")
	flag.BoolVar(&f.noControl, "no-control", false, "do not serve the local control API")
	flag.Parse()
	return f
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !cfg.EnvFileLoaded {
		logger.Debug("No .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, f, logger); err != nil {
		logger.Error("Client exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, f flags, logger *zap.Logger) error {
	// Initialize adapters
	backendClient, err := backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.RequestTimeout}, logger)
	if err != nil {
		return err
	}

	archive, closeArchive, err := newArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	interviews := usecase.NewInterviewService(backendClient, archive, logger)

	if f.listTopics {
		topics, err := interviews.ListTopics(ctx)
		if err != nil {
			return err
		}
		return printJSON(topics)
	}
	if f.listArchive > 0 {
		records, err := interviews.RecentRecords(ctx, f.listArchive)
		if err != nil {
			return err
		}
		return printJSON(records)
	}
	if f.showArchive != "" {
		record, err := interviews.LastRecord(ctx, entities.SessionID(f.showArchive))
		if err != nil {
			return err
		}
		return printJSON(record)
	}

	sessionID, err := resolveSession(ctx, interviews, f)
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("sessionID", string(sessionID)))

	speakerPath := cfg.SpeakerFile
	if speakerPath == "" {
		speakerPath = filepath.Join("audio_responses", string(sessionID)+".pcm")
	}
	speaker, err := devices.NewFileSpeaker(speakerPath, true, logger)
	if err != nil {
		return err
	}
	defer speaker.Close()

	deps := session.Deps{
		Backend: backendClient,
		Microphone: &devices.FileMicrophone{
			Path:       cfg.MicFile,
			SampleRate: cfg.MicSampleRate,
			Realtime:   true,
			Logger:     logger,
		},
		Speaker: speaker,
		Archive: archive,
		Logger:  logger,
	}
	if cfg.CameraFile != "" {
		deps.Camera = &devices.ImageCamera{Path: cfg.CameraFile}
	}
	switch cfg.STTProvider {
	case config.STTGoogle:
		deps.STT = stt.NewGoogleSpeechToText(logger)
	case config.STTMock:
		deps.STT = stt.NewMockSpeechToText(logger)
	}

	ctrl, err := session.New(deps, session.Options{
		SessionID:     sessionID,
		WSBaseURL:     cfg.WSURL,
		DialOptions:   websocket.Options{HandshakeTimeout: cfg.RequestTimeout},
		FrameInterval: cfg.FrameInterval,
		EnableCamera:  cfg.CameraEnabled && deps.Camera != nil,
		STTLanguage:   cfg.STTLanguage,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if !f.noControl {
		shutdown, err := serveControl(cfg, ctrl, archive, sessionID, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	logger.Info("Starting interview", zap.String("ws", cfg.WSURL))
	runErr := ctrl.Run(ctx)

	v := ctrl.View()
	logger.Info("Interview finished",
		zap.String("state", string(v.State)),
		zap.String("elapsed", v.Elapsed),
		zap.Int("turns", len(v.Transcript)),
		zap.Duration("audioPlayed", speaker.Played()))

	if runErr != nil {
		return runErr
	}

	if f.feedback && v.State == entities.StateEnded {
		fb, err := ctrl.GenerateFeedback(ctx)
		if err != nil {
			return err
		}
		return printJSON(fb)
	}
	return printJSON(v)
}

func resolveSession(ctx context.Context, interviews *usecase.InterviewService, f flags) (entities.SessionID, error) {
	if f.sessionID != "" {
		return entities.SessionID(f.sessionID), nil
	}

	req := &entities.CreateSessionRequest{
		Difficulty:     f.difficulty,
		JobTitle:       f.jobTitle,
		JobDescription: f.jobDescription,
	}
	if f.resumeFile != "" {
		resume, err := os.ReadFile(f.resumeFile)
		if err != nil {
			return "", fmt.Errorf("failed to read resume: %w", err)
		}
		req.ResumeText = string(resume)
	}

	switch {
	case f.topic != "":
		topic, err := interviews.FindTopic(ctx, f.topic)
		if err != nil {
			return "", err
		}
		req.SessionType = entities.SessionTypeTopic
		req.TopicID = &topic.ID
	case f.jobDescription != "":
		req.SessionType = entities.SessionTypeCustom
	default:
		return "", errors.New("one of -session, -topic or -job-description is required")
	}

	s, err := interviews.CreateSession(ctx, req)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

func newArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.SessionArchive, func(), error) {
	if cfg.MongoURI == "" {
		return adapters.NewMemoryArchive(), func() {}, nil
	}

	client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(closeCtx)
	}

	archive, err := mongo.NewArchiveRepository(ctx, client.Database, logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return archive, closeFn, nil
}

func serveControl(cfg config.Config, ctrl *session.Controller, archive repositories.SessionArchive, sessionID entities.SessionID, logger *zap.Logger) (func(), error) {
	issuer, err := auth.NewIssuer(cfg.ControlSecret, 0)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := issuer.GenerateControllerToken(string(sessionID))
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	api.InitRoutes(e, ctrl, archive, issuer, logger)

	go func() {
		if err := e.Start(cfg.ControlAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("Control API stopped", zap.Error(err))
		}
	}()

	logger.Info("Control API listening",
		zap.String("addr", cfg.ControlAddr),
		zap.Time("tokenExpiresAt", expiresAt))
	fmt.Fprintf(os.Stderr, "control token: %s\n", token)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			logger.Warn("Control API forced to shutdown", zap.Error(err))
		}
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
