// Package session runs one live interview: the socket, the microphone, the
// playback queue, the camera sampler and the state machine that ties them together.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/audio"
	"github.com/satriahrh/mockmaster-client/internal/frames"
	"github.com/satriahrh/mockmaster-client/internal/metrics"
	"github.com/satriahrh/mockmaster-client/internal/transcript"
	"github.com/satriahrh/mockmaster-client/internal/websocket"
)

// FeedbackFailedMessage is shown when feedback generation fails
const FeedbackFailedMessage = "Failed to generate feedback"

var (
	ErrAlreadyRunning   = errors.New("session already running")
	ErrFeedbackInFlight = errors.New("feedback generation already in progress")
	ErrNoBackend        = errors.New("no interview backend configured")
)

// Deps are the collaborators of a Controller. Backend, Camera, Archive and STT are optional.
type Deps struct {
	Backend    repositories.InterviewBackend
	Microphone repositories.Microphone
	Speaker    repositories.Speaker
	Camera     repositories.Camera
	Archive    repositories.SessionArchive
	STT        repositories.SpeechToText
	Logger     *zap.Logger
}

// Options configure a Controller
type Options struct {
	SessionID      entities.SessionID
	WSBaseURL      string
	DialOptions    websocket.Options
	FrameInterval  time.Duration
	EnableCamera   bool
	STTLanguage    string
	ArchiveTimeout time.Duration
}

type action struct {
	fn    func() error
	reply chan error
}

// Controller owns every resource of one session. All state changes happen on
// the goroutine running Run; other goroutines post actions to it.
type Controller struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	conn     atomic.Pointer[websocket.Conn]
	capture  *audio.Capture
	playback *audio.Playback
	sampler  *frames.Sampler

	sttMu     sync.Mutex
	sttStream repositories.SpeechToTextStreaming

	// mediaMu guards mediaStopped. It is never held while a device opens;
	// mediaCtx is cancelled by teardown so pending opens return.
	mediaMu      sync.Mutex
	mediaStopped bool
	mediaCtx     context.Context
	mediaCancel  context.CancelFunc

	actions  chan action
	micErrs  chan error
	closing  chan struct{}
	loopDone chan struct{}
	running  atomic.Bool

	// loop-owned
	runCtx         context.Context
	clock          *time.Ticker
	archivePending bool

	mu         sync.RWMutex
	state      State
	meta       *entities.Session
	transcript []entities.TranscriptEntry
	emotion    *entities.EmotionSample
	elapsed    int
	feedback   *entities.Feedback
	lastRun    *entities.CodeRunResult

	loadingFeedback atomic.Bool
	closeOnce       sync.Once
}

// New creates a controller for one session. Call Run to connect.
func New(deps Deps, opts Options) (*Controller, error) {
	if strings.TrimSpace(string(opts.SessionID)) == "" {
		return nil, errors.New("session id is required")
	}
	if deps.Microphone == nil {
		return nil, errors.New("microphone is required")
	}
	if deps.Speaker == nil {
		return nil, errors.New("speaker is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = 10 * time.Second
	}
	if opts.STTLanguage == "" {
		opts.STTLanguage = "en-US"
	}

	c := &Controller{
		deps:     deps,
		opts:     opts,
		logger:   deps.Logger.With(zap.String("sessionID", string(opts.SessionID))),
		actions:  make(chan action),
		micErrs:  make(chan error, 1),
		closing:  make(chan struct{}),
		loopDone: make(chan struct{}),
		state:    InitialState(),
	}
	c.mediaCtx, c.mediaCancel = context.WithCancel(context.Background())

	c.capture = audio.NewCapture(deps.Microphone, c.sendBinary, c.logger, c.feedSTT)
	c.playback = audio.NewPlayback(deps.Speaker, c.onPlaybackDrained, c.logger)
	if deps.Camera != nil {
		c.sampler = frames.NewSampler(deps.Camera, func(m domain.FrameMessage) error {
			return c.sendJSON(m)
		}, c.logger, frames.Options{Interval: opts.FrameInterval})
	}

	return c, nil
}

// Run connects and drives the session until it reaches a terminal state, ctx
// is cancelled or Close is called. It returns an error when the session ends
// in the error state.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.loopDone)
	defer c.teardown()
	defer c.stopClock()

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.runCtx = runCtx

	select {
	case <-c.closing:
		return nil
	default:
	}

	go c.loadMetadata(runCtx)

	url, err := websocket.BuildURL(c.opts.WSBaseURL, string(c.opts.SessionID))
	if err != nil {
		c.dispatch(SocketFailed{Err: err})
		return c.finish(ctx)
	}

	conn, err := websocket.Dial(runCtx, url, c.logger, c.opts.DialOptions)
	if err != nil {
		c.logger.Error("Failed to connect to interview server", zap.Error(err))
		c.dispatch(SocketFailed{Err: err})
		return c.finish(ctx)
	}
	c.conn.Store(conn)
	c.dispatch(SocketOpened{})

	events := conn.Events()
	for {
		if c.currentState().Connection.IsTerminal() {
			return c.finish(ctx)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Session cancelled", zap.Error(ctx.Err()))
			return ctx.Err()

		case <-c.closing:
			c.logger.Info("Session closed locally")
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				c.dispatch(SocketClosed{})
				continue
			}
			c.handleEvent(ev)

		case <-c.clockC():
			c.tick()

		case err := <-c.micErrs:
			c.logger.Warn("Microphone failed", zap.Error(err))
			c.dispatch(MicFailed{Err: err})

		case a := <-c.actions:
			a.reply <- a.fn()
		}
	}
}

func (c *Controller) finish(ctx context.Context) error {
	c.archive(ctx)

	st := c.currentState()
	c.logger.Info("Session finished", zap.String("state", string(st.Connection)))
	if st.Connection == entities.StateError {
		return fmt.Errorf("interview session failed: %s", st.Error)
	}
	return nil
}

func (c *Controller) handleEvent(ev websocket.Event) {
	switch e := ev.(type) {
	case websocket.EventMessage:
		c.handleMessage(e.Message)
	case websocket.EventParseError:
		c.logger.Warn("Dropping malformed message", zap.Error(e.Err))
	case websocket.EventClosed:
		if e.Err != nil {
			c.dispatch(SocketFailed{Err: e.Err})
		} else {
			c.dispatch(SocketClosed{})
		}
	}
}

func (c *Controller) handleMessage(msg *domain.InboundMessage) {
	switch msg.Type {
	case domain.MessageTypeStatus:
		c.dispatch(StatusReceived{Message: msg.Message})

	case domain.MessageTypeReady:
		c.dispatch(ReadyReceived{})

	case domain.MessageTypeAudio:
		data, err := msg.AudioData()
		if err != nil {
			c.logger.Warn("Dropping audio message", zap.Error(err))
			return
		}
		c.playback.Enqueue(data)

	case domain.MessageTypeTranscript:
		c.applyTranscript(transcript.TranscriptEvent{Role: msg.Role, Content: msg.Content, Partial: msg.Partial})

	case domain.MessageTypeTurnComplete:
		c.applyTranscript(transcript.TurnComplete{Role: msg.Role})

	case domain.MessageTypeEmotion:
		e, err := msg.Emotion()
		if err != nil {
			c.logger.Warn("Dropping emotion message", zap.Error(err))
			return
		}
		c.mu.Lock()
		c.emotion = &e
		c.mu.Unlock()

	case domain.MessageTypeError:
		message := msg.Message
		if message == "" {
			message = "Unknown server error"
		}
		c.logger.Warn("Server reported error", zap.String("message", message))
		c.dispatch(ServerError{Message: message})
	}
}

func (c *Controller) applyTranscript(ev transcript.Event) {
	c.mu.Lock()
	c.transcript = transcript.Apply(c.transcript, ev)
	c.mu.Unlock()
}

// dispatch runs the reducer and then the effects it asks for. Loop goroutine only.
func (c *Controller) dispatch(ev Event) {
	c.mu.Lock()
	prev := c.state
	next, effects := Reduce(prev, ev)
	c.state = next
	c.mu.Unlock()

	if prev.Connection != next.Connection {
		c.logger.Info("Session state changed",
			zap.String("from", string(prev.Connection)),
			zap.String("to", string(next.Connection)))
		if next.Connection.IsTerminal() {
			metrics.SessionsTotal.WithLabelValues(string(next.Connection)).Inc()
		}
	}

	for _, e := range effects {
		c.runEffect(e)
	}
}

func (c *Controller) runEffect(e Effect) {
	c.logger.Debug("Running effect", zap.Stringer("effect", e))

	switch e {
	case EffectStartMic:
		go c.startMedia(c.runCtx)
	case EffectStopMedia:
		c.stopMedia()
	case EffectSendEnd:
		if err := c.sendJSON(domain.NewControlMessage(domain.MessageTypeEnd)); err != nil {
			c.logger.Debug("Could not send end", zap.Error(err))
		}
	case EffectCloseSocket:
		if conn := c.conn.Load(); conn != nil {
			conn.Close()
		}
	case EffectStartClock:
		if c.clock == nil {
			c.clock = time.NewTicker(time.Second)
		}
	case EffectStopClock:
		c.stopClock()
	case EffectArchive:
		c.archivePending = true
	}
}

func (c *Controller) clockC() <-chan time.Time {
	if c.clock == nil {
		return nil
	}
	return c.clock.C
}

func (c *Controller) stopClock() {
	if c.clock != nil {
		c.clock.Stop()
		c.clock = nil
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	if c.state.Connection == entities.StateActive {
		c.elapsed++
	}
	c.mu.Unlock()
}

// withMedia derives a context that is also cancelled when media is torn down
func (c *Controller) withMedia(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.mediaCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) isMediaStopped() bool {
	c.mediaMu.Lock()
	defer c.mediaMu.Unlock()
	return c.mediaStopped
}

// startMedia acquires the microphone, then the optional recognizer and camera.
// The recognizer stream lives on ctx, so the derived context is released by
// teardown rather than on return.
func (c *Controller) startMedia(ctx context.Context) {
	if c.isMediaStopped() {
		return
	}
	ctx, _ = c.withMedia(ctx)

	if err := c.capture.Start(ctx); err != nil {
		if c.isMediaStopped() {
			c.logger.Debug("Microphone open abandoned by teardown", zap.Error(err))
			return
		}
		select {
		case c.micErrs <- err:
		case <-c.loopDone:
		}
		return
	}

	c.startSTT(ctx)

	if c.opts.EnableCamera && c.sampler != nil {
		if err := c.EnableCamera(ctx); err != nil {
			c.logger.Warn("Camera unavailable", zap.Error(err))
		}
	}
}

func (c *Controller) stopMedia() {
	c.mediaMu.Lock()
	c.mediaStopped = true
	c.mediaMu.Unlock()

	// release opens still waiting on a device before taking device locks
	c.mediaCancel()

	c.capture.Stop()
	if c.sampler != nil {
		c.sampler.Disable()
	}
	c.endSTT()
}

// teardown releases everything. Every step is idempotent so it may run more than once.
func (c *Controller) teardown() {
	c.stopMedia()
	c.playback.Close()
	if conn := c.conn.Load(); conn != nil {
		conn.Close()
	}
}

func (c *Controller) startSTT(ctx context.Context) {
	if c.deps.STT == nil {
		return
	}

	stream, err := c.deps.STT.InitTranscribeStreaming(ctx, repositories.AudioConfig{
		SampleRate: audio.TargetSampleRate,
		Encoding:   "LINEAR16",
		Language:   c.opts.STTLanguage,
	})
	if err != nil {
		c.logger.Warn("Failed to start speech recognition", zap.Error(err))
		return
	}

	c.mediaMu.Lock()
	if c.mediaStopped {
		c.mediaMu.Unlock()
		stream.End()
		return
	}
	c.sttMu.Lock()
	c.sttStream = stream
	c.sttMu.Unlock()
	c.mediaMu.Unlock()

	go func() {
		for text := range stream.Results() {
			if strings.TrimSpace(text) == "" {
				continue
			}
			msg := domain.TranscriptMessage{
				Type:    domain.MessageTypeTranscript,
				Role:    entities.RoleCandidate,
				Content: text,
			}
			if err := c.sendJSON(msg); err != nil {
				c.logger.Debug("Could not send candidate transcript", zap.Error(err))
			}
		}
	}()
}

func (c *Controller) feedSTT(pcm []byte) error {
	c.sttMu.Lock()
	stream := c.sttStream
	c.sttMu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Stream(pcm)
}

func (c *Controller) endSTT() {
	c.sttMu.Lock()
	stream := c.sttStream
	c.sttStream = nil
	c.sttMu.Unlock()

	if stream != nil {
		if err := stream.End(); err != nil {
			c.logger.Debug("Speech recognition ended with error", zap.Error(err))
		}
	}
}

func (c *Controller) sendBinary(pcm []byte) error {
	conn := c.conn.Load()
	if conn == nil {
		return domain.ErrNotConnected
	}
	return conn.SendBinary(pcm)
}

func (c *Controller) sendJSON(v any) error {
	conn := c.conn.Load()
	if conn == nil {
		return domain.ErrNotConnected
	}
	return conn.SendJSON(v)
}

func (c *Controller) onPlaybackDrained() {
	if err := c.sendJSON(domain.NewControlMessage(domain.MessageTypePlaybackComplete)); err != nil {
		c.logger.Debug("Could not send playback_complete", zap.Error(err))
	}
}

func (c *Controller) loadMetadata(ctx context.Context) {
	if c.deps.Backend == nil {
		return
	}
	s, err := c.deps.Backend.GetInterview(ctx, c.opts.SessionID)
	if err != nil {
		c.logger.Warn("Failed to load session metadata", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.meta = s
	c.mu.Unlock()
}

func (c *Controller) archive(ctx context.Context) {
	if c.deps.Archive == nil || !c.archivePending {
		return
	}
	c.archivePending = false

	v := c.View()
	record := &entities.SessionRecord{
		ID:             uuid.NewString(),
		SessionID:      v.SessionID,
		Title:          v.Title,
		FinalState:     v.State,
		ElapsedSeconds: v.ElapsedSeconds,
		Transcript:     v.Transcript,
		LastEmotion:    v.Emotion,
		Error:          v.Error,
		EndedAt:        time.Now().UTC(),
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ArchiveTimeout)
	defer cancel()

	if err := c.deps.Archive.Save(saveCtx, record); err != nil {
		c.logger.Warn("Failed to archive session", zap.Error(err))
		return
	}
	c.logger.Info("Session archived", zap.String("recordID", record.ID))
}

func (c *Controller) currentState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// do runs fn on the loop goroutine and waits for its result
func (c *Controller) do(fn func() error) error {
	if !c.running.Load() {
		return domain.ErrNotConnected
	}

	reply := make(chan error, 1)
	select {
	case c.actions <- action{fn: fn, reply: reply}:
	case <-c.loopDone:
		return domain.ErrNotConnected
	}

	select {
	case err := <-reply:
		return err
	case <-c.loopDone:
		select {
		case err := <-reply:
			return err
		default:
			return domain.ErrNotConnected
		}
	}
}

// ToggleMute flips the mute flag and returns the new value
func (c *Controller) ToggleMute() bool {
	muted := c.capture.ToggleMuted()
	c.logger.Info("Microphone mute changed", zap.Bool("muted", muted))
	return muted
}

// SetMuted gates microphone transmission. The device stays open.
func (c *Controller) SetMuted(muted bool) {
	c.capture.SetMuted(muted)
	c.logger.Info("Microphone mute changed", zap.Bool("muted", muted))
}

// EndInterview sends "end", releases media and moves to ended without waiting
// for the server. Only valid while active.
func (c *Controller) EndInterview() error {
	return c.do(func() error {
		st := c.currentState()
		if st.Connection != entities.StateActive {
			return fmt.Errorf("%w: cannot end interview while %s", domain.ErrInvalidTransition, st.Connection)
		}
		c.logger.Info("Ending interview")
		c.dispatch(EndRequested{})
		return nil
	})
}

// EnableCamera acquires the camera and starts sending frames
func (c *Controller) EnableCamera(ctx context.Context) error {
	if c.sampler == nil {
		return domain.ErrDeviceUnavailable
	}

	if c.isMediaStopped() || c.currentState().Connection.IsTerminal() {
		return domain.ErrNotConnected
	}

	ctx, cancel := c.withMedia(ctx)
	defer cancel()

	if err := c.sampler.Enable(ctx); err != nil {
		if c.isMediaStopped() {
			return domain.ErrNotConnected
		}
		return err
	}

	// teardown may have run while the camera was opening
	if c.isMediaStopped() {
		c.sampler.Disable()
		return domain.ErrNotConnected
	}
	return nil
}

// DisableCamera stops the sampler and releases the camera
func (c *Controller) DisableCamera() {
	if c.sampler != nil {
		c.sampler.Disable()
	}
}

// ShareCode sends the editor contents to the interviewer. Blank code, or a
// socket that is not open, makes it a no-op.
func (c *Controller) ShareCode(code, language string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	err := c.sendJSON(domain.CodeShareMessage{
		Type:     domain.MessageTypeCodeShare,
		Code:     code,
		Language: language,
	})
	if errors.Is(err, domain.ErrNotConnected) || errors.Is(err, domain.ErrConnectionClosed) {
		c.logger.Debug("Socket not open, code not shared")
		return nil
	}
	return err
}

// RunCode executes code in the backend sandbox. With autoShare the result is
// forwarded to the interviewer.
func (c *Controller) RunCode(ctx context.Context, req *entities.CodeRunRequest, autoShare bool) (*entities.CodeRunResult, error) {
	if c.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := c.deps.Backend.RunCode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to run code: %w", err)
	}

	c.mu.Lock()
	c.lastRun = res
	c.mu.Unlock()

	if autoShare {
		if err := c.sendJSON(domain.NewCodeRunResultMessage(req.SourceCode, req.Language, res)); err != nil {
			c.logger.Debug("Could not share code run result", zap.Error(err))
		}
	}
	return res, nil
}

// GenerateFeedback asks the backend to assess the finished interview
func (c *Controller) GenerateFeedback(ctx context.Context) (*entities.Feedback, error) {
	if st := c.currentState(); st.Connection != entities.StateEnded {
		return nil, fmt.Errorf("%w: feedback is only available after the interview has ended", domain.ErrInvalidTransition)
	}
	if c.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	if !c.loadingFeedback.CompareAndSwap(false, true) {
		return nil, ErrFeedbackInFlight
	}
	defer c.loadingFeedback.Store(false)

	fb, err := c.deps.Backend.GenerateFeedback(ctx, c.opts.SessionID)
	if err != nil {
		c.mu.Lock()
		c.state.Error = FeedbackFailedMessage
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to generate feedback: %w", err)
	}

	c.mu.Lock()
	c.feedback = fb
	c.mu.Unlock()
	return fb, nil
}

// View returns a snapshot safe to use from any goroutine
func (c *Controller) View() View {
	c.mu.RLock()
	v := View{
		SessionID:      string(c.opts.SessionID),
		Title:          c.meta.DisplayTitle(),
		State:          c.state.Connection,
		Screen:         ScreenFor(c.state.Connection),
		StatusText:     c.state.StatusText,
		Error:          c.state.Error,
		MicBlocked:     c.state.MicBlocked,
		ElapsedSeconds: c.elapsed,
		Elapsed:        FormatElapsed(c.elapsed),
		Transcript:     append([]entities.TranscriptEntry(nil), c.transcript...),
		Feedback:       c.feedback,
		LastCodeRun:    c.lastRun,
	}
	if c.meta != nil {
		v.TopicName = c.meta.TopicName
		v.JobTitle = c.meta.JobTitle
		v.DurationSeconds = c.meta.DurationSeconds
	}
	if c.emotion != nil {
		e := *c.emotion
		v.Emotion = &e
		v.EmotionEmoji = e.Emoji()
	}
	c.mu.RUnlock()

	v.Muted = c.capture.Muted()
	v.CameraEnabled = c.sampler != nil && c.sampler.Enabled()
	v.AISpeaking = c.playback.Busy()
	v.LoadingFeedback = c.loadingFeedback.Load()
	v.Mic = c.capture.Stats()
	return v
}

// Close tears the session down: timers, microphone, camera, playback and socket.
// Safe to call any number of times and from any goroutine.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
	})
	c.teardown()
	if c.running.Load() {
		<-c.loopDone
	}
}
