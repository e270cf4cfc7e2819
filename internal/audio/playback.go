package audio

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/metrics"
)

// Playback plays backend audio chunks strictly in arrival order, one at a time.
// When the queue empties after playing, onDrained is called exactly once.
type Playback struct {
	speaker   repositories.Speaker
	onDrained func()
	logger    *zap.Logger

	mu      sync.Mutex
	queue   []string
	playing bool
	closed  bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once

	played  atomic.Uint64
	skipped atomic.Uint64
}

// NewPlayback creates the queue and starts its worker
func NewPlayback(speaker repositories.Speaker, onDrained func(), logger *zap.Logger) *Playback {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Playback{
		speaker:   speaker,
		onDrained: onDrained,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go p.worker()
	return p
}

// Enqueue appends a base64 PCM16 24 kHz chunk. Playback starts immediately when idle.
func (p *Playback) Enqueue(b64 string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, b64)
	metrics.PlaybackQueueDepth.Set(float64(len(p.queue)))
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Busy reports whether a chunk is playing or waiting
func (p *Playback) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing || len(p.queue) > 0
}

// Pending returns the number of chunks not yet started
func (p *Playback) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Played returns how many chunks finished playing
func (p *Playback) Played() uint64 { return p.played.Load() }

// Skipped returns how many chunks failed to decode or play
func (p *Playback) Skipped() uint64 { return p.skipped.Load() }

// Close stops the worker and drops pending chunks without notifying. Idempotent.
func (p *Playback) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		dropped := len(p.queue)
		p.queue = nil
		p.mu.Unlock()

		metrics.PlaybackQueueDepth.Set(0)
		p.cancel()
		<-p.done

		p.logger.Debug("Playback closed", zap.Int("dropped", dropped), zap.Uint64("played", p.played.Load()))
	})
}

func (p *Playback) worker() {
	defer close(p.done)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
		}

		if !p.drain() {
			return
		}
	}
}

// drain plays until the queue is empty. It returns false once closed.
func (p *Playback) drain() bool {
	for {
		p.mu.Lock()
		if p.closed {
			p.playing = false
			p.mu.Unlock()
			return false
		}
		if len(p.queue) == 0 {
			wasPlaying := p.playing
			p.playing = false
			p.mu.Unlock()

			if wasPlaying && p.onDrained != nil {
				p.onDrained()
			}
			return true
		}
		chunk := p.queue[0]
		p.queue[0] = ""
		p.queue = p.queue[1:]
		p.playing = true
		metrics.PlaybackQueueDepth.Set(float64(len(p.queue)))
		p.mu.Unlock()

		samples, err := DecodeChunk(chunk)
		if err != nil {
			p.skipped.Add(1)
			metrics.PlaybackChunksTotal.WithLabelValues("decode_error").Inc()
			p.logger.Warn("Skipping undecodable audio chunk", zap.Error(err))
			continue
		}

		if err := p.speaker.Play(p.ctx, samples, PlaybackSampleRate); err != nil {
			if p.ctx.Err() != nil {
				return false
			}
			p.skipped.Add(1)
			metrics.PlaybackChunksTotal.WithLabelValues("play_error").Inc()
			p.logger.Warn("Failed to play audio chunk", zap.Error(err))
			continue
		}
		p.played.Add(1)
		metrics.PlaybackChunksTotal.WithLabelValues("played").Inc()
	}
}
