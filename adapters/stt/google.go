package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain/repositories"
)

// endTimeout bounds how long End waits for the last results
const endTimeout = 5 * time.Second

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	logger *zap.Logger
}

// NewGoogleSpeechToText creates the Google Cloud recognizer. Credentials come
// from the environment as usual for Google Cloud clients.
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	// Convert encoding string to Google Speech API enum
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	// Create Google Cloud Speech client
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	// Send initial configuration. The stream stays open across utterances and
	// yields one final result per utterance.
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            int32(config.SampleRate),
					LanguageCode:               config.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults:  false,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		cancel()
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &GoogleSpeechToTextStream{
		client:  client,
		stream:  stream,
		cancel:  cancel,
		results: make(chan string, 16),
		done:    make(chan struct{}),
		logger:  g.logger,
	}
	go s.receiveResults(streamCtx)

	g.logger.Info("Speech recognition stream opened",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))
	return s, nil
}

// GoogleSpeechToTextStream is one continuous recognition stream
type GoogleSpeechToTextStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	logger *zap.Logger

	sendMu  sync.Mutex
	closed  bool
	results chan string
	done    chan struct{}
	err     error

	endOnce sync.Once
	endErr  error
}

func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	if g.closed {
		return errors.New("speech stream closed")
	}

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (g *GoogleSpeechToTextStream) Results() <-chan string {
	return g.results
}

// End half-closes the stream, waits for the remaining results and releases the client
func (g *GoogleSpeechToTextStream) End() error {
	g.endOnce.Do(func() {
		g.sendMu.Lock()
		g.closed = true
		closeErr := g.stream.CloseSend()
		g.sendMu.Unlock()

		select {
		case <-g.done:
		case <-time.After(endTimeout):
			g.logger.Warn("Speech recognition did not finish in time")
		}
		g.cancel()
		<-g.done
		g.client.Close()

		if closeErr != nil {
			g.endErr = fmt.Errorf("failed to close send stream: %w", closeErr)
		} else {
			g.endErr = g.err
		}
	})
	return g.endErr
}

func (g *GoogleSpeechToTextStream) receiveResults(ctx context.Context) {
	defer close(g.done)
	defer close(g.results)

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				g.err = fmt.Errorf("failed to receive response: %w", err)
				g.logger.Warn("Speech recognition stream failed", zap.Error(err))
			}
			return
		}

		// Only final results are forwarded
		for _, result := range resp.Results {
			if !result.IsFinal || len(result.Alternatives) == 0 {
				continue
			}
			select {
			case g.results <- result.Alternatives[0].Transcript:
			case <-ctx.Done():
				return
			}
		}
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
