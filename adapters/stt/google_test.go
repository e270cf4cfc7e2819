package stt

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mockmaster-client/domain/repositories"
)

var (
	_ repositories.SpeechToText          = (*GoogleSpeechToText)(nil)
	_ repositories.SpeechToTextStreaming = (*GoogleSpeechToTextStream)(nil)
	_ repositories.SpeechToText          = (*MockSpeechToText)(nil)
	_ repositories.SpeechToTextStreaming = (*MockSpeechToTextStream)(nil)
)

func TestGetAudioEncoding(t *testing.T) {
	for _, enc := range []string{"LINEAR16", "WAV", "FLAC", "MULAW", "OGG_OPUS", "WEBM_OPUS"} {
		if _, err := getAudioEncoding(enc); err != nil {
			t.Errorf("Expected %s to be supported: %v", enc, err)
		}
	}
	if _, err := getAudioEncoding("MP3"); err == nil {
		t.Error("Expected MP3 to be rejected")
	}
}

func TestMockSpeechEmitsPerUtterance(t *testing.T) {
	mock := NewMockSpeechToText(zaptest.NewLogger(t), "one", "two")
	mock.every = 10

	stream, err := mock.InitTranscribeStreaming(context.Background(), repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16", Language: "en-US"})
	if err != nil {
		t.Fatalf("InitTranscribeStreaming failed: %v", err)
	}

	stream.Stream(make([]byte, 6))
	stream.Stream(make([]byte, 6))
	stream.Stream(make([]byte, 25))
	if err := stream.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	var got []string
	for text := range stream.Results() {
		got = append(got, text)
	}
	// 37 bytes: three full utterances and a flushed remainder
	want := []string{"one", "two", "one", "two"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Result %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if err := stream.Stream([]byte{1}); err == nil {
		t.Error("Expected Stream after End to fail")
	}
	if err := stream.End(); err != nil {
		t.Errorf("Expected repeated End to be a no-op, got %v", err)
	}
}
