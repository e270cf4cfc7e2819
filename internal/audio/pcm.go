package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// EncodePCM16LE converts int16 samples to s16le bytes.
func EncodePCM16LE(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// DecodePCM16LE converts s16le bytes to int16 samples.
func DecodePCM16LE(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm16 payload has odd length %d", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// DecodeChunk turns one base64 PCM16 chunk from the backend into float32 samples.
func DecodeChunk(b64 string) ([]float32, error) {
	if b64 == "" {
		return nil, errors.New("empty audio chunk")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("empty audio chunk")
	}
	pcm, err := DecodePCM16LE(raw)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out, nil
}
