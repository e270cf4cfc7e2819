package audio

import "math"

const (
	// TargetSampleRate is the rate the backend expects for microphone audio.
	TargetSampleRate = 16000
	// PlaybackSampleRate is the rate of synthesized speech sent by the backend.
	PlaybackSampleRate = 24000
)

// Resample converts float32 samples in [-1, 1] captured at nativeRate into
// int16 PCM at targetRate using linear interpolation between neighbours.
// The output has round(len(in)*targetRate/nativeRate) samples.
func Resample(in []float32, nativeRate, targetRate int) []int16 {
	if nativeRate <= 0 || targetRate <= 0 || len(in) == 0 {
		return nil
	}

	ratio := float64(targetRate) / float64(nativeRate)
	n := int(math.Round(float64(len(in)) * ratio))
	out := make([]int16, n)

	for i := range out {
		srcIdx := float64(i) / ratio
		idx := int(srcIdx)
		if idx >= len(in) {
			idx = len(in) - 1
		}
		frac := srcIdx - float64(idx)

		var sample float64
		if idx+1 < len(in) {
			sample = float64(in[idx])*(1-frac) + float64(in[idx+1])*frac
		} else {
			sample = float64(in[idx])
		}
		out[i] = toInt16(sample)
	}
	return out
}

// FloatToPCM16 scales a float sample in [-1, 1] to int16 with clamping
func FloatToPCM16(sample float32) int16 {
	return toInt16(float64(sample))
}

func toInt16(sample float64) int16 {
	v := math.Round(sample * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
