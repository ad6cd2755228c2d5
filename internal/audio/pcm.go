package audio

import (
	"encoding/binary"
	"math"
)

// DecodePCM16 converts signed 16-bit little-endian PCM into samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []int {
	samples := make([]int, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return samples
}

// Resample converts samples from one rate to another by linear interpolation.
func Resample(samples []int, from, to int) []int {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}

	n := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	out := make([]int, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1

	for j := range out {
		pos := float64(j) * step
		i := int(pos)
		if i >= last {
			out[j] = samples[last]
			continue
		}
		frac := pos - float64(i)
		v := float64(samples[i]) + (float64(samples[i+1])-float64(samples[i]))*frac
		out[j] = clamp16(int(math.Round(v)))
	}
	return out
}

func clamp16(v int) int {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return v
	}
}
