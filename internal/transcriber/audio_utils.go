package transcriber

import (
	"encoding/binary"
	"math"
)

// normalized RMS below which a chunk counts as silence
const defaultRMSThreshold = 0.01

// pcmToFloat32 converts s16le mono PCM to the [-1, 1] samples whisper expects.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// computeRMS returns the normalized root mean square of s16le PCM.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
