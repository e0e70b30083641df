package recording

import "time"

const (
	SampleRate     = 16000
	BytesPerSample = 2
)

// Segment is a chunk of 16 kHz mono signed 16-bit little-endian PCM. A
// segment is handed from stage to stage and never mutated after capture.
type Segment struct {
	PCM        []byte
	CapturedAt time.Time
}

// Duration returns the audio length of the segment at the given sample rate.
func (s Segment) Duration(sampleRate int) time.Duration {
	return PCMDuration(len(s.PCM), sampleRate)
}

// PCMDuration converts a byte count of mono s16 audio to a duration.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// PCMBytes is the inverse of PCMDuration.
func PCMBytes(d time.Duration, sampleRate int) int {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return int(d*time.Duration(sampleRate)/time.Second) * BytesPerSample
}
