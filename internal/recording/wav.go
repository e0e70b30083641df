package recording

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var ErrInvalidWAV = errors.New("recording: invalid wav")

type wavFormat struct {
	channels      int
	sampleRate    int
	bitsPerSample int
}

// DecodeWAV reads a 16-bit PCM RIFF/WAVE file and converts it to the
// capture format: mono s16le at SampleRate.
func DecodeWAV(data []byte) ([]byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing riff/wave header", ErrInvalidWAV)
	}

	var (
		format *wavFormat
		pcm    []byte
	)
	for offset := 12; offset+8 <= len(data); {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += 8
		if size < 0 || offset+size > len(data) {
			return nil, fmt.Errorf("%w: chunk %q overflows file", ErrInvalidWAV, id)
		}
		body := data[offset : offset+size]

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too short", ErrInvalidWAV)
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 {
				return nil, fmt.Errorf("%w: unsupported format tag %d", ErrInvalidWAV, tag)
			}
			format = &wavFormat{
				channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				sampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				bitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
		case "data":
			pcm = body
		}

		// chunks are word aligned
		offset += size + size%2
	}

	switch {
	case format == nil || pcm == nil:
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrInvalidWAV)
	case format.bitsPerSample != 16:
		return nil, fmt.Errorf("%w: %d bits per sample, want 16", ErrInvalidWAV, format.bitsPerSample)
	case format.channels <= 0 || format.sampleRate <= 0:
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidWAV, format.channels, format.sampleRate)
	case len(pcm)%(2*format.channels) != 0:
		return nil, fmt.Errorf("%w: pcm data not frame aligned", ErrInvalidWAV)
	}

	out := resample(downmix(pcm, format.channels), format.sampleRate, SampleRate)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no audio", ErrInvalidWAV)
	}
	return out, nil
}

// downmix averages interleaved channels.
func downmix(pcm []byte, channels int) []byte {
	if channels == 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			idx := (i*channels + c) * 2
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[idx:])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/int32(channels))))
	}
	return out
}

// resample converts mono s16 by linear interpolation.
func resample(pcm []byte, inRate, outRate int) []byte {
	if inRate == outRate || len(pcm) < 2 {
		return pcm
	}
	in := len(pcm) / 2
	n := int(math.Round(float64(in) * float64(outRate) / float64(inRate)))
	at := func(i int) float64 {
		if i >= in {
			i = in - 1
		}
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		pos := float64(i) * float64(inRate) / float64(outRate)
		idx := int(pos)
		frac := pos - float64(idx)
		v := at(idx)*(1-frac) + at(idx+1)*frac
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// ReplaySource is a Source that plays back fixed PCM in chunks, then idles
// like an open microphone until Stop.
type ReplaySource struct {
	PCM       []byte
	ChunkSize int
	// Realtime paces chunks at the speed they would be captured.
	Realtime bool

	mu   sync.Mutex
	stop chan struct{}
	sent chan struct{}
}

func (s *ReplaySource) Start(ctx context.Context) (<-chan Segment, <-chan error, error) {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil, nil, ErrAlreadyRecording
	}
	stop, sent := make(chan struct{}), make(chan struct{})
	s.stop, s.sent = stop, sent
	s.mu.Unlock()

	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = PCMBytes(100*time.Millisecond, SampleRate)
	}

	segCh := make(chan Segment, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(segCh)
		defer close(errCh)

		for off := 0; off < len(s.PCM); off += chunk {
			end := min(off+chunk, len(s.PCM))
			seg := Segment{PCM: s.PCM[off:end], CapturedAt: time.Now()}
			select {
			case segCh <- seg:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
			if s.Realtime {
				select {
				case <-time.After(seg.Duration(SampleRate)):
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}
		close(sent)

		select {
		case <-stop:
		case <-ctx.Done():
		}
	}()

	return segCh, errCh, nil
}

// Sent is closed once every chunk has been handed over. Nil before Start.
func (s *ReplaySource) Sent() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *ReplaySource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}
