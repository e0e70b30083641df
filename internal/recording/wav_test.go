package recording

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// buildWAV encodes s16 samples as a canonical PCM wave file.
func buildWAV(samples []int16, channels, rate int) []byte {
	var data bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&data, binary.LittleEndian, s)
	}

	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+data.Len()))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(rate*channels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(data.Len()))
	b.Write(data.Bytes())
	return b.Bytes()
}

func samplesOf(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func TestDecodeWAV(t *testing.T) {
	t.Run("mono 16k passes through", func(t *testing.T) {
		in := []int16{0, 100, -100, 32767, -32768}
		pcm, err := DecodeWAV(buildWAV(in, 1, SampleRate))
		if err != nil {
			t.Fatal(err)
		}
		got := samplesOf(pcm)
		for i := range in {
			if got[i] != in[i] {
				t.Fatalf("sample %d = %d, want %d", i, got[i], in[i])
			}
		}
	})

	t.Run("stereo is averaged", func(t *testing.T) {
		pcm, err := DecodeWAV(buildWAV([]int16{100, 300, -50, -150}, 2, SampleRate))
		if err != nil {
			t.Fatal(err)
		}
		got := samplesOf(pcm)
		if len(got) != 2 || got[0] != 200 || got[1] != -100 {
			t.Errorf("downmix = %v", got)
		}
	})

	t.Run("32k is halved", func(t *testing.T) {
		in := make([]int16, 3200)
		for i := range in {
			in[i] = 1000
		}
		pcm, err := DecodeWAV(buildWAV(in, 1, 32000))
		if err != nil {
			t.Fatal(err)
		}
		if n := len(pcm) / 2; n != 1600 {
			t.Errorf("resampled to %d samples, want 1600", n)
		}
		if d := PCMDuration(len(pcm), SampleRate); d != 100*time.Millisecond {
			t.Errorf("duration = %v", d)
		}
		for _, s := range samplesOf(pcm) {
			if s != 1000 {
				t.Fatalf("constant signal changed to %d", s)
			}
		}
	})
}

func TestDecodeWAVErrors(t *testing.T) {
	valid := buildWAV([]int16{1, 2}, 1, SampleRate)

	eightBit := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint16(eightBit[34:], 8)

	float := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint16(float[20:], 3)

	tests := map[string][]byte{
		"empty":        nil,
		"not riff":     []byte("RIFX0000WAVEfmt "),
		"8 bit":        eightBit,
		"float":        float,
		"no data":      valid[:36],
		"truncated":    valid[:len(valid)-1],
		"empty stereo": buildWAV(nil, 2, SampleRate),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeWAV(data); !errors.Is(err, ErrInvalidWAV) {
				t.Errorf("err = %v, want ErrInvalidWAV", err)
			}
		})
	}
}

func TestReplaySource(t *testing.T) {
	pcm := make([]byte, 1000)
	src := &ReplaySource{PCM: pcm, ChunkSize: 300}

	segCh, errCh, err := src.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := src.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start = %v", err)
	}

	var sizes []int
	for len(sizes) < 4 {
		seg := <-segCh
		sizes = append(sizes, len(seg.PCM))
	}
	if sizes[0] != 300 || sizes[3] != 100 {
		t.Errorf("chunk sizes = %v", sizes)
	}

	select {
	case <-src.Sent():
	case <-time.After(time.Second):
		t.Fatal("Sent not closed after the last chunk")
	}

	// idles until stopped
	select {
	case _, ok := <-segCh:
		t.Fatalf("unexpected segment after replay, ok=%v", ok)
	case <-time.After(20 * time.Millisecond):
	}

	if err := src.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-segCh; ok {
		t.Error("segment channel should close on Stop")
	}
	if _, ok := <-errCh; ok {
		t.Error("error channel should close on Stop")
	}
}
