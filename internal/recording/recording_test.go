package recording

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.SampleRate != 16000 {
		t.Errorf("default sample rate should be 16000, got %d", config.SampleRate)
	}
	if config.Channels != 1 {
		t.Errorf("default channels should be 1, got %d", config.Channels)
	}
	if config.Format != "s16" {
		t.Errorf("default format should be s16, got %s", config.Format)
	}
	if got := PCMDuration(config.BufferSize, config.SampleRate); got != 100*time.Millisecond {
		t.Errorf("default buffer should hold 100ms, got %v", got)
	}
	if err := NewRecorder(config).validateConfig(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestRecorderValidateConfig(t *testing.T) {
	base := DefaultConfig()
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"wrong sample rate", func(c *Config) { c.SampleRate = 44100 }},
		{"stereo", func(c *Config) { c.Channels = 2 }},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }},
		{"odd buffer", func(c *Config) { c.BufferSize = 3201 }},
		{"zero channel buffer", func(c *Config) { c.ChannelBufferSize = 0 }},
		{"float format", func(c *Config) { c.Format = "f32" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := NewRecorder(c).validateConfig(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestRecorderBuildPwRecordArgs(t *testing.T) {
	tests := []struct {
		name   string
		device string
		want   []string
	}{
		{
			name: "default device",
			want: []string{"--format", "s16", "--rate", "16000", "--channels", "1", "-"},
		},
		{
			name:   "explicit device",
			device: "alsa_input.usb-mic",
			want:   []string{"--format", "s16", "--rate", "16000", "--channels", "1", "--target", "alsa_input.usb-mic", "-"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.Device = tt.device
			got := NewRecorder(c).buildPwRecordArgs()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("args = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecorderPumpChunksStream(t *testing.T) {
	c := DefaultConfig()
	c.BufferSize = 4
	r := NewRecorder(c)

	src := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	segCh := make(chan Segment, 8)
	errCh := make(chan error, 1)
	r.pump(context.Background(), src, segCh, errCh)
	close(segCh)

	var got [][]byte
	for seg := range segCh {
		if seg.CapturedAt.IsZero() {
			t.Errorf("segment missing capture timestamp")
		}
		got = append(got, seg.PCM)
	}
	want := [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("segments = %v, want %v", got, want)
	}
	select {
	case err := <-errCh:
		t.Errorf("EOF should not be reported as an error: %v", err)
	default:
	}
}

func TestRecorderPumpDropsWhenFull(t *testing.T) {
	c := DefaultConfig()
	c.BufferSize = 2
	r := NewRecorder(c)

	src := bytes.NewReader(make([]byte, 20))
	segCh := make(chan Segment, 1)
	errCh := make(chan error, 1)

	done := make(chan struct{})
	go func() {
		r.pump(context.Background(), src, segCh, errCh)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump blocked on a full channel")
	}
	if len(segCh) != 1 {
		t.Errorf("expected one buffered segment, got %d", len(segCh))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestRecorderPumpReportsReadError(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	segCh := make(chan Segment, 1)
	errCh := make(chan error, 1)
	r.pump(context.Background(), failingReader{}, segCh, errCh)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected an error")
		}
	default:
		t.Fatal("read error was not reported")
	}
}

func TestSegmentDuration(t *testing.T) {
	seg := Segment{PCM: make([]byte, 32000)}
	if d := seg.Duration(SampleRate); d != time.Second {
		t.Errorf("32000 bytes should be 1s, got %v", d)
	}
	if n := PCMBytes(500*time.Millisecond, SampleRate); n != 16000 {
		t.Errorf("500ms should be 16000 bytes, got %d", n)
	}
	if d := PCMDuration(32000, 0); d != time.Second {
		t.Errorf("zero sample rate should fall back to 16 kHz, got %v", d)
	}
}

func TestRecorderStopWhenIdle(t *testing.T) {
	r := NewDefaultRecorder()
	if err := r.Stop(); err != nil {
		t.Errorf("Stop on idle recorder: %v", err)
	}
	if r.IsRecording() {
		t.Error("recorder should not be recording")
	}
}

var _ io.Reader = failingReader{}
var _ Source = (*Recorder)(nil)
