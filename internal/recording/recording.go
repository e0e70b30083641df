package recording

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var ErrAlreadyRecording = errors.New("recording: already recording")

// Source is a microphone stream. Start returns a segment channel and an
// error channel, both closed once capture ends.
type Source interface {
	Start(ctx context.Context) (<-chan Segment, <-chan error, error)
	Stop() error
}

type Config struct {
	SampleRate        int
	Channels          int
	Format            string
	BufferSize        int
	Device            string
	ChannelBufferSize int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:        SampleRate,
		Channels:          1,
		Format:            "s16",
		BufferSize:        3200, // 100 ms at 16 kHz mono s16
		Device:            "",
		ChannelBufferSize: 64,
	}
}

// Recorder captures the microphone through pw-record. The capture loop never
// blocks on consumers: when the segment channel is full the chunk is dropped.
type Recorder struct {
	config    Config
	recording atomic.Bool

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewRecorder(config Config) *Recorder {
	return &Recorder{config: config}
}

func NewDefaultRecorder() *Recorder { return NewRecorder(DefaultConfig()) }

func (r *Recorder) IsRecording() bool {
	return r.recording.Load()
}

func (r *Recorder) Start(ctx context.Context) (<-chan Segment, <-chan error, error) {
	if !r.recording.CompareAndSwap(false, true) {
		return nil, nil, ErrAlreadyRecording
	}

	if err := r.validateConfig(); err != nil {
		r.recording.Store(false)
		return nil, nil, err
	}

	if err := CheckPipeWireAvailable(ctx); err != nil {
		r.recording.Store(false)
		return nil, nil, fmt.Errorf("PipeWire not available: %w", err)
	}

	recordingCtx, cancel := context.WithCancel(ctx)

	segCh := make(chan Segment, r.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.captureLoop(recordingCtx, segCh, errCh)

	return segCh, errCh, nil
}

func (r *Recorder) Stop() error {
	if !r.recording.Load() {
		return nil
	}
	r.requestCancel()
	return nil
}

// Wait blocks until the capture loop has exited and pw-record is reaped.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) captureLoop(ctx context.Context, segCh chan<- Segment, errCh chan<- error) {
	// channels close last so a consumer that saw them close can Start again
	defer func() {
		r.mu.Lock()
		if r.cmd != nil {
			_ = r.cmd.Wait()
			r.cmd = nil
		}
		if r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
		r.mu.Unlock()

		r.recording.Store(false)
		close(segCh)
		close(errCh)
		r.wg.Done()
	}()

	cmd := exec.CommandContext(ctx, "pw-record", r.buildPwRecordArgs()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.emitErr(errCh, fmt.Errorf("create stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.emitErr(errCh, fmt.Errorf("create stderr pipe: %w", err))
		return
	}

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	if err := cmd.Start(); err != nil {
		r.mu.Lock()
		r.cmd = nil
		r.mu.Unlock()
		r.emitErr(errCh, fmt.Errorf("start pw-record: %w", err))
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("Recording: pw-record: %s", scanner.Text())
		}
	}()

	r.pump(ctx, stdout, segCh, errCh)
}

// pump reads fixed-size chunks from the PCM stream and forwards them.
func (r *Recorder) pump(ctx context.Context, pcm io.Reader, segCh chan<- Segment, errCh chan<- error) {
	buffer := make([]byte, r.config.BufferSize)
	dropped := 0
	lastDropLog := time.Now()

	for {
		n, readErr := io.ReadFull(pcm, buffer)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])

			select {
			case segCh <- Segment{PCM: data, CapturedAt: time.Now()}:
			case <-ctx.Done():
				return
			default:
				dropped++
				if time.Since(lastDropLog) > time.Second {
					log.Printf("Recording: dropped %d segments due to backpressure", dropped)
					lastDropLog = time.Now()
					dropped = 0
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) || ctx.Err() != nil {
				return
			}
			r.emitErr(errCh, fmt.Errorf("read audio: %w", readErr))
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (r *Recorder) requestCancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Recorder) emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
	log.Printf("Recording: error: %v", err)
}

func (r *Recorder) buildPwRecordArgs() []string {
	args := []string{
		"--format", r.config.Format,
		"--rate", strconv.Itoa(r.config.SampleRate),
		"--channels", strconv.Itoa(r.config.Channels),
	}
	if r.config.Device != "" {
		args = append(args, "--target", r.config.Device)
	}
	return append(args, "-")
}

func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := exec.CommandContext(checkCtx, "pw-cli", "info").Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}

func (r *Recorder) validateConfig() error {
	if r.config.SampleRate != SampleRate {
		return fmt.Errorf("invalid SampleRate: %d (recognition requires %d)", r.config.SampleRate, SampleRate)
	}
	if r.config.Channels != 1 {
		return fmt.Errorf("invalid Channels: %d (recognition requires mono)", r.config.Channels)
	}
	if r.config.BufferSize <= 0 || r.config.BufferSize%BytesPerSample != 0 {
		return fmt.Errorf("invalid BufferSize: %d (must be a positive multiple of %d)", r.config.BufferSize, BytesPerSample)
	}
	if r.config.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", r.config.ChannelBufferSize)
	}
	if r.config.Format != "s16" && r.config.Format != "s16le" {
		return fmt.Errorf("invalid Format: %q (must be s16)", r.config.Format)
	}
	return nil
}
