package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/leonardotrapani/holdtype/internal/config"
	"github.com/leonardotrapani/holdtype/internal/models/whisper"
	"github.com/leonardotrapani/holdtype/internal/recording"
	"github.com/leonardotrapani/holdtype/internal/style"
	"github.com/leonardotrapani/holdtype/internal/transcriber"
	"github.com/spf13/cobra"
)

type transcribeOptions struct {
	model    string
	strategy string
	language string
	style    string
	realtime bool
	raw      bool
	timeout  time.Duration
}

func transcribeCmd() *cobra.Command {
	var opts transcribeOptions

	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Run a WAV file through the recognizer without the daemon",
		Long: `Run a 16-bit PCM WAV file through the same capture and recognition
path the daemon uses and print the result. Useful for comparing models
and strategies. Dictionary and snippets are not applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "model id (default from config)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "batch or streaming (default from config)")
	cmd.Flags().StringVar(&opts.language, "language", "", "language code (default from config)")
	cmd.Flags().StringVar(&opts.style, "style", "", "formal, casual or very_casual (default from config)")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", false, "feed audio at capture speed to show partial results")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the recognizer output without styling")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "give up after this long")

	return cmd
}

func runTranscribe(ctx context.Context, path string, opts transcribeOptions) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyTranscribeOptions(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pcm, err := recording.DecodeWAV(data)
	if err != nil {
		return err
	}

	registry, err := whisper.DefaultRegistry()
	if err != nil {
		return err
	}
	modelPath, err := registry.Resolve(cfg.Recognition.Model, cfg.Recognition.ModelPath)
	if err != nil {
		return fmt.Errorf("%w (run holdtype model download %s)", err, cfg.Recognition.Model)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	model := transcriber.NewModel(transcriber.WhisperLoader(modelPath, cfg.Recognition.Language, cfg.Recognition.Threads))
	defer model.Close()
	model.Load()
	if err := model.Wait(ctx); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	started := time.Now()
	text, err := transcribePCM(ctx, cfg.ToTranscriberConfig(), model, pcm, opts.realtime, func(partial string) {
		fmt.Fprintf(os.Stderr, "\r\033[K… %s", partial)
	})
	fmt.Fprint(os.Stderr, "\r\033[K")
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(os.Stderr, "no speech detected")
		return nil
	}

	if !opts.raw {
		text = style.Format(text, style.ParseStyle(cfg.General.Style))
	}
	fmt.Println(text)
	fmt.Fprintf(os.Stderr, "%s of audio in %s with %s (%s)\n",
		recording.PCMDuration(len(pcm), recording.SampleRate).Round(10*time.Millisecond),
		time.Since(started).Round(10*time.Millisecond), cfg.Recognition.Model, cfg.Recognition.Strategy)
	return nil
}

func applyTranscribeOptions(cfg *config.Config, opts transcribeOptions) {
	if opts.model != "" {
		cfg.Recognition.Model = opts.model
		cfg.Recognition.ModelPath = ""
	}
	if opts.strategy != "" {
		cfg.Recognition.Strategy = opts.strategy
	}
	if opts.language != "" {
		cfg.Recognition.Language = opts.language
	}
	if opts.style != "" {
		cfg.General.Style = opts.style
	}
}

// transcribePCM replays pcm through a listener session and returns the final
// text. onPartial sees every preview.
func transcribePCM(ctx context.Context, tc transcriber.Config, recognizer transcriber.Recognizer, pcm []byte, realtime bool, onPartial func(string)) (string, error) {
	src := &recording.ReplaySource{PCM: pcm, Realtime: realtime}
	listener, err := transcriber.New(tc, src, recognizer)
	if err != nil {
		return "", err
	}

	results, err := listener.StartListening(ctx)
	if err != nil {
		return "", err
	}

	// drain everything so the listener never blocks on delivery; the
	// first error or final wins
	final := make(chan transcriber.Result, 1)
	go func() {
		defer close(final)
		var (
			last transcriber.Result
			done bool
		)
		for r := range results {
			switch {
			case done:
			case r.Err != nil, r.IsFinal:
				last, done = r, true
			case onPartial != nil:
				onPartial(r.Text)
			}
		}
		if done {
			final <- last
		}
	}()

	select {
	case <-src.Sent():
	case <-ctx.Done():
		_ = listener.StopListening(context.Background())
		return "", ctx.Err()
	}

	if err := listener.StopListening(ctx); err != nil {
		return "", err
	}
	r, ok := <-final
	switch {
	case !ok:
		return "", fmt.Errorf("recognizer closed without a result")
	case r.Err != nil:
		return "", r.Err
	case r.NoSpeech:
		return "", nil
	}
	return r.Text, nil
}
