// Package observe records dictation metrics through the OpenTelemetry
// Metrics API and exposes them for Prometheus scraping.
//
// Tests should build their own [Metrics] with [NewMetrics] over a
// ManualReader-backed provider instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/leonardotrapani/holdtype"

// Session outcomes.
const (
	OutcomeInjected = "injected"
	OutcomeNoSpeech = "no_speech"
	OutcomeAborted  = "aborted"
)

// Metrics holds all instruments. Safe for concurrent use.
type Metrics struct {
	// Sessions counts finished sessions by outcome.
	Sessions metric.Int64Counter

	// ActiveSessions is 1 while a session is listening or recognizing.
	ActiveSessions metric.Int64UpDownCounter

	// FinalizeDuration is the time from hotkey release to the final text
	// (or the no-speech verdict).
	FinalizeDuration metric.Float64Histogram

	// SpeechDuration is the press-to-idle length of sessions that produced text.
	SpeechDuration metric.Float64Histogram

	// Corrections counts correction passes that changed the text.
	Corrections metric.Int64Counter

	// InjectionFailures counts deliveries where the paste could not be
	// synthesized and the text was left on the clipboard.
	InjectionFailures metric.Int64Counter
}

// seconds
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Sessions, err = m.Int64Counter("holdtype.sessions",
		metric.WithDescription("Finished dictation sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("holdtype.active_sessions",
		metric.WithDescription("Sessions currently listening or recognizing."),
	); err != nil {
		return nil, err
	}
	if met.FinalizeDuration, err = m.Float64Histogram("holdtype.finalize.duration",
		metric.WithDescription("Time from hotkey release to the final transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeechDuration, err = m.Float64Histogram("holdtype.speech.duration",
		metric.WithDescription("Length of sessions that produced text."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("holdtype.corrections",
		metric.WithDescription("Transcripts changed by dictionary or snippet correction."),
	); err != nil {
		return nil, err
	}
	if met.InjectionFailures, err = m.Int64Counter("holdtype.injection.failures",
		metric.WithDescription("Deliveries that fell back to clipboard only."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) SessionStarted(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

// SessionFinished records the outcome and, for sessions that produced
// text, the speech length.
func (m *Metrics) SessionFinished(ctx context.Context, outcome string, finalize, speech time.Duration) {
	m.ActiveSessions.Add(ctx, -1)
	m.Sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if finalize > 0 {
		m.FinalizeDuration.Record(ctx, finalize.Seconds())
	}
	if outcome == OutcomeInjected {
		m.SpeechDuration.Record(ctx, speech.Seconds())
	}
}

func (m *Metrics) RecordCorrection(ctx context.Context) {
	m.Corrections.Add(ctx, 1)
}

func (m *Metrics) RecordInjectionFailure(ctx context.Context) {
	m.InjectionFailures.Add(ctx, 1)
}
