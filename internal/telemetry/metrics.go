// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exchange outcomes used as label values.
const (
	OutcomeFinalized = "finalized"
	OutcomeFallback  = "fallback"
	OutcomeErrored   = "errored"
	OutcomeAbandoned = "abandoned"
)

const namespace = "streamchat"

// Recorder receives exchange events from the conversation controller.
type Recorder interface {
	ExchangeStarted()
	ExchangeFinished(outcome string, d time.Duration)
	FrameDecoded(kind string)
	BytesRead(n int)
	FirstContent(d time.Duration)
	ThreadRenewed(ok bool)
}

// =============================================================================
// PROMETHEUS METRICS
// =============================================================================

// Metrics is a Recorder backed by Prometheus collectors.
type Metrics struct {
	exchanges      *prometheus.CounterVec
	frames         *prometheus.CounterVec
	bytes          prometheus.Counter
	duration       prometheus.Histogram
	firstContent   prometheus.Histogram
	threadRenewals *prometheus.CounterVec
	inFlight       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses the default registerer. Collectors already registered under the same
// name are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Completed exchanges by outcome.",
		}, []string{"outcome"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Decoded stream frames by kind.",
		}, []string{"kind"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bytes_total",
			Help:      "Reply body bytes read.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Time from submit to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		firstContent: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_content_seconds",
			Help:      "Time from submit to the first content frame.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		threadRenewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_renewals_total",
			Help:      "Thread handle requests by result.",
		}, []string{"result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exchanges_in_flight",
			Help:      "Exchanges currently streaming.",
		}),
	}

	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNewMetrics is NewMetrics that panics on registration failure.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m, err := NewMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) register(reg prometheus.Registerer) error {
	var err error
	if m.exchanges, err = registerOrReuse(reg, m.exchanges); err != nil {
		return err
	}
	if m.frames, err = registerOrReuse(reg, m.frames); err != nil {
		return err
	}
	if m.bytes, err = registerOrReuse(reg, m.bytes); err != nil {
		return err
	}
	if m.duration, err = registerOrReuse(reg, m.duration); err != nil {
		return err
	}
	if m.firstContent, err = registerOrReuse(reg, m.firstContent); err != nil {
		return err
	}
	if m.threadRenewals, err = registerOrReuse(reg, m.threadRenewals); err != nil {
		return err
	}
	m.inFlight, err = registerOrReuse(reg, m.inFlight)
	return err
}

// registerOrReuse registers c, returning the existing collector instead when
// an identical one is already registered.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) ExchangeStarted() {
	m.inFlight.Inc()
}

func (m *Metrics) ExchangeFinished(outcome string, d time.Duration) {
	m.inFlight.Dec()
	m.exchanges.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) FrameDecoded(kind string) {
	m.frames.WithLabelValues(kind).Inc()
}

func (m *Metrics) BytesRead(n int) {
	if n > 0 {
		m.bytes.Add(float64(n))
	}
}

func (m *Metrics) FirstContent(d time.Duration) {
	m.firstContent.Observe(d.Seconds())
}

func (m *Metrics) ThreadRenewed(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.threadRenewals.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// =============================================================================
// NOP RECORDER
// =============================================================================

type nopRecorder struct{}

func (nopRecorder) ExchangeStarted()                      {}
func (nopRecorder) ExchangeFinished(string, time.Duration) {}
func (nopRecorder) FrameDecoded(string)                   {}
func (nopRecorder) BytesRead(int)                         {}
func (nopRecorder) FirstContent(time.Duration)            {}
func (nopRecorder) ThreadRenewed(bool)                    {}

// Nop returns a Recorder that records nothing.
func Nop() Recorder { return nopRecorder{} }
