// Package metrics provides Prometheus instrumentation for the reverb engine,
// the bridge and the audio device.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/native-reverb/engine"
)

const namespace = "reverb"

var allStates = []engine.State{
	engine.StateUninitialized,
	engine.StateReady,
	engine.StateProcessing,
	engine.StateReleased,
}

// EngineMetrics records engine, bridge and device events. It implements
// engine.Observer; the real-time callbacks only touch pre-resolved counters.
type EngineMetrics struct {
	registry *prometheus.Registry

	blocksTotal        prometheus.Counter
	framesTotal        prometheus.Counter
	framesDroppedTotal prometheus.Counter
	blockDuration      prometheus.Histogram

	rejectionsTotal    *prometheus.CounterVec
	rejectedBusy       prometheus.Counter
	rejectedNotInit    prometheus.Counter
	rejectedOther      prometheus.Counter
	parameterUpdates   *prometheus.CounterVec
	stateGauge         *prometheus.GaugeVec
	underrunFrames     prometheus.Counter
	bridgeCallsTotal   *prometheus.CounterVec
	bridgeCallDuration *prometheus.HistogramVec
	bridgeEventsTotal  *prometheus.CounterVec
}

// NewEngineMetrics creates and registers the metrics on registry.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	m.StateChanged(engine.StateUninitialized, engine.StateUninitialized)
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.blocksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_processed_total",
		Help:      "Total number of audio blocks rendered",
	})
	m.framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_processed_total",
		Help:      "Total number of frames rendered",
	})
	m.framesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Frames written as silence because the block exceeded capacity",
	})
	m.blockDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "block_duration_seconds",
		Help:      "Wall time spent rendering one block",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14), // 10µs to ~80ms
	})

	m.rejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_rejected_total",
		Help:      "Process calls rejected by the engine",
	}, []string{"reason"})
	m.rejectedBusy = m.rejectionsTotal.WithLabelValues("busy")
	m.rejectedNotInit = m.rejectionsTotal.WithLabelValues("not_initialized")
	m.rejectedOther = m.rejectionsTotal.WithLabelValues("other")

	m.parameterUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parameter_updates_total",
		Help:      "Published parameter sets",
	}, []string{"result"}) // result: applied, clamped

	m.stateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "engine_state",
		Help:      "Current engine lifecycle state (1 for the active state)",
	}, []string{"state"})

	m.underrunFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "device_underrun_frames_total",
		Help:      "Frames the device callback had to fill with silence",
	})

	m.bridgeCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bridge_calls_total",
		Help:      "Bridge method invocations",
	}, []string{"module", "method", "code"})
	m.bridgeCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "bridge_call_duration_seconds",
		Help:      "Bridge method latency",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"module", "method"})
	m.bridgeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bridge_events_total",
		Help:      "Events emitted to the host runtime",
	}, []string{"event"})
}

// StateChanged implements engine.Observer.
func (m *EngineMetrics) StateChanged(_, to engine.State) {
	for _, s := range allStates {
		v := 0.0
		if s == to {
			v = 1
		}
		m.stateGauge.WithLabelValues(s.String()).Set(v)
	}
}

// ParametersUpdated implements engine.Observer.
func (m *EngineMetrics) ParametersUpdated(clamped bool) {
	result := "applied"
	if clamped {
		result = "clamped"
	}
	m.parameterUpdates.WithLabelValues(result).Inc()
}

// BlockProcessed implements engine.Observer.
func (m *EngineMetrics) BlockProcessed(frames int, elapsed time.Duration) {
	m.blocksTotal.Inc()
	m.framesTotal.Add(float64(frames))
	m.blockDuration.Observe(elapsed.Seconds())
}

// BlockRejected implements engine.Observer.
func (m *EngineMetrics) BlockRejected(err error) {
	switch {
	case errors.Is(err, engine.ErrBusy):
		m.rejectedBusy.Inc()
	case errors.Is(err, engine.ErrNotInitialized):
		m.rejectedNotInit.Inc()
	default:
		m.rejectedOther.Inc()
	}
}

// FramesDropped implements engine.Observer.
func (m *EngineMetrics) FramesDropped(frames int) {
	m.framesDroppedTotal.Add(float64(frames))
}

// RecordUnderrun counts frames a device callback filled with silence.
func (m *EngineMetrics) RecordUnderrun(frames int) {
	m.underrunFrames.Add(float64(frames))
}

// RecordBridgeCall counts one bridge invocation and its latency. code is the
// bridge error code or "OK".
func (m *EngineMetrics) RecordBridgeCall(module, method, code string, elapsed time.Duration) {
	m.bridgeCallsTotal.WithLabelValues(module, method, code).Inc()
	m.bridgeCallDuration.WithLabelValues(module, method).Observe(elapsed.Seconds())
}

// RecordBridgeEvent counts one event sent to the host.
func (m *EngineMetrics) RecordBridgeEvent(event string) {
	m.bridgeEventsTotal.WithLabelValues(event).Inc()
}

// Describe implements prometheus.Collector.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.blocksTotal.Describe(ch)
	m.framesTotal.Describe(ch)
	m.framesDroppedTotal.Describe(ch)
	m.blockDuration.Describe(ch)
	m.rejectionsTotal.Describe(ch)
	m.parameterUpdates.Describe(ch)
	m.stateGauge.Describe(ch)
	m.underrunFrames.Describe(ch)
	m.bridgeCallsTotal.Describe(ch)
	m.bridgeCallDuration.Describe(ch)
	m.bridgeEventsTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.blocksTotal.Collect(ch)
	m.framesTotal.Collect(ch)
	m.framesDroppedTotal.Collect(ch)
	m.blockDuration.Collect(ch)
	m.rejectionsTotal.Collect(ch)
	m.parameterUpdates.Collect(ch)
	m.stateGauge.Collect(ch)
	m.underrunFrames.Collect(ch)
	m.bridgeCallsTotal.Collect(ch)
	m.bridgeCallDuration.Collect(ch)
	m.bridgeEventsTotal.Collect(ch)
}

var _ engine.Observer = (*EngineMetrics)(nil)
