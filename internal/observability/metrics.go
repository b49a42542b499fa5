package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "youfm_active_runs",
		Help: "Number of pipeline runs in progress",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youfm_runs_total",
		Help: "Total number of pipeline runs by final status",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "youfm_run_duration_seconds",
		Help:    "Wall time of a pipeline run in seconds",
		Buckets: []float64{5, 10, 30, 60, 120, 300, 600},
	})

	// Stage metrics
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "youfm_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	stageOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youfm_stage_outcomes_total",
		Help: "Stage outcomes by stage and status",
	}, []string{"stage", "status"})

	// Source metrics
	sourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youfm_source_fetches_total",
		Help: "Source fetches by source and fetch state",
	}, []string{"source", "state"})

	sourceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "youfm_source_latency_seconds",
		Help:    "Source fetch latency including retries in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"source"})

	// AI metrics
	aiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youfm_ai_requests_total",
		Help: "Total number of consolidation backend requests",
	}, []string{"status"})

	aiLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "youfm_ai_latency_seconds",
		Help:    "Consolidation backend latency in seconds",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
	})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youfm_tts_requests_total",
		Help: "Total number of TTS chunk requests",
	}, []string{"provider", "status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "youfm_tts_latency_seconds",
		Help:    "TTS chunk latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	audioSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "youfm_audio_seconds_total",
		Help: "Total seconds of briefing audio synthesized",
	})

	// Delivery metrics
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youfm_deliveries_total",
		Help: "Deliveries by requested destination and status",
	}, []string{"destination", "status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youfm_errors_total",
		Help: "Total number of recorded errors",
	}, []string{"stage", "kind"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "youfm_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youfm_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RunMetrics tracks metrics for a single pipeline run
type RunMetrics struct {
	runID       string
	startTime   time.Time
	stageStarts map[string]time.Time
	mu          sync.Mutex
}

// NewRunMetrics creates a new metrics tracker for a run
func NewRunMetrics(runID string) *RunMetrics {
	return &RunMetrics{
		runID:       runID,
		startTime:   time.Now(),
		stageStarts: make(map[string]time.Time),
	}
}

// RecordRunStart records the start of a run
func (m *RunMetrics) RecordRunStart() {
	activeRuns.Inc()
}

// RecordRunEnd records the end of a run with its final status
func (m *RunMetrics) RecordRunEnd(status string) {
	activeRuns.Dec()
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordStageStart records the start of a stage
func (m *RunMetrics) RecordStageStart(stage string) {
	m.mu.Lock()
	m.stageStarts[stage] = time.Now()
	m.mu.Unlock()
}

// RecordStageEnd records the end of a stage and returns its duration
func (m *RunMetrics) RecordStageEnd(stage, status string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	var elapsed time.Duration
	if start, ok := m.stageStarts[stage]; ok {
		elapsed = time.Since(start)
		stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
	stageOutcomes.WithLabelValues(stage, status).Inc()
	return elapsed
}

// RecordError records a stage-tagged error
func RecordError(stage, kind string) {
	errorsTotal.WithLabelValues(stage, kind).Inc()
}

// RecordSourceFetch records the outcome of one source fetch
func RecordSourceFetch(source, state string, elapsed time.Duration) {
	sourceFetches.WithLabelValues(source, state).Inc()
	sourceLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// RecordAIRequest records one consolidation backend call
func RecordAIRequest(success bool, elapsed time.Duration) {
	aiRequests.WithLabelValues(statusLabel(success)).Inc()
	aiLatency.Observe(elapsed.Seconds())
}

// RecordTTSRequest records one TTS chunk call
func RecordTTSRequest(provider string, success bool, elapsed time.Duration) {
	ttsRequests.WithLabelValues(provider, statusLabel(success)).Inc()
	ttsLatency.Observe(elapsed.Seconds())
}

// RecordAudioSeconds records synthesized audio length
func RecordAudioSeconds(seconds float64) {
	audioSeconds.Add(seconds)
}

// RecordDelivery records a delivery outcome
func RecordDelivery(destination, status string) {
	deliveries.WithLabelValues(destination, status).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
