// Package metrics holds the Prometheus instruments for pipeline and oracle outcomes.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
	"github.com/ekaya-inc/election-assistant/pkg/llm"
	"github.com/ekaya-inc/election-assistant/pkg/models"
	"github.com/ekaya-inc/election-assistant/pkg/services"
)

const namespace = "election_assistant"

// kindOK labels executions that returned rows.
const kindOK = "ok"

// Metrics records pipeline outcomes and oracle calls.
type Metrics struct {
	questions          *prometheus.CounterVec
	generationAttempts *prometheus.CounterVec
	executionOutcomes  *prometheus.CounterVec
	disambiguations    *prometheus.CounterVec
	oracleDuration     *prometheus.HistogramVec
	oracleErrors       *prometheus.CounterVec
	circuitState       prometheus.Gauge
}

var (
	_ services.PipelineRecorder = (*Metrics)(nil)
	_ llm.Recorder              = (*Metrics)(nil)
)

// New registers the instruments against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		questions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions received, by routed intent.",
		}, []string{"intent"}),

		generationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Query generation attempts, by attempt number.",
		}, []string{"attempt"}),

		executionOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_outcomes_total",
			Help:      "Gated query executions, by outcome kind.",
		}, []string{"kind"}),

		disambiguations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disambiguation_total",
			Help:      "Entity disambiguation outcomes.",
		}, []string{"status"}),

		oracleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_duration_seconds",
			Help:      "Duration of text-generation oracle calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation"}),

		oracleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_errors_total",
			Help:      "Failed oracle calls, by error type.",
		}, []string{"type"}),

		circuitState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_circuit_state",
			Help:      "Oracle circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),
	}
}

func (m *Metrics) ObserveQuestion(intent models.Intent) {
	m.questions.WithLabelValues(string(intent)).Inc()
}

func (m *Metrics) ObserveDisambiguation(status models.DisambiguationStatus) {
	m.disambiguations.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveGenerationAttempt(attempt int) {
	m.generationAttempts.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

func (m *Metrics) ObserveExecution(kind apperrors.ErrorKind) {
	label := string(kind)
	if kind == apperrors.KindNone {
		label = kindOK
	}
	m.executionOutcomes.WithLabelValues(label).Inc()
}

// ObserveOracleCall records one oracle call. errType is empty on success.
func (m *Metrics) ObserveOracleCall(operation string, elapsed time.Duration, errType string) {
	m.oracleDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if errType != "" {
		m.oracleErrors.WithLabelValues(errType).Inc()
	}
}

func (m *Metrics) ObserveCircuitState(state llm.CircuitState) {
	m.circuitState.Set(float64(state))
}
