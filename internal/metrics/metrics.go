// Package metrics exposes Prometheus instrumentation for evaluations,
// scorers and oracle calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry       *prometheus.Registry
	evaluations    *prometheus.CounterVec
	creditScore    prometheus.Histogram
	channelScore   prometheus.Histogram
	oracleDuration *prometheus.HistogramVec
	oracleFailures *prometheus.CounterVec
	degradations   *prometheus.CounterVec
}

var scoreBuckets = []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// New creates a Recorder with metric names under namespace.
func New(namespace string) *Recorder {
	registry := prometheus.NewRegistry()
	f := promauto.With(registry)

	return &Recorder{
		registry: registry,
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluations by final status.",
		}, []string{"status"}),
		creditScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "credit_risk_score",
			Help:      "Distribution of credit risk scores (0 best, 10 worst).",
			Buckets:   scoreBuckets,
		}),
		channelScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_quality_score",
			Help:      "Distribution of channel quality scores (0 best, 10 worst).",
			Buckets:   scoreBuckets,
		}),
		oracleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Time taken by scoring oracle calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"oracle"}),
		oracleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_failures_total",
			Help:      "Failed scoring oracle calls.",
		}, []string{"oracle"}),
		degradations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_degradations_total",
			Help:      "Sub-score branches that completed without a score.",
		}, []string{"branch"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Evaluation counts one finished evaluation.
func (r *Recorder) Evaluation(status string) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(status).Inc()
}

// CreditScore observes a credit risk score.
func (r *Recorder) CreditScore(score int) {
	if r == nil {
		return
	}
	r.creditScore.Observe(float64(score))
}

// ChannelScore observes a channel quality score.
func (r *Recorder) ChannelScore(score float64) {
	if r == nil {
		return
	}
	r.channelScore.Observe(score)
}

// OracleCall observes one oracle call.
func (r *Recorder) OracleCall(oracle string, took time.Duration, err error) {
	if r == nil {
		return
	}
	r.oracleDuration.WithLabelValues(oracle).Observe(took.Seconds())
	if err != nil {
		r.oracleFailures.WithLabelValues(oracle).Inc()
	}
}

// Degraded counts a branch that finished without a score.
func (r *Recorder) Degraded(branch string) {
	if r == nil {
		return
	}
	r.degradations.WithLabelValues(branch).Inc()
}
