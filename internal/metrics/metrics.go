package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
)

var (
	// Tracking
	ActionsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "next_action_actions_tracked_total",
			Help: "Total number of track calls by outcome",
		},
		[]string{"result"},
	)

	TransitionsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "next_action_transitions_recorded_total",
			Help: "Total number of transition observations written",
		},
	)

	// Prediction
	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "next_action_predictions_total",
			Help: "Total number of predict calls by outcome",
		},
		[]string{"result"},
	)

	PredictionCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "next_action_prediction_candidates",
			Help:    "Number of distinct next actions returned per prediction",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	// Store
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "next_action_store_query_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "driver"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "next_action_store_query_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"operation", "driver"},
	)

	// Publishing
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "next_action_messages_published_total",
			Help: "Total number of tracked-action messages handed to the broker",
		},
		[]string{"result"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "next_action_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "next_action_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

// Outcome turns a service error into a low-cardinality result label.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "validation_error"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindStorage:
		return "storage_error"
	default:
		return "error"
	}
}

// ObserveStore records the duration of a store operation and counts failures.
func ObserveStore(operation, driver string, start time.Time, err error) {
	StoreQueryDuration.WithLabelValues(operation, driver).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation, driver).Inc()
	}
}

// ObserveRequest records an API request.
func ObserveRequest(method, endpoint string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
