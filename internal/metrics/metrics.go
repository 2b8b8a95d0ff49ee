package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homeserve",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homeserve",
			Name:      "booking_transitions_total",
			Help:      "Applied booking transitions by edge.",
		},
		[]string{"from", "to"},
	)

	transitionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homeserve",
			Name:      "booking_transition_conflicts_total",
			Help:      "Updates lost to a concurrent version change.",
		},
	)

	otpIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homeserve",
			Name:      "completion_codes_issued_total",
			Help:      "Completion codes generated (initial and re-issued).",
		},
	)

	otpVerify = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homeserve",
			Name:      "completion_code_checks_total",
			Help:      "Completion code verification attempts by outcome.",
		},
		[]string{"result"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homeserve",
			Name:      "notifications_sent_total",
			Help:      "Notification deliveries by task type and outcome.",
		},
		[]string{"task_type", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			transitions,
			transitionConflicts,
			otpIssued,
			otpVerify,
			notificationsSent,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition records an applied edge.
func IncTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// IncTransitionConflict records a version check loss.
func IncTransitionConflict() {
	transitionConflicts.Inc()
}

// IncOtpIssued records a generated completion code.
func IncOtpIssued() {
	otpIssued.Inc()
}

// IncOtpVerify records a verification outcome: ok, mismatch, expired, exhausted.
func IncOtpVerify(result string) {
	otpVerify.WithLabelValues(result).Inc()
}

// IncNotification records a delivery attempt outcome.
func IncNotification(taskType, result string) {
	notificationsSent.WithLabelValues(taskType, result).Inc()
}
