package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservd",
			Name:      "reservations_created_total",
			Help:      "Count of reservations created by origin (single, recurring).",
		},
		[]string{"origin"},
	)

	assignmentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reservd",
			Name:      "assignments_created_total",
			Help:      "Count of recurring assignments materialized.",
		},
	)

	assignmentsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reservd",
			Name:      "assignments_cancelled_total",
			Help:      "Count of recurring assignments cancelled.",
		},
	)

	conflictsReported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reservd",
			Name:      "booking_conflicts_total",
			Help:      "Count of booking requests rejected for an overlap conflict.",
		},
	)

	obligationSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservd",
			Name:      "obligations_settled_total",
			Help:      "Count of obligation transitions by outcome (paid, refunded, cancelled).",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationsCreated, assignmentsCreated, assignmentsCancelled, conflictsReported, obligationSettled)
	})
}

func IncReservationCreated(origin string) {
	reservationsCreated.WithLabelValues(origin).Inc()
}

func AddReservationsCreated(origin string, n int) {
	reservationsCreated.WithLabelValues(origin).Add(float64(n))
}

func IncAssignmentCreated() {
	assignmentsCreated.Inc()
}

func IncAssignmentCancelled() {
	assignmentsCancelled.Inc()
}

func IncConflictReported() {
	conflictsReported.Inc()
}

func IncObligationSettled(outcome string) {
	obligationSettled.WithLabelValues(outcome).Inc()
}
