package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classbook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classbook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classbook_bookings_total",
			Help: "Booking requests by outcome (confirmed, waitlisted, rejected)",
		},
		[]string{"outcome"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classbook_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
	)

	CheckInsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classbook_check_ins_total",
			Help: "Total number of recorded check-ins",
		},
	)

	WaitlistEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classbook_waitlist_events_total",
			Help: "Waitlist joins, withdrawals and promotions",
		},
		[]string{"event"},
	)

	InvariantViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classbook_invariant_violations_total",
			Help: "Capacity invariant violations detected at runtime",
		},
		[]string{"operation"},
	)

	NoShowPenaltiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classbook_no_show_penalties_total",
			Help: "No-show penalties by kind and result",
		},
		[]string{"kind", "result"},
	)

	NoShowSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classbook_no_show_sweep_duration_seconds",
			Help:    "Duration of a no-show reconciliation run for one organization",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classbook_notifications_total",
			Help: "Notifications by template kind and delivery status",
		},
		[]string{"kind", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classbook_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)

	OutboxBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classbook_outbox_backlog",
			Help: "Undispatched outbox events left after the last poll",
		},
	)

	OutboxDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classbook_outbox_dispatched_total",
			Help: "Outbox events by dispatch result",
		},
		[]string{"result"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classbook_payments_total",
			Help: "Charges requested by provider and status",
		},
		[]string{"provider", "status"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(outcome string) {
	BookingsTotal.WithLabelValues(outcome).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordCheckIn() {
	CheckInsTotal.Inc()
}

func RecordWaitlist(event string) {
	WaitlistEventsTotal.WithLabelValues(event).Inc()
}

func RecordInvariantViolation(operation string) {
	InvariantViolationsTotal.WithLabelValues(operation).Inc()
}

func RecordNoShowPenalty(kind, result string) {
	NoShowPenaltiesTotal.WithLabelValues(kind, result).Inc()
}

func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}

func RecordOutboxDispatch(result string) {
	OutboxDispatchedTotal.WithLabelValues(result).Inc()
}

func RecordPayment(provider, status string) {
	PaymentsTotal.WithLabelValues(provider, status).Inc()
}
