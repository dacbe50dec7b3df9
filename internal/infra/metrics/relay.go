package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookEventsTotal,
		webhookDroppedTotal,
		notificationsTotal,
		callbackOutcomesTotal,
		callbackTruncationsTotal,
		intakePagesCreatedTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhook_events_total",
			Help: "Inbound webhook events by type.",
		},
		[]string{"type"},
	)

	webhookDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhook_dropped_total",
			Help: "Webhook events dropped without a notification, by reason.",
		},
		[]string{"reason"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_notifications_total",
			Help: "Channel notifications by result (sent/failed).",
		},
		[]string{"result"},
	)

	callbackOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_callback_outcomes_total",
			Help: "Status button presses by terminal state (applied/rejected/failed).",
		},
		[]string{"outcome"},
	)

	callbackTruncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_callback_truncations_total",
			Help: "Status names truncated to fit the callback data limit.",
		},
	)

	intakePagesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_intake_pages_created_total",
			Help: "Documents created from inbound chat messages.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncWebhookEvent(eventType string) {
	webhookEventsTotal.WithLabelValues(norm(eventType)).Inc()
}

func IncWebhookDropped(reason string) {
	webhookDroppedTotal.WithLabelValues(norm(reason)).Inc()
}

func IncNotification(result string) {
	notificationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncCallbackOutcome(outcome string) {
	callbackOutcomesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncCallbackTruncation() { callbackTruncationsTotal.Inc() }

func IncIntakePageCreated() { intakePagesCreatedTotal.Inc() }
