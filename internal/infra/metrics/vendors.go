package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		notionCallLatencyMs,
		telegramSendFailuresTotal,
	)
}

var (
	notionCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notion_call_latency_ms",
			Help:    "Notion API call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"op", "success"},
	)

	telegramSendFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_send_failures_total",
			Help: "Telegram send/edit calls that returned an error.",
		},
	)
)

func ObserveNotionCall(op string, latencyMs int64, success bool) {
	notionCallLatencyMs.WithLabelValues(norm(op), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncTelegramSendFailure() { telegramSendFailuresTotal.Inc() }
