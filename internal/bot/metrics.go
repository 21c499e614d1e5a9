package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatcher metrics, exposed alongside the HTTP metrics on /metrics.
var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Processed Telegram updates by kind.",
	}, []string{"kind"})

	updatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_dropped_total",
		Help: "Updates dropped before handling, by reason (duplicate, flood).",
	}, []string{"reason"})

	handlerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_handler_errors_total",
		Help: "Updates whose handling ended in an unexpected error or panic.",
	})
)
