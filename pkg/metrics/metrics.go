package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// MessagesSent messages appended, by tenant
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_messages_sent_total",
		Help: "Total number of messages sent, by tenant.",
	}, []string{"tenant"})

	// ActiveConnections live websocket connections, by tenant
	ActiveConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "realtime_active_connections",
		Help: "Websocket connections currently registered in the hub.",
	}, []string{"tenant"})

	// NotificationsDelivered new_message frames written
	NotificationsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_notifications_delivered_total",
		Help: "new_message frames written to a live connection.",
	})

	// NotificationsDropped new_message frames that failed to write
	NotificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_notifications_dropped_total",
		Help: "new_message frames dropped because the write failed.",
	})

	// EmailsQueued e-mail notification jobs published, by outcome
	EmailsQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_jobs_total",
		Help: "E-mail notification jobs, by outcome (queued, cooldown, failed).",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(ActiveConnections)
	prometheus.MustRegister(NotificationsDelivered)
	prometheus.MustRegister(NotificationsDropped)
	prometheus.MustRegister(EmailsQueued)
}
