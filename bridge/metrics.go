package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentwire",
		Subsystem: "bridge",
		Name:      "pending_requests",
		Help:      "Number of requests currently awaiting a reply.",
	})
	metricTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentwire",
		Subsystem: "bridge",
		Name:      "timeouts_total",
		Help:      "Forward calls that expired before a reply arrived.",
	})
	metricDroppedReplies = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentwire",
		Subsystem: "bridge",
		Name:      "dropped_replies_total",
		Help:      "Inbound replies discarded because no caller was pending.",
	})
	metricTransportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentwire",
		Subsystem: "bridge",
		Name:      "transport_errors_total",
		Help:      "Outbound sends rejected by the transport.",
	})
	metricForwardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentwire",
		Subsystem: "bridge",
		Name:      "forward_duration_seconds",
		Help:      "Wall time of Forward calls, successful or not.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	})
)
