package interceptors

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/agentwire/agentwire-go/messaging"
)

var (
	metricMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentwire",
		Subsystem: "messaging",
		Name:      "messages_processed_total",
		Help:      "Inbound messages handled, by type and outcome.",
	}, []string{"type", "outcome"})
	metricProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentwire",
		Subsystem: "messaging",
		Name:      "processing_duration_seconds",
		Help:      "Handler wall time per inbound message.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"type"})
)

// MetricsInterceptor records per-type message counters and handler latency.
type MetricsInterceptor struct{}

// NewMetricsInterceptor creates a metrics interceptor.
func NewMetricsInterceptor() *MetricsInterceptor {
	return &MetricsInterceptor{}
}

// Intercept implements Interceptor
func (i *MetricsInterceptor) Intercept(ctx context.Context, msg contracts.Message, next messaging.MessageHandler) error {
	start := time.Now()
	err := next.Handle(ctx, msg)
	metricProcessingDuration.WithLabelValues(msg.GetType()).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metricMessagesProcessed.WithLabelValues(msg.GetType(), outcome).Inc()
	return err
}

// Name implements Interceptor
func (i *MetricsInterceptor) Name() string {
	return "MetricsInterceptor"
}
