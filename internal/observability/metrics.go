package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courtyard_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// PushDelivered counts push messages accepted by FCM, by notification type.
	PushDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_push_delivered_total",
		Help: "Total number of push messages accepted by the provider",
	}, []string{"type"})

	// PushFailed counts push messages rejected by FCM, by notification type.
	PushFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_push_failed_total",
		Help: "Total number of push messages rejected by the provider",
	}, []string{"type"})

	// PushTokensDisabled counts device tokens disabled after provider rejection.
	PushTokensDisabled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtyard_push_tokens_disabled_total",
		Help: "Total number of device tokens disabled after provider rejection",
	})

	// NotificationsDeduped counts notifications skipped by reference dedupe.
	NotificationsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtyard_notifications_deduped_total",
		Help: "Total number of notifications suppressed as duplicates",
	})

	// WebSocketTopicConnections is the gauge of connections per topic.
	WebSocketTopicConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courtyard_websocket_topic_connections",
		Help: "Number of WebSocket connections per topic",
	}, []string{"topic"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courtyard_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

const queryStartKey = "observability:query_start"

// QueryLatency is a gorm plugin that feeds DatabaseQueryLatency with the
// duration of every statement the connection runs. Registered once in
// database.Connect; repositories need no per-call instrumentation.
type QueryLatency struct{}

func (QueryLatency) Name() string { return "query_latency" }

func (QueryLatency) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	for _, err := range []error{
		cb.Create().Before("gorm:create").Register("latency:before_create", startTimer),
		cb.Create().After("gorm:create").Register("latency:after_create", observe("create")),
		cb.Query().Before("gorm:query").Register("latency:before_query", startTimer),
		cb.Query().After("gorm:query").Register("latency:after_query", observe("query")),
		cb.Update().Before("gorm:update").Register("latency:before_update", startTimer),
		cb.Update().After("gorm:update").Register("latency:after_update", observe("update")),
		cb.Delete().Before("gorm:delete").Register("latency:before_delete", startTimer),
		cb.Delete().After("gorm:delete").Register("latency:after_delete", observe("delete")),
		cb.Row().Before("gorm:row").Register("latency:before_row", startTimer),
		cb.Row().After("gorm:row").Register("latency:after_row", observe("row")),
		cb.Raw().Before("gorm:raw").Register("latency:before_raw", startTimer),
		cb.Raw().After("gorm:raw").Register("latency:after_raw", observe("raw")),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		table := db.Statement.Table
		if table == "" {
			table = "raw"
		}
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
