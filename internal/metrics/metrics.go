package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the dispatch service.
// It tracks the order lifecycle, the push channel and the database.
type Metrics struct {
	OrdersSubmitted   prometheus.Counter       // Counter for submitted orders
	StatusTransitions *prometheus.CounterVec   // Counter for order status changes
	Notifications     *prometheus.CounterVec   // Counter for agency notifications
	TopicOperations   *prometheus.CounterVec   // Counter for topic subscribe/unsubscribe calls
	PushDuration      *prometheus.HistogramVec // Histogram for push provider calls
	DBQueryDuration   *prometheus.HistogramVec // Histogram for database query durations
	ReportGeneration  prometheus.Histogram     // Histogram for report excel generation
	HTTPRequests      *prometheus.CounterVec   // Counter for served API requests
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		OrdersSubmitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dispatch_orders_submitted_total",
			Help: "Total number of orders submitted by the call center",
		}),
		StatusTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_order_status_transitions_total",
			Help: "Total number of order status changes",
		}, []string{"status"}), // status: sent, received, in_progress, ready, delivered, cancelled
		Notifications: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_notifications_total",
			Help: "Agency notifications by type and outcome",
		}, []string{"type", "outcome"}), // type: new_order, status_changed; outcome: success, failure
		TopicOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_topic_operations_total",
			Help: "Topic membership operations by outcome",
		}, []string{"operation", "outcome"}), // operation: subscribe, unsubscribe
		PushDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_push_duration_seconds",
			Help:    "Duration of push provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}), // operation: send, subscribe, unsubscribe
		DBQueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_db_query_duration_seconds",
			Help:    "Duration of database queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query_type"}), // query_type: 'create_order', 'update_order'
		ReportGeneration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "dispatch_report_generation_duration_seconds",
			Help: "Duration of report excel generation.",
		}),
		HTTPRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_http_requests_total",
			Help: "Served API requests by route and status code",
		}, []string{"route", "code"}),
	}
}
