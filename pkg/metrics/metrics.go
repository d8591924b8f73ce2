package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Deployment metrics
	DeploymentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "windflow_deployments_total",
			Help: "Total number of deployments by status",
		},
		[]string{"status"},
	)

	DeploymentRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "windflow_deployment_retries_total",
			Help: "Total number of deployment retry attempts",
		},
	)

	ActiveTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "windflow_active_tasks",
			Help: "Number of in-flight deployment workers",
		},
	)

	// Inventory metrics
	StacksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "windflow_stacks_total",
			Help: "Total number of stacks",
		},
	)

	TargetsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "windflow_targets_total",
			Help: "Total number of targets by status",
		},
		[]string{"status"},
	)

	// WebSocket metrics
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "windflow_ws_connections",
			Help: "Number of open WebSocket connections",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windflow_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "windflow_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(DeploymentRetriesTotal)
	prometheus.MustRegister(ActiveTasks)
	prometheus.MustRegister(StacksTotal)
	prometheus.MustRegister(TargetsTotal)
	prometheus.MustRegister(WSConnections)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
