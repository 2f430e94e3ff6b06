package docdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for document service operations.
var (
	docdbRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docdb_requests_total",
		Help: "Total document service requests by operation and status",
	}, []string{"operation", "status"})

	docdbRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docdb_request_duration_seconds",
		Help:    "Document service request duration in seconds by operation, retries included",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	docdbRequestCharge = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docdb_request_charge_total",
		Help: "Request units charged by operation",
	}, []string{"operation"})

	docdbErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docdb_errors_total",
		Help: "Total document service errors by class",
	}, []string{"class"})
)
