package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdb_cache_lookups_total",
			Help: "Cache lookups by resource kind and outcome (fresh, stale, miss)",
		},
		[]string{"kind", "state"},
	)

	conditionalRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_cache_conditional_requests_total",
			Help: "Reads sent with If-None-Match for a stale entry",
		},
	)

	notModified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_cache_not_modified_total",
			Help: "Stale entries the service confirmed with 304 Not Modified",
		},
	)

	bytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_cache_written_bytes_total",
			Help: "Bytes written to Redis by the read cache",
		},
	)

	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdb_cache_errors_total",
			Help: "Cache failures by operation",
		},
		[]string{"operation"},
	)
)
