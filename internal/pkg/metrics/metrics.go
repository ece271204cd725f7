package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	SyncAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainsync_sync_attempts_total",
		Help: "The total number of sync attempts by action and outcome",
	}, []string{"action", "outcome"})

	ERPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainsync_erp_request_duration_seconds",
		Help:    "Latency of outbound ERP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	AuditLogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainsync_audit_log_entries",
		Help: "Current number of entries held in the in-memory audit log",
	})

	SchedulerSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainsync_scheduler_skipped_total",
		Help: "Scheduled runs skipped because the previous run was still in flight",
	}, []string{"job"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainsync_http_request_duration_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

func Outcome(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
