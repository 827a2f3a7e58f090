// Package metrics registers the Prometheus collectors of the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/recognition-engine/generic"
)

var (
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards", Name: "approval_transitions_total", Help: "Approval decisions by stage and status",
	}, []string{"stage", "status"})
	LedgerClamps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards", Name: "ledger_clamped_total", Help: "Leaderboard buckets clamped at zero",
	}, []string{"bucket"})
	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards", Name: "notification_failures_total", Help: "Notifications that could not be delivered",
	}, []string{"purpose"})
	HTTPErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards", Name: "http_errors_total", Help: "Error responses by status",
	}, []string{"status"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rewards", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})

	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards", Name: "job_runs_total", Help: "Total background job runs",
	}, []string{"job"})
	jobErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards", Name: "job_errors_total", Help: "Total background job errors",
	}, []string{"job"})
	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rewards", Name: "job_duration_seconds", Help: "Background job duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

func init() {
	prometheus.MustRegister(Transitions, LedgerClamps, NotificationFailures, HTTPErrors, DBPing,
		jobRuns, jobErrors, jobDuration)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

// ObserveJob records one run of a background job.
func ObserveJob(name string, start time.Time, err error) {
	if err != nil {
		jobErrors.WithLabelValues(name).Inc()
	}
	jobRuns.WithLabelValues(name).Inc()
	jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// Workflow feeds workflow events into the collectors.
type Workflow struct{}

func (Workflow) Transition(stage generic.Stage, status generic.Status) {
	Transitions.WithLabelValues(string(stage), string(status)).Inc()
}

func (Workflow) LedgerClamped(bucket string) {
	LedgerClamps.WithLabelValues(bucket).Inc()
}

func (Workflow) NotificationFailed(p generic.Purpose) {
	NotificationFailures.WithLabelValues(string(p)).Inc()
}

var _ generic.Metrics = Workflow{}
