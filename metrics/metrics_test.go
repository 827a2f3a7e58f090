package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/metrics"
)

func TestWorkflow_CountsTransitions(t *testing.T) {
	m := metrics.Workflow{}
	before := testutil.ToFloat64(metrics.Transitions.WithLabelValues("director", "rejected"))

	m.Transition(generic.StageDirector, generic.StatusRejected)
	m.Transition(generic.StageDirector, generic.StatusRejected)

	assert.Equal(t, before+2, testutil.ToFloat64(metrics.Transitions.WithLabelValues("director", "rejected")))
}

func TestWorkflow_CountsClampsAndFailures(t *testing.T) {
	m := metrics.Workflow{}
	clamps := testutil.ToFloat64(metrics.LedgerClamps.WithLabelValues("approved"))
	failures := testutil.ToFloat64(metrics.NotificationFailures.WithLabelValues(string(generic.PurposeApproval)))

	m.LedgerClamped("approved")
	m.NotificationFailed(generic.PurposeApproval)

	assert.Equal(t, clamps+1, testutil.ToFloat64(metrics.LedgerClamps.WithLabelValues("approved")))
	assert.Equal(t, failures+1, testutil.ToFloat64(metrics.NotificationFailures.WithLabelValues(string(generic.PurposeApproval))))
}

func TestObserveJob_RecordsErrors(t *testing.T) {
	metrics.ObserveJob("directory_sync", time.Now(), nil)
	metrics.ObserveJob("directory_sync", time.Now(), errors.New("ldap down"))

	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "rewards_job_errors_total", "rewards_job_runs_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
}
