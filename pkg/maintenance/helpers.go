package maintenance

import (
	"github.com/cuemby/workclaim/pkg/metrics"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

func outcomeStatus(err error) types.SpanStatus {
	if err == nil {
		return types.SpanOK
	}
	if workerr.Is(err, workerr.Timeout) {
		return types.SpanTimeout
	}
	return types.SpanError
}

func recordMaintenanceMetrics(job string, status types.SpanStatus, elapsedSeconds float64) {
	outcome := "ok"
	if status != types.SpanOK {
		outcome = "error"
	}
	metrics.MaintenanceRunsTotal.WithLabelValues(job, outcome).Inc()
	metrics.MaintenanceDuration.WithLabelValues(job).Observe(elapsedSeconds)
}
