package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/workclaim/pkg/log"
	"github.com/cuemby/workclaim/pkg/metrics"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
)

// runHealthCheck computes health_score (which HealthScore writes to the
// dashboard cache when one is wired) and records in s.raised whether the
// score is below HealthScoreThreshold, logging a warning when it first
// drops. The other jobs' cadences are not changed.
func (s *Scheduler) runHealthCheck(ctx context.Context) error {
	score, err := s.view.HealthScore()
	if err != nil {
		return err
	}

	s.mu.Lock()
	wasRaised := s.raised
	nowRaised := score < s.cfg.HealthScoreThreshold
	s.raised = nowRaised
	s.mu.Unlock()

	if nowRaised && !wasRaised {
		log.WithComponent("maintenance").Warn().
			Int("health_score", score).
			Int("threshold", s.cfg.HealthScoreThreshold).
			Msg("health score below threshold; other jobs should run more frequently until it recovers")
	}
	return nil
}

// runArchiveCompleted moves CompletedWorkRecords older than the retention
// window into a dated archive file.
func (s *Scheduler) runArchiveCompleted(ctx context.Context) error {
	_, err := s.store.ArchiveCompleted(s.cfg.CompletedRetentionDays)
	return err
}

// runRotateSpanLog rotates the span log if it exceeds the configured size.
func (s *Scheduler) runRotateSpanLog(ctx context.Context) error {
	if s.spanWriter == nil {
		return nil
	}
	_, err := s.spanWriter.RotateIfExceeds(s.cfg.SpanLogMaxBytes)
	return err
}

// runRealityVerify checks the snapshot-decidable invariants (see
// checkInvariants) and emits one error span per violation, attempting no
// repair.
func (s *Scheduler) runRealityVerify(ctx context.Context) error {
	snap, err := s.store.ReadSnapshot(statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry})
	if err != nil {
		return err
	}

	violations := checkInvariants(snap)
	for _, v := range violations {
		metrics.InvariantViolationsTotal.WithLabelValues(v.tag).Inc()
		h := s.tracer.StartSpan(ctx, "maintenance.reality_verify", map[string]string{
			"invariant": v.tag,
			"detail":    v.detail,
		})
		s.tracer.EndSpan(h, types.SpanError, nil)
	}
	if len(violations) > 0 {
		return fmt.Errorf("reality_verify: %d invariant violation(s)", len(violations))
	}
	return nil
}

// runStaleHeartbeatSweep transitions agents past the heartbeat timeout to
// offline, reassigning their active work back to pending — via the claim
// engine, never by writing the files directly.
func (s *Scheduler) runStaleHeartbeatSweep(ctx context.Context) error {
	result, err := s.engine.StaleHeartbeatSweep(ctx, s.cfg.HeartbeatTimeout)
	if err != nil {
		return err
	}
	if len(result.OfflinedAgents) > 0 {
		log.WithComponent("maintenance").Info().
			Int("offlined_agents", len(result.OfflinedAgents)).
			Int("reassigned_work_items", len(result.ReassignedWorkIDs)).
			Msg("stale heartbeat sweep completed")
	}
	return nil
}

// runRebalance emits a recommendation span when max-team-workload /
// min-team-workload exceeds the configured ratio. Actual reassignment is
// out of scope unless explicitly configured (none of the CLI/config
// surfaces enable it today, matching spec §4.7's "actual reassignment only
// when configured to").
func (s *Scheduler) runRebalance(ctx context.Context) error {
	d, err := s.view.Dashboard(24 * time.Hour)
	if err != nil {
		return err
	}
	if len(d.Teams) < 2 {
		return nil
	}

	maxLoad, minLoad := -1, -1
	for _, t := range d.Teams {
		if maxLoad < 0 || t.CurrentWorkload > maxLoad {
			maxLoad = t.CurrentWorkload
		}
		if minLoad < 0 || t.CurrentWorkload < minLoad {
			minLoad = t.CurrentWorkload
		}
	}
	if minLoad == 0 {
		minLoad = 1 // avoid an unbounded ratio when a team is merely idle
	}
	ratio := float64(maxLoad) / float64(minLoad)
	if ratio > s.cfg.RebalanceRatioThreshold {
		s.tracer.LogEvent(ctx, "maintenance.rebalance", map[string]string{
			"ratio":     fmt.Sprintf("%.2f", ratio),
			"threshold": fmt.Sprintf("%.2f", s.cfg.RebalanceRatioThreshold),
		})
	}
	return nil
}

// runOptimizeWorkQueue compacts active-claims (rewrite without gaps) and
// reverifies its schema.
func (s *Scheduler) runOptimizeWorkQueue(ctx context.Context) error {
	return s.store.CompactActiveClaims()
}

// runStatusReport produces a structured daily summary and appends it to
// the span log as a single event.
func (s *Scheduler) runStatusReport(ctx context.Context) error {
	d, err := s.view.Dashboard(24 * time.Hour)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"pending":   fmt.Sprint(d.CountsByStatus[types.WorkPending]),
		"active":    fmt.Sprint(d.CountsByStatus[types.WorkActive]),
		"blocked":   fmt.Sprint(d.CountsByStatus[types.WorkBlocked]),
		"completed": fmt.Sprint(d.CountsByStatus[types.WorkCompleted]),
	}
	s.tracer.LogEvent(ctx, "maintenance.status_report", attrs)
	return nil
}
