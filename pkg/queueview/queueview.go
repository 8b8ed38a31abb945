// Package queueview implements the coordinator's read-only queries:
// list_work, queue_depth, dashboard, health_score. Every query takes a
// single ReadSnapshot and never blocks a mutating operation longer than
// that snapshot (§4.6).
package queueview

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/workclaim/pkg/log"
	"github.com/cuemby/workclaim/pkg/metrics"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
)

// View answers read-only queries against a Store.
type View struct {
	store *statestore.Store
	cache *statestore.DashboardCache
}

// New constructs a View. cache may be nil; Dashboard/HealthScore then
// recompute on every call instead of memoizing between maintenance ticks.
func New(store *statestore.Store, cache *statestore.DashboardCache) *View {
	return &View{store: store, cache: cache}
}

// Filter narrows ListWork's result. Empty fields match anything.
type Filter struct {
	Status          types.WorkStatus
	Priority        types.Priority
	Team            string
	AssignedAgentID string
	WorkType        string
}

func (f Filter) matches(w types.WorkItem) bool {
	if f.Status != "" && w.Status != f.Status {
		return false
	}
	if f.Priority != "" && w.Priority != f.Priority {
		return false
	}
	if f.Team != "" && w.Team != f.Team {
		return false
	}
	if f.AssignedAgentID != "" && w.AssignedAgentID != f.AssignedAgentID {
		return false
	}
	if f.WorkType != "" && w.WorkType != f.WorkType {
		return false
	}
	return true
}

// ListWork returns every WorkItem (active-claims, and completed-log when
// filter.Status is empty or names a terminal status) matching filter.
func (v *View) ListWork(filter Filter) ([]types.WorkItem, error) {
	scope := statestore.Scope{statestore.DocActiveClaims}
	if filter.Status == "" || filter.Status.Terminal() {
		scope = append(scope, statestore.DocCompletedLog)
	}
	snap, err := v.store.ReadSnapshot(scope)
	if err != nil {
		return nil, err
	}

	var out []types.WorkItem
	for _, w := range snap.ActiveClaims {
		if filter.matches(w) {
			out = append(out, w)
		}
	}
	for _, c := range snap.CompletedLog {
		if filter.matches(c.WorkItem) {
			out = append(out, c.WorkItem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkID < out[j].WorkID })
	return out, nil
}

// QueueDepth returns the count of pending items, optionally restricted to
// team.
func (v *View) QueueDepth(team string) (int, error) {
	snap, err := v.store.ReadSnapshot(statestore.Scope{statestore.DocActiveClaims})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, w := range snap.ActiveClaims {
		if w.Status != types.WorkPending {
			continue
		}
		if team != "" && w.Team != team {
			continue
		}
		n++
	}
	return n, nil
}

// TeamAggregate summarizes one team's capacity vs. workload for Dashboard.
type TeamAggregate struct {
	Team            string `json:"team"`
	CapacityMax     int    `json:"capacity_max"`
	CurrentWorkload int    `json:"current_workload"`
}

// Dashboard aggregates counts by status, per-team capacity vs. workload,
// the top-N stale blocked items, and completion rate over the last window
// (§4.6).
type Dashboard struct {
	CountsByStatus   map[types.WorkStatus]int `json:"counts_by_status"`
	Teams            []TeamAggregate          `json:"teams"`
	StaleBlocked     []types.WorkItem         `json:"stale_blocked"`
	CompletionWindow string                   `json:"completion_window"`
	CompletedInLast  int                      `json:"completed_in_last_window"`
	LockMode         string                   `json:"lock_mode"`
}

// staleBlockedTopN bounds how many stale blocked items Dashboard surfaces.
const staleBlockedTopN = 10

// cacheFreshness bounds how long a memoized Dashboard/HealthScore answer is
// served without a fresh ReadSnapshot. It is deliberately much shorter than
// the shortest maintenance cadence (health_check's 15 minutes, §4.7) so the
// cache only absorbs bursts of back-to-back CLI/dashboard calls between
// ticks rather than masking real state changes.
const cacheFreshness = 30 * time.Second

// cachedDashboard is the envelope DashboardCache stores under "dashboard",
// carrying the time the snapshot was taken so reads can judge staleness.
type cachedDashboard struct {
	CachedAt  time.Time `json:"cached_at"`
	Dashboard Dashboard `json:"dashboard"`
}

// Dashboard computes the aggregate report described in §4.6. window bounds
// how far back CompletedInLast looks. A cache hit within cacheFreshness
// skips the ReadSnapshot entirely, per §4.3's memoization rationale for
// DashboardCache.
func (v *View) Dashboard(window time.Duration) (Dashboard, error) {
	if v.cache != nil {
		var cached cachedDashboard
		if found, err := v.cache.Get("dashboard", &cached); err == nil && found && time.Since(cached.CachedAt) < cacheFreshness {
			return cached.Dashboard, nil
		}
	}

	snap, err := v.store.ReadSnapshot(statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry, statestore.DocCompletedLog})
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		CountsByStatus:   map[types.WorkStatus]int{},
		CompletionWindow: window.String(),
		LockMode:         string(v.store.LockMode()),
	}

	for _, w := range snap.ActiveClaims {
		d.CountsByStatus[w.Status]++
		metrics.WorkItemsTotal.WithLabelValues(string(w.Status)).Set(float64(d.CountsByStatus[w.Status]))
		if w.Status == types.WorkBlocked {
			d.StaleBlocked = append(d.StaleBlocked, w)
		}
	}

	sort.Slice(d.StaleBlocked, func(i, j int) bool { return d.StaleBlocked[i].ClaimedAt < d.StaleBlocked[j].ClaimedAt })
	if len(d.StaleBlocked) > staleBlockedTopN {
		d.StaleBlocked = d.StaleBlocked[:staleBlockedTopN]
	}

	teamAgg := map[string]*TeamAggregate{}
	agentStatusCounts := map[types.AgentStatus]int{}
	for _, a := range snap.AgentRegistry {
		agentStatusCounts[a.Status]++
		agg, ok := teamAgg[a.Team]
		if !ok {
			agg = &TeamAggregate{Team: a.Team}
			teamAgg[a.Team] = agg
		}
		agg.CapacityMax += a.CapacityMax
		agg.CurrentWorkload += a.CurrentWorkload
	}
	for status, n := range agentStatusCounts {
		metrics.AgentsTotal.WithLabelValues(string(status)).Set(float64(n))
	}
	for _, agg := range teamAgg {
		d.Teams = append(d.Teams, *agg)
	}
	sort.Slice(d.Teams, func(i, j int) bool { return d.Teams[i].Team < d.Teams[j].Team })

	// Render the just-updated gauges to the node_exporter textfile
	// collector's scrape target (§4.6 domain wiring). Best-effort: a
	// failure here never blocks the dashboard query itself.
	if err := metrics.WriteTextfile(filepath.Join(v.store.Dir(), "metrics.prom")); err != nil {
		log.WithComponent("queueview").Warn().Err(err).Msg("failed to write metrics textfile")
	}

	cutoff := time.Now().Add(-window).UTC().Format("2006-01-02T15:04:05.000Z07:00")
	for _, c := range snap.CompletedLog {
		d.CountsByStatus[c.Status]++
		if c.CompletedAt >= cutoff {
			d.CompletedInLast++
		}
	}

	if v.cache != nil {
		_ = v.cache.Put("dashboard", cachedDashboard{CachedAt: time.Now(), Dashboard: d})
	}
	return d, nil
}

// cachedHealthScore is the envelope DashboardCache stores under
// "health_score", carrying the time the snapshot was taken so reads can
// judge staleness.
type cachedHealthScore struct {
	CachedAt time.Time `json:"cached_at"`
	Score    int       `json:"score"`
}

// HealthScore returns a 0-100 score derived from the blocked share of
// active-claims and the offline share of agents (the number of pending
// items does not enter it) — consumed by maintenance's health_check
// job to decide whether to raise cadence. A cache hit within cacheFreshness
// skips the ReadSnapshot entirely, per §4.3's memoization rationale for
// DashboardCache.
func (v *View) HealthScore() (int, error) {
	if v.cache != nil {
		var cached cachedHealthScore
		if found, err := v.cache.Get("health_score", &cached); err == nil && found && time.Since(cached.CachedAt) < cacheFreshness {
			return cached.Score, nil
		}
	}

	snap, err := v.store.ReadSnapshot(statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry})
	if err != nil {
		return 0, err
	}

	total := len(snap.ActiveClaims)
	if total == 0 {
		return 100, nil
	}

	blocked := 0
	for _, w := range snap.ActiveClaims {
		if w.Status == types.WorkBlocked {
			blocked++
		}
	}

	offline := 0
	for _, a := range snap.AgentRegistry {
		if a.Status == types.AgentOffline {
			offline++
		}
	}
	agentCount := len(snap.AgentRegistry)

	score := 100
	score -= (blocked * 100) / total / 2
	if agentCount > 0 {
		score -= (offline * 100) / agentCount / 4
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	if v.cache != nil {
		_ = v.cache.Put("health_score", cachedHealthScore{CachedAt: time.Now(), Score: score})
	}
	return score, nil
}
