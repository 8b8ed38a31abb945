// Package types holds the wire/storage representation of the four entity
// kinds the coordinator manages: WorkItem, Agent, Span, and
// CompletedWorkRecord. These are plain data types; behavior and invariants
// live in pkg/claimengine.
package types

// Priority is the scheduling priority of a WorkItem.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// priorityRank gives the total order critical > high > medium > low used to
// sort claim candidates.
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Rank returns the sort rank for p; unknown priorities sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// WorkStatus is the lifecycle status of a WorkItem.
type WorkStatus string

const (
	WorkPending   WorkStatus = "pending"
	WorkActive    WorkStatus = "active"
	WorkBlocked   WorkStatus = "blocked"
	WorkCompleted WorkStatus = "completed"
	WorkFailed    WorkStatus = "failed"
	WorkCancelled WorkStatus = "cancelled"
)

// Terminal reports whether s is one of the WorkItem terminal statuses
// (I5: completed, failed, cancelled admit no further mutation).
func (s WorkStatus) Terminal() bool {
	switch s {
	case WorkCompleted, WorkFailed, WorkCancelled:
		return true
	default:
		return false
	}
}

// Claimed reports whether s counts towards an agent's current_workload
// (A2: active or blocked).
func (s WorkStatus) Claimed() bool {
	return s == WorkActive || s == WorkBlocked
}

// WorkItem is one unit of work with a lifecycle (spec.md §3).
type WorkItem struct {
	WorkID            string     `json:"work_id"`
	WorkType          string     `json:"work_type"`
	Description       string     `json:"description"`
	Priority          Priority   `json:"priority"`
	Team              string     `json:"team"`
	Status            WorkStatus `json:"status"`
	AssignedAgentID   string     `json:"assigned_agent_id,omitempty"`
	ProgressPercent   int        `json:"progress_percent"`
	SubStatus         string     `json:"sub_status,omitempty"`
	CreatedAt         string     `json:"created_at"`
	ClaimedAt         string     `json:"claimed_at,omitempty"`
	StartedAt         string     `json:"started_at,omitempty"`
	CompletedAt       string     `json:"completed_at,omitempty"`
	Result            string     `json:"result,omitempty"`
	VelocityPoints    int        `json:"velocity_points,omitempty"`
	BlockReason       string     `json:"block_reason,omitempty"`
	TraceID           string     `json:"trace_id"`
	EstimatedDuration string     `json:"estimated_duration,omitempty"`
}

// AgentStatus is the lifecycle status of an Agent.
type AgentStatus string

const (
	AgentRegistering AgentStatus = "registering"
	AgentActive      AgentStatus = "active"
	AgentBusy        AgentStatus = "busy"
	AgentIdle        AgentStatus = "idle"
	AgentMaintenance AgentStatus = "maintenance"
	AgentOffline     AgentStatus = "offline"
)

// Agent is a logical worker identity registered with the coordinator
// (spec.md §3).
type Agent struct {
	AgentID         string      `json:"agent_id"`
	Team            string      `json:"team"`
	Role            string      `json:"role"`
	CapacityMax     int         `json:"capacity_max"`
	CurrentWorkload int         `json:"current_workload"`
	Status          AgentStatus `json:"status"`
	Specialization  string      `json:"specialization,omitempty"`
	LastHeartbeatAt string      `json:"last_heartbeat_at"`
	RegisteredAt    string      `json:"registered_at"`
}

// SpanStatus is the terminal state recorded for a Span.
type SpanStatus string

const (
	SpanStarted SpanStatus = "started"
	SpanOK      SpanStatus = "ok"
	SpanError   SpanStatus = "error"
	SpanTimeout SpanStatus = "timeout"
)

// Span is one record of one operation in the authoritative append-only log
// (spec.md §3).
type Span struct {
	TraceID       string            `json:"trace_id"`
	SpanID        string            `json:"span_id"`
	ParentSpanID  string            `json:"parent_span_id,omitempty"`
	OperationName string            `json:"operation_name"`
	ServiceName   string            `json:"service_name"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time,omitempty"`
	DurationMs    int64             `json:"duration_ms,omitempty"`
	Status        SpanStatus        `json:"status"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// CompletedWorkRecord is a WorkItem in a terminal status, archived into the
// completed-log document (spec.md §3).
type CompletedWorkRecord struct {
	WorkItem
	DurationMs int64 `json:"duration_ms"`
}
