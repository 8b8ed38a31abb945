package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/queueview"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// envelope is the structured JSON output shape the dispatcher emits when
// --json (or OUTPUT_FORMAT=json) is in effect. Field names and nesting are
// a stable contract; never rename them.
type envelope struct {
	APIVersion string      `json:"api_version"`
	RequestID  string      `json:"request_id"`
	TraceID    string      `json:"trace_id"`
	Status     envStatus   `json:"status"`
	Data       any         `json:"data,omitempty"`
	Metadata   envMetadata `json:"metadata"`
}

type envStatus struct {
	Code      string `json:"code"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

type envMetadata struct {
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	AgentID         string `json:"agent_id,omitempty"`
	Operation       string `json:"operation"`
}

// exitError carries the exit code §4.8 maps an error kind to, alongside
// the underlying error for text-mode rendering.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCodeFor maps a workerr.Kind to the exit code contract in §4.8.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	switch workerr.KindOf(err) {
	case workerr.InvalidArg:
		return 2
	case workerr.Busy:
		return 3
	case workerr.Conflict, workerr.StateConflict:
		return 4
	case workerr.NotFound:
		return 5
	case workerr.CapacityExceeded:
		return 6
	default:
		return 1
	}
}

// emit renders result (success, data may be nil) or err (failure) in the
// requested format and returns the process exit code.
func emit(jsonMode bool, op, agentID, traceID, requestID string, elapsedMs int64, data any, err error) int {
	if err != nil {
		kind := string(workerr.KindOf(err))
		if kind == "" {
			kind = "INTERNAL"
		}
		if jsonMode {
			env := envelope{
				APIVersion: "1.0",
				RequestID:  requestID,
				TraceID:    traceID,
				Status:     envStatus{Code: "error", ErrorKind: kind, Message: err.Error()},
				Metadata:   envMetadata{ExecutionTimeMs: elapsedMs, AgentID: agentID, Operation: op},
			}
			writeJSON(os.Stdout, env)
		} else {
			fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", kind, err.Error())
		}
		return exitCodeFor(err)
	}

	if jsonMode {
		env := envelope{
			APIVersion: "1.0",
			RequestID:  requestID,
			TraceID:    traceID,
			Status:     envStatus{Code: "success"},
			Data:       data,
			Metadata:   envMetadata{ExecutionTimeMs: elapsedMs, AgentID: agentID, Operation: op},
		}
		writeJSON(os.Stdout, env)
	} else if line := textLine(data); line != "" {
		fmt.Fprintln(os.Stdout, line)
	}
	return 0
}

func writeJSON(w *os.File, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// textLine renders a successful operation's result as one human-readable
// line (§4.8: text mode is "human-readable one-liners, plus exit code").
// Unknown/empty data (e.g. a bare maintenance run) renders nothing.
func textLine(data any) string {
	switch v := data.(type) {
	case nil:
		return ""
	case types.Agent:
		return fmt.Sprintf("agent %s team=%s role=%s status=%s workload=%d/%d",
			v.AgentID, v.Team, v.Role, v.Status, v.CurrentWorkload, v.CapacityMax)
	case types.WorkItem:
		return workItemLine(v)
	case []types.WorkItem:
		if len(v) == 0 {
			return "no work items"
		}
		lines := make([]string, len(v))
		for i, w := range v {
			lines[i] = workItemLine(w)
		}
		return joinLines(lines)
	case int:
		return fmt.Sprintf("%d", v)
	case queueview.Dashboard:
		return dashboardLines(v)
	case claimengine.SweepResult:
		return fmt.Sprintf("offlined %d agent(s), reassigned %d work item(s) to pending",
			len(v.OfflinedAgents), len(v.ReassignedWorkIDs))
	case string:
		return v
	default:
		return ""
	}
}

func workItemLine(w types.WorkItem) string {
	agent := w.AssignedAgentID
	if agent == "" {
		agent = "-"
	}
	return fmt.Sprintf("%s [%s/%s] status=%s priority=%s team=%s agent=%s progress=%d%%",
		w.WorkID, w.WorkType, w.Description, w.Status, w.Priority, w.Team, agent, w.ProgressPercent)
}

func dashboardLines(d queueview.Dashboard) string {
	lines := []string{fmt.Sprintf("lock_mode=%s completed_in_last(%s)=%d", d.LockMode, d.CompletionWindow, d.CompletedInLast)}
	for status, n := range d.CountsByStatus {
		lines = append(lines, fmt.Sprintf("  %s: %d", status, n))
	}
	for _, t := range d.Teams {
		lines = append(lines, fmt.Sprintf("  team=%s workload=%d/%d", t.Team, t.CurrentWorkload, t.CapacityMax))
	}
	return joinLines(lines)
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}
