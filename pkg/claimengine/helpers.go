package claimengine

import (
	"strings"
	"time"

	"github.com/cuemby/workclaim/pkg/clock"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// statusFor maps an operation's error (nil included) to the span status it
// should be recorded with.
func statusFor(err error) types.SpanStatus {
	if err == nil {
		return types.SpanOK
	}
	if workerr.Is(err, workerr.Timeout) {
		return types.SpanTimeout
	}
	return types.SpanError
}

// now is a thin indirection to clock.NowWallISO8601Ms so tests could stub it
// if ever needed; kept as a direct call since the engine has no clock
// injection point today.
func now() string {
	return clock.NowWallISO8601Ms()
}

func nonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// findWork returns the index of the WorkItem with the given id in items, or
// -1 if absent.
func findWork(items []types.WorkItem, workID string) int {
	for i := range items {
		if items[i].WorkID == workID {
			return i
		}
	}
	return -1
}

// parseTimestamp parses a timestamp minted by clock.NowWallISO8601Ms.
func parseTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000Z07:00", s)
}
