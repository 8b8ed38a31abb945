// Package clock mints monotonic timestamps and collision-free identifiers.
// Its only global mutable state is a few atomics (the fallback and entity
// counters and the IDFallback flag): trace/span IDs come from fresh
// randomness, entity IDs from the current instant plus a counter.
package clock

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var startMono = time.Now()

// fallbackCounter backs NewTraceID/NewSpanID when the crypto/rand-backed
// uuid.NewRandom call fails (entropy source exhaustion). Each fallback value
// is the incremented counter plus the current NowMonotonicNS.
var fallbackCounter uint64

// NowMonotonicNS returns nanoseconds elapsed since process start, read off
// the runtime's monotonic clock. Never goes backwards within a process.
func NowMonotonicNS() int64 {
	return int64(time.Since(startMono))
}

// NowWallISO8601Ms returns the current wall-clock time as an ISO-8601
// timestamp with millisecond precision, e.g. "2026-07-30T12:00:00.000Z".
func NowWallISO8601Ms() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// IDFallback is set true by the most recent NewTraceID/NewSpanID call that
// had to fall back to the atomic counter, so callers can attach
// id_fallback=true to the enclosing span.
var IDFallback atomic.Bool

// NewTraceID mints a 128-bit hex trace identifier.
func NewTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		IDFallback.Store(true)
		return fallbackHex(16)
	}
	IDFallback.Store(false)
	b := id[:]
	return hex.EncodeToString(b)
}

// NewSpanID mints a 64-bit hex span identifier.
func NewSpanID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		IDFallback.Store(true)
		return fallbackHex(8)
	}
	IDFallback.Store(false)
	return hex.EncodeToString(id[:8])
}

// fallbackHex returns n bytes of hex derived from a monotonic-seeded atomic
// counter, used only when the crypto/rand-backed uuid path fails.
func fallbackHex(n int) string {
	v := atomic.AddUint64(&fallbackCounter, 1) + uint64(NowMonotonicNS())
	buf := make([]byte, n)
	for i := 0; i < n && i < 8; i++ {
		buf[n-1-i] = byte(v >> (8 * i))
	}
	return hex.EncodeToString(buf)
}

// entityCounter disambiguates entity IDs minted within the same nanosecond.
var entityCounter uint32

// NewEntityID mints "<kind>-<16 hex ns ticks>-<4 hex counter>" so two IDs
// minted in the same process sort by mint order under plain string compare,
// which is the tie-break claim ordering requires for same-instant claims.
func NewEntityID(kind string) string {
	ticks := NowMonotonicNS()
	seq := atomic.AddUint32(&entityCounter, 1)
	return fmt.Sprintf("%s-%016x-%04x", kind, ticks, seq&0xffff)
}
