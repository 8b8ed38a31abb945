package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowMonotonicNSNeverGoesBackwards(t *testing.T) {
	prev := NowMonotonicNS()
	for i := 0; i < 1000; i++ {
		cur := NowMonotonicNS()
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestNewTraceIDWidth(t *testing.T) {
	id := NewTraceID()
	assert.Len(t, id, 32) // 16 bytes hex-encoded
}

func TestNewSpanIDWidth(t *testing.T) {
	id := NewSpanID()
	assert.Len(t, id, 16) // 8 bytes hex-encoded
}

func TestNewEntityIDOrdering(t *testing.T) {
	a := NewEntityID("work")
	b := NewEntityID("work")
	assert.True(t, a < b, "entity IDs minted in sequence must sort in mint order")
}

func TestNewEntityIDPrefix(t *testing.T) {
	id := NewEntityID("agent")
	assert.Contains(t, id, "agent-")
}
