package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/workclaim/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestStartEndSpanWritesOneLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.ndjson")
	w, err := NewFileWriter(path, 0) // threshold 0: every span flushes immediately
	require.NoError(t, err)
	defer w.Close()

	tr := New("workclaim", w)
	h := tr.StartSpan(context.Background(), "claim_engine.claim", map[string]string{"work_id": "w1"})
	tr.EndSpan(h, types.SpanOK, nil)
	require.NoError(t, w.Flush())

	lines := readLines(t, path)
	require.Len(t, lines, 1)

	var span types.Span
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &span))
	require.Equal(t, "claim_engine.claim", span.OperationName)
	require.Equal(t, types.SpanOK, span.Status)
	require.Equal(t, "w1", span.Attributes["work_id"])
}

func TestTraceIDPropagatesThroughContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.ndjson")
	w, err := NewFileWriter(path, 0)
	require.NoError(t, err)
	defer w.Close()

	tr := New("workclaim", w)
	ctx := WithTrace(context.Background(), "trace-abc", "")
	h := tr.StartSpan(ctx, "claim_engine.claim", nil)
	require.Equal(t, "trace-abc", h.TraceID())

	child := tr.StartSpan(h.Context(), "claim_engine.progress", nil)
	require.Equal(t, "trace-abc", child.TraceID())
	tr.EndSpan(h, types.SpanOK, nil)
	tr.EndSpan(child, types.SpanOK, nil)
}

func TestAppendOnlyNeverRewritesPreviousLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.ndjson")
	w, err := NewFileWriter(path, 0)
	require.NoError(t, err)
	defer w.Close()

	tr := New("workclaim", w)
	for i := 0; i < 50; i++ {
		h := tr.StartSpan(context.Background(), "claim_engine.heartbeat", nil)
		time.Sleep(time.Microsecond)
		tr.EndSpan(h, types.SpanOK, nil)
	}
	require.NoError(t, w.Flush())

	lines := readLines(t, path)
	require.Len(t, lines, 50)
	for _, l := range lines {
		var span types.Span
		require.NoError(t, json.Unmarshal([]byte(l), &span))
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if sc.Text() != "" {
			lines = append(lines, sc.Text())
		}
	}
	require.NoError(t, sc.Err())
	return lines
}
