package statestore

import (
	"testing"

	"github.com/cuemby/workclaim/pkg/types"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestWithExclusiveLockCommitsOnSuccess(t *testing.T) {
	s := openTestStore(t)

	err := s.WithExclusiveLock(Scope{DocActiveClaims}, func(snap *Snapshot) error {
		snap.ActiveClaims = append(snap.ActiveClaims, types.WorkItem{WorkID: "work-1", Status: types.WorkPending})
		return nil
	})
	require.NoError(t, err)

	snap, err := s.ReadSnapshot(Scope{DocActiveClaims})
	require.NoError(t, err)
	require.Len(t, snap.ActiveClaims, 1)
	require.Equal(t, "work-1", snap.ActiveClaims[0].WorkID)
}

func TestWithExclusiveLockRollsBackOnError(t *testing.T) {
	s := openTestStore(t)

	sentinel := require.New(t)
	err := s.WithExclusiveLock(Scope{DocActiveClaims}, func(snap *Snapshot) error {
		snap.ActiveClaims = append(snap.ActiveClaims, types.WorkItem{WorkID: "should-not-persist"})
		return errAbort
	})
	sentinel.ErrorIs(err, errAbort)

	snap, err := s.ReadSnapshot(Scope{DocActiveClaims})
	require.NoError(t, err)
	require.Empty(t, snap.ActiveClaims)
}

func TestReadSnapshotOnEmptyStoreReturnsZeroValues(t *testing.T) {
	s := openTestStore(t)
	snap, err := s.ReadSnapshot(Scope{DocActiveClaims, DocAgentRegistry, DocCompletedLog})
	require.NoError(t, err)
	require.Empty(t, snap.ActiveClaims)
	require.Empty(t, snap.AgentRegistry)
	require.Empty(t, snap.CompletedLog)
}

func TestMultiDocumentCommitIsAtomic(t *testing.T) {
	s := openTestStore(t)

	err := s.WithExclusiveLock(Scope{DocActiveClaims, DocAgentRegistry}, func(snap *Snapshot) error {
		snap.ActiveClaims = append(snap.ActiveClaims, types.WorkItem{WorkID: "work-1", AssignedAgentID: "agent-1", Status: types.WorkActive})
		snap.AgentRegistry["agent-1"] = types.Agent{AgentID: "agent-1", CurrentWorkload: 1}
		return nil
	})
	require.NoError(t, err)

	snap, err := s.ReadSnapshot(Scope{DocActiveClaims, DocAgentRegistry})
	require.NoError(t, err)
	require.Len(t, snap.ActiveClaims, 1)
	require.Equal(t, 1, snap.AgentRegistry["agent-1"].CurrentWorkload)
}

type abortError struct{}

func (abortError) Error() string { return "aborted" }

var errAbort = abortError{}
