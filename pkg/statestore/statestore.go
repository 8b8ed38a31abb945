// Package statestore owns the three contractual JSON documents —
// active-claims, agent-registry, completed-log. All mutation goes through
// WithExclusiveLock; all
// reads go through ReadSnapshot. Document replacement is always
// write-temp-in-same-dir then rename, so a reader never observes a partial
// file.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/workclaim/pkg/filelock"
	"github.com/cuemby/workclaim/pkg/log"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// Scope names one or more documents a transaction touches. Locking in a
// fixed order (Scopes are always sorted before acquisition) is how
// multi-document commits avoid deadlock (S2).
type Scope []string

const (
	DocActiveClaims  = "active-claims"
	DocAgentRegistry = "agent-registry"
	DocCompletedLog  = "completed-log"
)

// Store is the on-disk state store rooted at a coordination directory.
type Store struct {
	dir      string
	lockWait time.Duration
	lockMode filelock.Mode
	lockers  map[string]filelock.Locker
}

// Config configures a Store.
type Config struct {
	Dir      string
	LockWait time.Duration
	LockMode filelock.Mode // "" lets filelock.DetectCapability choose
}

// Open prepares a Store rooted at cfg.Dir, creating the directory and
// running startup recovery (S4): stale temp files from a crashed rename are
// removed, and a corrupt main document is restored from its newest backup.
func Open(cfg Config) (*Store, error) {
	if cfg.LockWait <= 0 {
		cfg.LockWait = 5 * time.Second
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, workerr.New("statestore.Open", workerr.IOError, err)
	}

	s := &Store{
		dir:      cfg.Dir,
		lockWait: cfg.LockWait,
		lockers:  make(map[string]filelock.Locker),
	}

	for _, doc := range []string{DocActiveClaims, DocAgentRegistry, DocCompletedLog} {
		s.lockers[doc] = filelock.New(s.lockPath(doc), cfg.LockMode)
	}
	s.lockMode = s.lockers[DocActiveClaims].Mode()

	if err := s.recover(); err != nil {
		return nil, err
	}

	log.WithComponent("statestore").Info().
		Str("dir", cfg.Dir).
		Str("lock_mode", string(s.lockMode)).
		Msg("state store ready")

	return s, nil
}

// LockMode reports which lock path this process selected at startup.
func (s *Store) LockMode() filelock.Mode { return s.lockMode }

func (s *Store) docPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) lockPath(name string) string {
	return filepath.Join(s.dir, "."+name+".lock-target")
}

func (s *Store) tmpPath(name string) string {
	return filepath.Join(s.dir, fmt.Sprintf(".%s.tmp-%d", name, time.Now().UnixNano()))
}

func (s *Store) bakPath(name string, ts string) string {
	return filepath.Join(s.dir, fmt.Sprintf(".%s.bak-%s", name, ts))
}

// acquireAll locks the named documents in sorted order and returns a
// combined unlock function, so every multi-document transaction acquires
// its locks in the same fixed order regardless of call-site order (S2).
func (s *Store) acquireAll(scope Scope) (func(), error) {
	sorted := append(Scope{}, scope...)
	sort.Strings(sorted)

	var unlocks []func() error
	rollback := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, doc := range sorted {
		locker, ok := s.lockers[doc]
		if !ok {
			rollback()
			return nil, workerr.New("statestore.acquireAll", workerr.InvalidArg, fmt.Errorf("unknown document %q", doc))
		}
		unlock, err := locker.Lock(s.lockWait)
		if err != nil {
			rollback()
			if err == filelock.ErrBusy {
				return nil, workerr.New("statestore.acquireAll", workerr.Busy, err)
			}
			return nil, workerr.New("statestore.acquireAll", workerr.IOError, err)
		}
		unlocks = append(unlocks, unlock)
	}

	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}, nil
}

// Snapshot is an immutable, in-memory view of the documents named in its
// scope at the moment ReadSnapshot or WithExclusiveLock took its lock.
type Snapshot struct {
	ActiveClaims  []types.WorkItem
	AgentRegistry map[string]types.Agent
	CompletedLog  []types.CompletedWorkRecord
}

func (s *Store) readDocs(scope Scope) (*Snapshot, error) {
	snap := &Snapshot{AgentRegistry: map[string]types.Agent{}}
	for _, doc := range scope {
		switch doc {
		case DocActiveClaims:
			var items []types.WorkItem
			if err := readJSON(s.docPath(doc), &items); err != nil {
				return nil, err
			}
			snap.ActiveClaims = items
		case DocAgentRegistry:
			agents := map[string]types.Agent{}
			if err := readJSON(s.docPath(doc), &agents); err != nil {
				return nil, err
			}
			snap.AgentRegistry = agents
		case DocCompletedLog:
			var records []types.CompletedWorkRecord
			if err := readJSON(s.docPath(doc), &records); err != nil {
				return nil, err
			}
			snap.CompletedLog = records
		}
	}
	return snap, nil
}

// readJSON reads path into v, treating a missing file as an empty
// collection (the document's zero value) rather than an error.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return workerr.New("statestore.readJSON", workerr.IOError, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return workerr.New("statestore.readJSON", workerr.CorruptState, fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

// writeDoc validates v round-trips through JSON (S3) then commits it via
// write-temp-in-same-dir + rename, first rotating the previous contents to
// a timestamped backup.
func (s *Store) writeDoc(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return workerr.New("statestore.writeDoc", workerr.CorruptState, err)
	}

	// S3: validator round-trip before the rename is allowed to proceed.
	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return workerr.New("statestore.writeDoc", workerr.CorruptState, err)
	}

	path := s.docPath(name)
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		ts := time.Now().UTC().Format("20060102T150405.000000000")
		if werr := os.WriteFile(s.bakPath(name, ts), prev, 0o644); werr != nil {
			log.WithComponent("statestore").Warn().Err(werr).Msg("failed to write rotated backup")
		}
	}

	tmp := s.tmpPath(name)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return workerr.New("statestore.writeDoc", workerr.IOError, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return workerr.New("statestore.writeDoc", workerr.IOError, err)
	}
	return nil
}

// ReadSnapshot acquires scope's locks (no mutation), reads the documents,
// releases the locks, and returns the immutable result.
func (s *Store) ReadSnapshot(scope Scope) (*Snapshot, error) {
	unlock, err := s.acquireAll(scope)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.readDocs(scope)
}

// WithExclusiveLock acquires scope's locks, reads current content, passes a
// mutable snapshot to fn, and on a nil return atomically commits every
// document named in scope. A non-nil return from fn discards the mutated
// snapshot entirely (rollback) and the lock is released without writing.
func (s *Store) WithExclusiveLock(scope Scope, fn func(*Snapshot) error) error {
	unlock, err := s.acquireAll(scope)
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := s.readDocs(scope)
	if err != nil {
		return err
	}

	if err := fn(snap); err != nil {
		return err
	}

	for _, doc := range scope {
		switch doc {
		case DocActiveClaims:
			if err := s.writeDoc(doc, snap.ActiveClaims); err != nil {
				return err
			}
		case DocAgentRegistry:
			if err := s.writeDoc(doc, snap.AgentRegistry); err != nil {
				return err
			}
		case DocCompletedLog:
			if err := s.writeDoc(doc, snap.CompletedLog); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dir returns the coordination directory this store is rooted at.
func (s *Store) Dir() string { return s.dir }
