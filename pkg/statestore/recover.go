package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/workclaim/pkg/log"
)

// recover implements S4: delete any temp file left behind by a rename that
// never completed, and restore the newest rotated backup over any main
// document that fails to parse as JSON.
func (s *Store) recover() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil // directory was just created; nothing to recover
	}

	logger := log.WithComponent("statestore")

	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, ".tmp-") {
			path := filepath.Join(s.dir, name)
			if err := os.Remove(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("failed to remove crashed temp file")
			} else {
				logger.Info().Str("path", path).Msg("removed crashed temp file")
			}
		}
	}

	for _, doc := range []string{DocActiveClaims, DocAgentRegistry, DocCompletedLog} {
		path := s.docPath(doc)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			continue
		}
		var probe json.RawMessage
		if len(data) > 0 && json.Unmarshal(data, &probe) == nil {
			continue
		}

		backup := s.newestBackup(doc)
		if backup == "" {
			logger.Error().Str("document", doc).Msg("corrupt document with no backup to restore")
			continue
		}
		bdata, err := os.ReadFile(backup)
		if err != nil {
			logger.Error().Err(err).Str("backup", backup).Msg("failed to read backup for restore")
			continue
		}
		if err := os.WriteFile(path, bdata, 0o644); err != nil {
			logger.Error().Err(err).Str("document", doc).Msg("failed to restore backup")
			continue
		}
		logger.Warn().Str("document", doc).Str("backup", backup).Msg("restored corrupt document from backup")
	}

	return nil
}

// newestBackup returns the lexicographically greatest (and therefore
// newest, given the timestamp suffix) backup path for doc, or "" if none
// exist.
func (s *Store) newestBackup(doc string) string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return ""
	}
	prefix := "." + doc + ".bak-"
	var candidates []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return filepath.Join(s.dir, candidates[len(candidates)-1])
}
