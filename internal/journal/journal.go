// Package journal implements the sync-state journal: the small on-disk
// record sync writes when it has to hand a merge conflict to the user,
// and reads back on "sync --continue" to resume at the exact point it
// left off.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.ubr.dev/ubr/internal/git"
)

// Record is the sync-state journal record. Its presence on
// disk, plus the value of these four fields, is the entire state
// backing "sync --continue".
type Record struct {
	MainCommitID       git.Hash `json:"main_commit_id"`
	RemoteCommitID     git.Hash `json:"remote_commit_id"`
	MainCommitParentID git.Hash `json:"main_commit_parent_id"`
	MainBranchName     string   `json:"main_branch_name"`
}

// relPath is the journal's location relative to the repository root.
const relPath = ".ubr/SYNC_MERGE_HEAD"

// Path returns the absolute path of the journal file within repo.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, relPath)
}

// ErrNotExist indicates that no sync is in progress: there is no
// journal file to resume from.
var ErrNotExist = errors.New("no sync in progress")

// ErrExists indicates that a sync is already in progress: a journal
// file is already present.
var ErrExists = errors.New("sync already in progress")

// Write atomically creates the journal file with rec, failing with
// [ErrExists] if one is already present. The orchestrator only ever
// writes one journal at a time; a second conflict discovered mid-sync
// while one is already on disk is a programming error, not a retry
// target.
func Write(repoRoot string, rec Record) error {
	path := Path(repoRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("create journal file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write journal file: %w", err)
	}
	return nil
}

// Read loads the journal record for repo, returning [ErrNotExist] if no
// sync is in progress.
func Read(repoRoot string) (Record, error) {
	data, err := os.ReadFile(Path(repoRoot))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotExist
		}
		return Record{}, fmt.Errorf("read journal file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode journal file %s: %w", Path(repoRoot), err)
	}
	return rec, nil
}

// Delete removes the journal file for repo. It is not an error for the
// file to already be gone.
func Delete(repoRoot string) error {
	if err := os.Remove(Path(repoRoot)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove journal file: %w", err)
	}
	return nil
}

// Exists reports whether a sync is currently in progress for repo.
func Exists(repoRoot string) bool {
	_, err := os.Stat(Path(repoRoot))
	return err == nil
}
