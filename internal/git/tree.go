package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.ubr.dev/ubr/internal/osutil"
)

// Mode is the octal file mode of a Git tree entry.
type Mode int

const (
	ZeroMode    Mode = 0o000000
	RegularMode Mode = 0o100644
)

// ParseMode parses the octal mode string used in diff-tree/ls-tree output.
func ParseMode(s string) (Mode, error) {
	i, err := strconv.ParseInt(s, 8, 32)
	return Mode(i), err
}

func (m Mode) String() string {
	return fmt.Sprintf("%06o", m)
}

// ApplyToTree overlays the
// selected file deltas of diff onto base, blob by blob, without ever
// materializing the working tree or the repository's real index. keep
// reports whether a given delta should be applied; a nil keep applies
// every delta in diff.
//
// This only works because the engine's patch-splitting criterion (see
// FileDelta.Key) operates at file granularity: there is never a need to
// apply part of a file's change, only to select which whole-file deltas
// land in the result.
func (r *Repository) ApplyToTree(ctx context.Context, base Hash, diff []FileDelta, keep func(FileDelta) bool) (Hash, error) {
	writes := make([]BlobInfo, 0, len(diff))
	var deletes []string

	for _, d := range diff {
		if keep != nil && !keep(d) {
			continue
		}
		if d.NewBlob.IsZero() {
			deletes = append(deletes, d.Path)
			continue
		}
		mode := d.NewMode
		if mode == ZeroMode {
			mode = RegularMode
		}
		writes = append(writes, BlobInfo{Mode: mode, Hash: d.NewBlob, Path: d.Path})
	}

	if len(writes) == 0 && len(deletes) == 0 {
		return base, nil
	}

	return r.updateTree(ctx, base, writes, deletes)
}

// WriteIndexTree writes the repository's real, on-disk index as a tree
// object, failing if the index still has unresolved conflicts. This is
// the one tree-producing operation here that reads mutable,
// working-tree-adjacent state: the conflict-surfacing protocol hands
// the index to the user to resolve by hand, and "sync --continue"
// calls this to pick up what they staged.
func (r *Repository) WriteIndexTree(ctx context.Context) (Hash, error) {
	out, err := r.gitCmd(ctx, "write-tree").OutputString(r.exec)
	if err != nil {
		return ZeroHash, fmt.Errorf("write-tree: %w", err)
	}
	return Hash(out), nil
}

// BlobInfo identifies a single blob's placement in a tree.
type BlobInfo struct {
	Mode Mode
	Hash Hash
	Path string
}

// updateTree updates tree with the given blob writes and path deletions,
// returning the new tree hash. It uses a private temporary index file so
// that the overlay never touches the repository's real index.
func (r *Repository) updateTree(ctx context.Context, tree Hash, writes []BlobInfo, deletes []string) (_ Hash, err error) {
	indexFile, err := osutil.TempFilePath("", "ubr-index-*")
	if err != nil {
		return ZeroHash, fmt.Errorf("create index: %w", err)
	}
	defer func() {
		err = errors.Join(err, os.Remove(indexFile))
	}()

	err = r.gitCmd(ctx, "read-tree", "--index-output", indexFile, tree.String()).
		Run(r.exec)
	if err != nil {
		return ZeroHash, fmt.Errorf("read-tree: %w", err)
	}

	updateCmd := r.gitCmd(ctx, "update-index", "--index-info").
		AppendEnv("GIT_INDEX_FILE=" + indexFile)
	stdin, err := updateCmd.StdinPipe()
	if err != nil {
		return ZeroHash, fmt.Errorf("create pipe: %w", err)
	}
	if err := updateCmd.Start(r.exec); err != nil {
		return ZeroHash, fmt.Errorf("start: %w", err)
	}

	for _, blob := range writes {
		// update-index --index-info accepts lines of the form:
		//   <mode> SP <sha1> TAB <path> NL
		if _, err := fmt.Fprintf(stdin, "%s %s\t%s\n", blob.Mode, blob.Hash, blob.Path); err != nil {
			return ZeroHash, fmt.Errorf("write: %w", err)
		}
	}
	for _, path := range deletes {
		// A delete is a write of mode 0 at the path; the hash is ignored.
		if _, err := fmt.Fprintf(stdin, "000000 %s\t%s\n", ZeroHash, path); err != nil {
			return ZeroHash, fmt.Errorf("delete: %w", err)
		}
	}

	if err := stdin.Close(); err != nil {
		return ZeroHash, fmt.Errorf("close: %w", err)
	}
	if err := updateCmd.Wait(r.exec); err != nil {
		return ZeroHash, fmt.Errorf("wait: %w", err)
	}

	treeHash, err := r.gitCmd(ctx, "write-tree").
		AppendEnv("GIT_INDEX_FILE=" + indexFile).
		OutputString(r.exec)
	if err != nil {
		return ZeroHash, fmt.Errorf("write-tree: %w", err)
	}

	return Hash(treeHash), nil
}
