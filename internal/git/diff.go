package git

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.ubr.dev/ubr/internal/scanutil"
)

// FileStatusCode specifies the status of a file in a diff.
type FileStatusCode byte

// File status codes, from
// https://git-scm.com/docs/git-diff-tree#_raw_output_format.
const (
	FileAdded    FileStatusCode = 'A'
	FileCopied   FileStatusCode = 'C'
	FileDeleted  FileStatusCode = 'D'
	FileModified FileStatusCode = 'M'
	FileRenamed  FileStatusCode = 'R'
)

// FileDelta is one file's change between two trees, at blob granularity.
// The engine's patch-splitting decision is defined
// purely in terms of the (OldBlob, NewBlob) pair, never line hunks, so
// this is the only diff representation the engine needs.
type FileDelta struct {
	Path    string
	OldMode Mode
	NewMode Mode
	OldBlob Hash
	NewBlob Hash
	Status  FileStatusCode
}

// Key is the (old, new) blob pair the patch-splitting criterion is
// defined in terms of: two deltas with equal Key represent the same
// structural change regardless of which diff produced them.
func (d FileDelta) Key() [2]Hash {
	return [2]Hash{d.OldBlob, d.NewBlob}
}

// DiffTree compares two trees and returns the file deltas between them
// with blob hashes on both sides. a and b may be any tree-ish values.
// Rename detection is
// disabled so that every record is exactly the pair (meta, path) the
// parser expects.
func (r *Repository) DiffTree(ctx context.Context, a, b string) ([]FileDelta, error) {
	cmd := r.gitCmd(ctx, "diff-tree", "-r", "-z", "--no-renames", "--no-commit-id", "--raw", a, b)
	lines, err := cmd.Scan(r.exec, scanutil.SplitNull)
	if err != nil {
		return nil, fmt.Errorf("git diff-tree: %w", err)
	}

	var deltas []FileDelta
	for i := 0; i+1 < len(lines); i += 2 {
		meta, path := lines[i], lines[i+1]
		if len(meta) == 0 {
			continue
		}
		d, err := parseRawDiffMeta(meta)
		if err != nil {
			return nil, fmt.Errorf("parse diff-tree output %q: %w", meta, err)
		}
		d.Path = string(path)
		deltas = append(deltas, d)
	}
	return deltas, nil
}

// parseRawDiffMeta parses one metadata record of `git diff-tree --raw -z`
// output: ":<old mode> <new mode> <old sha> <new sha> <status>".
func parseRawDiffMeta(meta []byte) (FileDelta, error) {
	meta = bytes.TrimPrefix(meta, []byte{':'})
	fields := strings.Fields(string(meta))
	if len(fields) < 5 {
		return FileDelta{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	oldMode, err := ParseMode(fields[0])
	if err != nil {
		return FileDelta{}, fmt.Errorf("old mode: %w", err)
	}
	newMode, err := ParseMode(fields[1])
	if err != nil {
		return FileDelta{}, fmt.Errorf("new mode: %w", err)
	}

	return FileDelta{
		OldMode: oldMode,
		NewMode: newMode,
		OldBlob: Hash(fields[2]),
		NewBlob: Hash(fields[3]),
		Status:  FileStatusCode(fields[4][0]),
	}, nil
}
