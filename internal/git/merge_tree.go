package git

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"go.ubr.dev/ubr/internal/scanutil"
)

// MergeTreeRequest specifies the parameters for a merge-tree operation.
// This single primitive backs every operation that computes a merged
// tree without touching refs or the workdir: an ordinary merge omits
// MergeBase and lets Git compute it; Cherrypick sets MergeBase to the
// cherry-picked commit's parent so that the commit's own diff is what
// gets replayed onto Branch1.
type MergeTreeRequest struct {
	// Branch1 is "ours": the tree the result is built on top of.
	// Must be a commit-ish value if MergeBase is not provided.
	Branch1 string // required

	// Branch2 is "theirs": the tree whose changes (relative to
	// MergeBase, or the computed merge base) are folded into Branch1.
	// Must be a commit-ish value if MergeBase is not provided.
	Branch2 string // required

	// MergeBase optionally specifies an explicit base for the merge.
	// Set this to a cherry-picked commit's parent to cherry-pick it
	// rather than perform an ordinary three-way merge.
	MergeBase string

	// FavorTheirs resolves conflicting hunks in favor of Branch2, for
	// cherry-picks that replay an already-reconciled commit and must
	// win over stale context.
	FavorTheirs bool

	// conflictStyle overrides merge.conflictStyle for this invocation,
	// for deterministic conflict-marker fixtures in tests.
	conflictStyle string
}

// MergeTreeConflictError is returned from MergeTree when a conflict is
// encountered that FavorTheirs did not resolve.
type MergeTreeConflictError struct {
	// Files is the list of files that are in conflict.
	// There may be multiple entries for the same file representing
	// different stages of the conflict.
	Files []MergeTreeConflictFile

	// Details is a list of detailed messages about the conflicts, as
	// well as conflicts that were resolved automatically (e.g.
	// "Auto-merging <file>"). Do not assume len(Details) == len(Files),
	// or that len(Details) > 0 means there are blocking conflicts.
	Details []MergeTreeConflictDetails
}

// Filenames returns a sequence of unique filenames that are in conflict.
func (e *MergeTreeConflictError) Filenames() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{}, len(e.Files))
		for _, f := range e.Files {
			if _, ok := seen[f.Path]; ok {
				continue
			}
			seen[f.Path] = struct{}{}
			if !yield(f.Path) {
				return
			}
		}
	}
}

func (e *MergeTreeConflictError) Error() string {
	var msg strings.Builder
	msg.WriteString("conflicting files:")
	var i int
	for f := range e.Filenames() {
		if i > 0 {
			msg.WriteString(",")
		}
		msg.WriteString(" ")
		msg.WriteString(f)
		i++
	}
	return msg.String()
}

// MergeTree performs a merge without touching the index or working
// tree, returning the hash of the resulting tree. Neither refs nor the
// workdir move, so callers are free to discard the result: a failed or
// abandoned merge leaves no state behind.
//
// For conflicts, this returns a [MergeTreeConflictError] describing the
// conflicting files. If the conflicts were resolved automatically (e.g.
// "Auto-merging <file>") and there are no other blocking conflicts, no
// error is returned for them.
func (r *Repository) MergeTree(ctx context.Context, req MergeTreeRequest) (Hash, error) {
	args := []string{
		"merge-tree",
		"--write-tree", // the other mode is deprecated
		"--stdin",
	}
	if req.FavorTheirs {
		args = append(args, "-Xtheirs")
	}
	args = append(args, "-z")

	var stdin strings.Builder
	// Input is in the form:
	//   [<base-commit> -- ]<branch1> <branch2> NL
	if req.MergeBase != "" {
		_, _ = fmt.Fprintf(&stdin, "%v -- ", req.MergeBase)
	}
	_, _ = fmt.Fprintf(&stdin, "%v %v\n", req.Branch1, req.Branch2)

	cmd := r.gitCmd(ctx, args...).StdinString(stdin.String())
	if req.conflictStyle != "" {
		cmd = cmd.WithConfig("merge.conflictStyle", req.conflictStyle)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(r.exec); err != nil {
		return "", fmt.Errorf("start git-merge-tree: %w", err)
	}

	outputs, err := parseMergeTreeOutput(stdout)
	if err != nil {
		return "", fmt.Errorf("bad git-merge-tree output: %w", err)
	}
	if len(outputs) != 1 {
		return "", fmt.Errorf("expected one result from git-merge-tree, got %d", len(outputs))
	}

	waitErr := cmd.Wait(r.exec)
	if waitErr != nil {
		waitErr = fmt.Errorf("git merge-tree: %w", waitErr)
	}

	o := outputs[0]
	if len(o.ConflictFiles) == 0 {
		return o.TreeHash, waitErr
	}
	return o.TreeHash, errors.Join(&MergeTreeConflictError{
		Files:   o.ConflictFiles,
		Details: o.ConflictMessages,
	}, waitErr)
}

// Cherrypick replays commit's own change onto onto, returning the
// resulting tree. It is MergeTree with an explicit merge base
// of commit's first parent, so the diff folded into onto is exactly what
// commit introduced relative to its own parent.
func (r *Repository) Cherrypick(ctx context.Context, commit, onto string, favorTheirs bool) (Hash, error) {
	info, err := r.ReadCommit(ctx, commit)
	if err != nil {
		return "", fmt.Errorf("read commit %v: %w", commit, err)
	}

	var base string
	if len(info.Parents) > 0 {
		base = commit + "^"
	}

	return r.MergeTree(ctx, MergeTreeRequest{
		Branch1:     onto,
		Branch2:     commit,
		MergeBase:   base,
		FavorTheirs: favorTheirs,
	})
}

// mergeTreeOutput holds the output of a single git-merge-tree --write-tree
// --stdin result.
//
// If a conflict was resolved with an auto-merge in Git, the output still
// reports it as conflicted even though no user action is required. So DO
// NOT assume that there's a blocking conflict without checking for
// Auto-merge messages. Per git-merge-tree documentation:
//
//	Do NOT assume all filenames listed in the Informational messages
//	section had conflicts. Messages can be included for files that have
//	no conflicts, such as "Auto-merging <file>".
type mergeTreeOutput struct {
	TreeHash Hash

	ConflictFiles    []MergeTreeConflictFile
	ConflictMessages []MergeTreeConflictDetails
}

// MergeTreeConflictFile represents a file that is in conflict.
type MergeTreeConflictFile struct {
	Mode   Mode
	Object Hash
	Stage  ConflictStage
	Path   string
}

// MergeTreeConflictDetails represents an informational message about a conflict.
type MergeTreeConflictDetails struct {
	Paths   []string
	Type    string
	Message string
}

func parseMergeTreeOutput(r io.Reader) (_ []*mergeTreeOutput, retErr error) {
	scan := bufio.NewScanner(r)
	scan.Split(scanutil.SplitNull)
	var (
		current *mergeTreeOutput
		outputs []*mergeTreeOutput
	)
	defer func() {
		if err := scan.Err(); err != nil {
			retErr = errors.Join(retErr, fmt.Errorf("scan: %w", err))
		}
	}()
	for scan.Scan() && len(scan.Bytes()) > 0 {
		var clean bool
		switch tok := scan.Text(); tok {
		case "0":
			clean = false
		case "1":
			clean = true
		default:
			return outputs, fmt.Errorf("expected '0' or '1', got %q", tok)
		}

		if !scan.Scan() {
			return outputs, errors.New("expected OID of tree, got EOF")
		}

		current = &mergeTreeOutput{TreeHash: Hash(scan.Text())}
		outputs = append(outputs, current)
		if clean {
			continue
		}

		// Conflicted file info is in the form:
		//    <mode> <object> <stage>\t<filename> NUL
		// Empty token marks end of that section.
		for scan.Scan() && len(scan.Bytes()) > 0 {
			line := scan.Text()

			conflictFile, err := parseMergeTreeConflictFile(line)
			if err != nil {
				return outputs, fmt.Errorf("invalid conflict file info: %q: %w", line, err)
			}

			current.ConflictFiles = append(current.ConflictFiles, conflictFile)
		}

		// Informational messages are in the form:
		//    <paths> <conflict-type> NUL <conflict-message> NUL
		// where paths = <N:int> NUL <path1> NUL ... <pathN> NUL.
		for scan.Scan() && len(scan.Bytes()) > 0 {
			numPaths, err := strconv.Atoi(scan.Text())
			if err != nil {
				return outputs, fmt.Errorf("expected <number-of-paths>, got %q", scan.Text())
			}

			paths := make([]string, 0, numPaths)
			for idx := range numPaths {
				if !scan.Scan() {
					return outputs, fmt.Errorf("expected path #%d, got EOF", idx+1)
				}
				paths = append(paths, scan.Text())
			}

			if !scan.Scan() {
				return outputs, errors.New("expected <conflict-type>, got EOF")
			}
			conflictType := scan.Text()

			if !scan.Scan() {
				return outputs, errors.New("expected <conflict-message>, got EOF")
			}
			msg := scan.Text()

			current.ConflictMessages = append(current.ConflictMessages, MergeTreeConflictDetails{
				Type:    conflictType,
				Message: msg,
				Paths:   paths,
			})
		}
	}

	return outputs, nil
}

func parseMergeTreeConflictFile(line string) (MergeTreeConflictFile, error) {
	modestr, rest, ok := strings.Cut(line, " ")
	if !ok {
		return MergeTreeConflictFile{}, errors.New("expected <mode>, got EOL")
	}

	mode, err := ParseMode(modestr)
	if err != nil {
		return MergeTreeConflictFile{}, fmt.Errorf("invalid mode %q: %w", modestr, err)
	}

	objectstr, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return MergeTreeConflictFile{}, errors.New("expected <object>, got EOL")
	}
	object := Hash(objectstr)

	stagestr, filename, ok := strings.Cut(rest, "\t")
	if !ok {
		return MergeTreeConflictFile{}, errors.New("expected <stage> and <filename>, got EOL")
	}
	stage, err := parseConflictStage(stagestr)
	if err != nil {
		return MergeTreeConflictFile{}, fmt.Errorf("invalid stage %q: %w", stage, err)
	}

	return MergeTreeConflictFile{
		Mode:   mode,
		Object: object,
		Stage:  stage,
		Path:   filename,
	}, nil
}

// ConflictStage represents the stage of a file in a merge conflict.
type ConflictStage int

const (
	// ConflictStageOk is a non-conflicted file.
	ConflictStageOk ConflictStage = 0
	// ConflictStageBase is the common ancestor version of the file.
	ConflictStageBase ConflictStage = 1
	// ConflictStageOurs is the version of the file from Branch1.
	ConflictStageOurs ConflictStage = 2
	// ConflictStageTheirs is the version of the file from Branch2.
	ConflictStageTheirs ConflictStage = 3
)

func parseConflictStage(s string) (ConflictStage, error) {
	switch s {
	case "0":
		return ConflictStageOk, nil
	case "1":
		return ConflictStageBase, nil
	case "2":
		return ConflictStageOurs, nil
	case "3":
		return ConflictStageTheirs, nil
	default:
		return 0, fmt.Errorf("invalid conflict stage: %q", s)
	}
}

func (s ConflictStage) String() string {
	switch s {
	case ConflictStageOk:
		return "ok"
	case ConflictStageBase:
		return "base"
	case ConflictStageOurs:
		return "ours"
	case ConflictStageTheirs:
		return "theirs"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}
