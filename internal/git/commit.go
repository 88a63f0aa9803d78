package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature holds authorship information for a commit.
type Signature struct {
	// Name of the signer.
	Name string

	// Email of the signer.
	Email string

	// Time at which the signature was made.
	// If this is zero, the current time is used.
	Time time.Time
}

// typ is one of "COMMIT" or "AUTHOR".
func (s *Signature) appendEnv(typ string, env []string) []string {
	if s == nil {
		return env
	}

	env = append(env, "GIT_"+typ+"_NAME="+s.Name)
	env = append(env, "GIT_"+typ+"_EMAIL="+s.Email)
	if !s.Time.IsZero() {
		env = append(env, "GIT_"+typ+"_DATE="+s.Time.Format(time.RFC3339))
	}
	return env
}

// CommitTreeRequest is a request to create a new commit. The engine
// never runs 'git commit' interactively, it only ever builds commits
// from a tree it already computed.
type CommitTreeRequest struct {
	// Tree is the hash of a tree object representing the state of the
	// repository at the time of the commit.
	Tree Hash // required

	// Message is the commit message.
	Message string // required

	// Parents are the hashes of the parent commits.
	// This will usually have one element.
	// It may have more than one element for a merge commit,
	// and no elements for the initial commit.
	Parents []Hash

	// Author and Committer sign the commit.
	// If Committer is nil, Author is used for both.
	Author, Committer *Signature
}

// CommitTree creates a new commit with a given tree hash as the state of
// the repository, returning the hash of the new commit.
func (r *Repository) CommitTree(ctx context.Context, req CommitTreeRequest) (Hash, error) {
	if req.Message == "" {
		return ZeroHash, errors.New("empty commit message")
	}
	if req.Committer == nil {
		req.Committer = req.Author
	}

	args := make([]string, 0, 2+2*len(req.Parents))
	args = append(args, "commit-tree")
	for _, parent := range req.Parents {
		args = append(args, "-p", parent.String())
	}
	args = append(args, req.Tree.String())

	var env []string
	env = req.Author.appendEnv("AUTHOR", env)
	env = req.Committer.appendEnv("COMMITTER", env)

	cmd := r.gitCmd(ctx, args...).
		AppendEnv(env...).
		StdinString(req.Message)
	out, err := cmd.OutputString(r.exec)
	if err != nil {
		return ZeroHash, fmt.Errorf("commit-tree: %w", err)
	}

	return Hash(out), nil
}

// CurrentSignature resolves the ambient Git identity configured for the
// repository (user.name / user.email, or the GIT_COMMITTER_* environment
// overrides), the same identity 'git commit' would stamp as committer.
// The engine uses this as the committer signature on every commit it
// authors on a user's behalf: author is preserved from the
// original local commit, but committer is always the current signature.
func (r *Repository) CurrentSignature(ctx context.Context) (Signature, error) {
	out, err := r.gitCmd(ctx, "var", "GIT_COMMITTER_IDENT").OutputString(r.exec)
	if err != nil {
		return Signature{}, fmt.Errorf("git var GIT_COMMITTER_IDENT: %w", err)
	}
	return parseIdent(out)
}

// parseIdent parses the output of 'git var GIT_(COMMITTER|AUTHOR)_IDENT':
//
//	Name <email> 1700000000 +0000
func parseIdent(s string) (Signature, error) {
	open := strings.LastIndexByte(s, '<')
	close := strings.LastIndexByte(s, '>')
	if open < 0 || close < open {
		return Signature{}, fmt.Errorf("malformed identity: %q", s)
	}

	name := strings.TrimSpace(s[:open])
	email := s[open+1 : close]

	var t time.Time
	if fields := strings.Fields(s[close+1:]); len(fields) >= 1 {
		if sec, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			t = time.Unix(sec, 0)
			if len(fields) >= 2 {
				if loc, err := parseGitZone(fields[1]); err == nil {
					t = t.In(loc)
				}
			}
		}
	}

	return Signature{Name: name, Email: email, Time: t}, nil
}

// parseGitZone parses a Git-style "+0000" / "-0700" zone offset into a
// fixed time.Location.
func parseGitZone(s string) (*time.Location, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return nil, fmt.Errorf("malformed zone: %q", s)
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, err
	}
	mins, err := strconv.Atoi(s[3:5])
	if err != nil {
		return nil, err
	}
	offset := hours*3600 + mins*60
	if s[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(s, offset), nil
}

// CommitInfo is the subset of a commit's metadata the engine needs to
// rebuild it onto a new parent: its tree, parents, author, and message.
type CommitInfo struct {
	Tree    Hash
	Parents []Hash
	Author  Signature
	Message string
}

// Subject returns the first line of the commit message.
func (c CommitInfo) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}

const commitInfoFormat = "%T%x00%P%x00%an%x00%ae%x00%aI%x00%B%x00"

// ReadCommit reads the tree, parents, author, and message of a commit.
func (r *Repository) ReadCommit(ctx context.Context, commitish string) (CommitInfo, error) {
	out, err := r.gitCmd(ctx, "show", "--no-patch", "--format="+commitInfoFormat, commitish).
		Output(r.exec)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("git show: %w", err)
	}

	fields := bytes.SplitN(bytes.TrimRight(out, "\n"), []byte{0}, 6)
	if len(fields) < 6 {
		return CommitInfo{}, fmt.Errorf("unexpected git show output: %q", out)
	}

	var parents []Hash
	if p := strings.TrimSpace(string(fields[1])); p != "" {
		for _, tok := range strings.Fields(p) {
			parents = append(parents, Hash(tok))
		}
	}

	authorTime, err := time.Parse(time.RFC3339, strings.TrimSpace(string(fields[4])))
	if err != nil {
		return CommitInfo{}, fmt.Errorf("parse author date: %w", err)
	}

	return CommitInfo{
		Tree:    Hash(bytes.TrimSpace(fields[0])),
		Parents: parents,
		Author: Signature{
			Name:  string(fields[2]),
			Email: string(fields[3]),
			Time:  authorTime,
		},
		Message: strings.TrimRight(string(fields[5]), "\x00\n"),
	}, nil
}
