package git

import (
	"context"
	"fmt"
)

// Notes accesses the Git notes associated with a repository. The engine
// uses a single namespace for tracking metadata (see package metadata),
// so nearly every caller gets a Notes handle via Repository.Notes("").
type Notes struct {
	r    *Repository
	ref  string
	exec execer
}

// Notes returns a Notes instance for the given ref.
// If ref is empty, the default ref "refs/notes/commits" is used.
func (r *Repository) Notes(ref string) *Notes {
	if ref == "" {
		ref = "refs/notes/commits"
	}

	return &Notes{
		r:    r,
		ref:  ref,
		exec: r.exec,
	}
}

// Add attaches note msg to object obj, overwriting any note already
// present. Tracking metadata writes use upsert semantics, so Add always
// forces.
func (n *Notes) Add(ctx context.Context, obj, msg string) error {
	args := []string{"notes", "--ref", n.ref, "add", "-f", "-m", msg, obj}
	if err := n.r.gitCmd(ctx, args...).Run(n.exec); err != nil {
		return fmt.Errorf("git notes add: %w", err)
	}
	return nil
}

// Show returns the contents of the note associated with obj.
// It returns [ErrNotExist] if obj has no note attached.
func (n *Notes) Show(ctx context.Context, obj string) (string, error) {
	out, err := n.r.gitCmd(ctx, "notes", "--ref", n.ref, "show", obj).OutputString(n.exec)
	if err != nil {
		return "", ErrNotExist
	}
	return out, nil
}

// Remove detaches any note from obj. It is not an error for obj to have
// no note.
func (n *Notes) Remove(ctx context.Context, obj string) error {
	if err := n.r.gitCmd(ctx, "notes", "--ref", n.ref, "remove", "--ignore-missing", obj).Run(n.exec); err != nil {
		return fmt.Errorf("git notes remove: %w", err)
	}
	return nil
}
