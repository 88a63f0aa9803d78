package engine

import "strings"

// DeriveBranchName computes the remote branch name for Track from a
// commit's subject line: lowercase, with every character outside
// [A-Za-z0-9_-] replaced by a hyphen.
func DeriveBranchName(subject string) string {
	subject = strings.ToLower(subject)

	var b strings.Builder
	b.Grow(len(subject))
	for _, r := range subject {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
