package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.ubr.dev/ubr/internal/engine"
	"pgregory.net/rapid"
)

func TestDeriveBranchName(t *testing.T) {
	tests := []struct {
		name string
		give string
		want string
	}{
		{
			name: "Simple",
			give: "fix the thing",
			want: "fix-the-thing",
		},
		{
			name: "Uppercase",
			give: "Fix The Thing",
			want: "fix-the-thing",
		},
		{
			name: "Punctuation",
			give: "fix: handle EOF in parser (#42)",
			want: "fix--handle-eof-in-parser---42-",
		},
		{
			name: "UnderscoreAndHyphenKept",
			give: "add_feature-x",
			want: "add_feature-x",
		},
		{
			name: "NonASCII",
			give: "café time",
			want: "caf--time",
		},
		{
			name: "Empty",
			give: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.DeriveBranchName(tt.give))
		})
	}
}

// TestDeriveBranchNameProperties checks the invariants of the name
// derivation for arbitrary subjects: only [a-z0-9_-] survives, and
// deriving twice is the same as deriving once.
func TestDeriveBranchNameProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		subject := rapid.String().Draw(t, "subject")

		got := engine.DeriveBranchName(subject)
		for _, r := range got {
			ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
			assert.True(t, ok, "unexpected rune %q in %q", r, got)
		}

		assert.Equal(t, got, engine.DeriveBranchName(got), "derivation must be idempotent")
	})
}
