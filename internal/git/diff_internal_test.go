package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawDiffMeta(t *testing.T) {
	tests := []struct {
		name string
		give string
		want FileDelta
		err  string
	}{
		{
			name: "Modified",
			give: ":100644 100644 aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb M",
			want: FileDelta{
				OldMode: RegularMode,
				NewMode: RegularMode,
				OldBlob: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				NewBlob: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
				Status:  FileModified,
			},
		},
		{
			name: "Added",
			give: ":000000 100644 0000000000000000000000000000000000000000 bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb A",
			want: FileDelta{
				OldMode: ZeroMode,
				NewMode: RegularMode,
				OldBlob: ZeroHash,
				NewBlob: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
				Status:  FileAdded,
			},
		},
		{
			name: "Deleted",
			give: ":100644 000000 aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa 0000000000000000000000000000000000000000 D",
			want: FileDelta{
				OldMode: RegularMode,
				NewMode: ZeroMode,
				OldBlob: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				NewBlob: ZeroHash,
				Status:  FileDeleted,
			},
		},
		{
			name: "TooFewFields",
			give: ":100644 100644 aaaa",
			err:  "expected 5 fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRawDiffMeta([]byte(tt.give))
			if tt.err != "" {
				require.ErrorContains(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileDeltaKey(t *testing.T) {
	a := FileDelta{Path: "foo.txt", OldBlob: "aaa", NewBlob: "bbb"}
	b := FileDelta{Path: "bar.txt", OldBlob: "aaa", NewBlob: "bbb"}
	c := FileDelta{Path: "foo.txt", OldBlob: "aaa", NewBlob: "ccc"}

	assert.Equal(t, a.Key(), b.Key(),
		"same blob pair must compare equal regardless of path")
	assert.NotEqual(t, a.Key(), c.Key())
}
