package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerNamespaceIsStableHex(t *testing.T) {
	got := OwnerNamespace("google:12345")
	assert.Equal(t, got, OwnerNamespace("google:12345"))
	assert.Len(t, got, 64)
	assert.NotEqual(t, got, OwnerNamespace("google:12346"))
	for _, ch := range got {
		assert.True(t, (ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9'), "non-hex %q", ch)
	}
}

func TestImageKeyIsNamespacedAndUnique(t *testing.T) {
	a, err := ImageKey("u1", "raio x.png")
	require.NoError(t, err)
	b, err := ImageKey("u1", "raio x.png")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, OwnerNamespace("u1"), KeyOwner(a))
	assert.True(t, strings.HasSuffix(a, "_raio_x.png"), a)
}

func TestCleanFileName(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "scan.jpg", want: "scan.jpg"},
		{in: "  a/b\\c.png ", want: "a_b_c.png"},
		{in: "tab\tname.png", want: "tab_name.png"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := CleanFileName(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidFileName, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestCleanFileNameKeepsExtensionWhenCut(t *testing.T) {
	got, err := CleanFileName(strings.Repeat("x", 200) + ".jpeg")
	require.NoError(t, err)
	assert.Len(t, []rune(got), maxNameRunes)
	assert.True(t, strings.HasSuffix(got, ".jpeg"))
}

func TestKeyOwner(t *testing.T) {
	assert.Equal(t, "abc", KeyOwner("/abc/file.png"))
	assert.Equal(t, "", KeyOwner("file.png"))
}
