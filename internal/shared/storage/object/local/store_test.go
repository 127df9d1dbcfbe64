package local

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestPutThenOpenRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	obj, err := s.Put(ctx, "u1", "scan 01.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	assert.Equal(t, "image/png", obj.MIME)
	assert.Equal(t, int64(len(pngHeader)), obj.Size)
	assert.True(t, strings.HasSuffix(obj.Key, "_scan_01.png"))
	assert.Equal(t, "local://"+obj.Key, obj.Ref)

	rc, err := s.Open(ctx, obj.Key)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)
}

func TestPutNamespacesByUser(t *testing.T) {
	s := New(t.TempDir())
	a, err := s.Put(context.Background(), "u1", "a.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	b, err := s.Put(context.Background(), "u2", "a.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	assert.NotEqual(t, strings.Split(a.Key, "/")[0], strings.Split(b.Key, "/")[0])
}

func TestPutRejectsTraversalName(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Put(context.Background(), "u1", "../../etc/passwd", bytes.NewReader(pngHeader))
	require.Error(t, err)
}

func TestOpenRejectsEscapingKeys(t *testing.T) {
	s := New(t.TempDir())
	for _, key := range []string{"../secret", "", "a/../../b"} {
		_, err := s.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestOpenHonorsCancelledContext(t *testing.T) {
	s := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
