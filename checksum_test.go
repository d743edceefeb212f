package sshed

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	sum := Checksum([]byte("hello\n"))
	assert.Len(t, sum, 16)
	assert.Equal(t, strings.ToLower(sum), sum)
	assert.Equal(t, sum, Checksum([]byte("hello\n")))
	assert.NotEqual(t, sum, Checksum([]byte("hello")))
	assert.Len(t, Checksum(nil), 16)
}

func TestChecksumWriter(t *testing.T) {
	data := bytes.Repeat([]byte("some content\n"), 1000)

	var buf bytes.Buffer
	cw := newChecksumWriter(&buf)
	for chunk := range slices.Chunk(data, 777) {
		_, err := cw.Write(chunk)
		require.NoError(t, err)
	}

	assert.Equal(t, data, buf.Bytes())
	assert.Equal(t, Checksum(data), cw.Sum())
	assert.NoError(t, cw.verify("f", int64(len(data)), Checksum(data)))
}

func TestChecksumWriter_Verify(t *testing.T) {
	cw := newChecksumWriter(&bytes.Buffer{})
	_, _ = cw.Write([]byte("abc"))

	err := cw.verify("f", 3, Checksum([]byte("abd")))
	require.True(t, IsChecksumMismatch(err))
	assert.Contains(t, err.Error(), "checksum mismatch")

	err = cw.verify("f", 4, Checksum([]byte("abc")))
	require.True(t, IsChecksumMismatch(err))
	assert.Contains(t, err.Error(), "size mismatch")

	assert.False(t, IsChecksumMismatch(nil))
}
