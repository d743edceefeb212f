package sshed

import (
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// Checksum returns the content hash sent in the Checksum header: the xxh3
// 64-bit hash as 16 lowercase hex digits.
func Checksum(data []byte) string {
	return formatChecksum(xxh3.Hash(data))
}

func formatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// checksumWriter hashes and counts everything written through it.
type checksumWriter struct {
	w    io.Writer
	hash *xxh3.Hasher
	n    int64
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w, hash: xxh3.New()}
}

func (c *checksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	_, _ = c.hash.Write(p[:n])
	c.n += int64(n)
	return n, err
}

func (c *checksumWriter) Sum() string {
	return formatChecksum(c.hash.Sum64())
}

// verify compares the written content against the announced size and
// checksum.
func (c *checksumWriter) verify(name string, size int64, checksum string) error {
	got := c.Sum()
	if c.n != size || got != checksum {
		return &ChecksumError{
			Name:         name,
			WantSize:     size,
			GotSize:      c.n,
			WantChecksum: checksum,
			GotChecksum:  got,
		}
	}
	return nil
}
