// Package secure provides memory-safe handling of secret material read
// from the outside world, wrapping the memguard library. Buffers are
// encrypted at rest in memory and wiped on destruction, so a core dump
// taken between reading a secret and shipping it to the vault does not
// leak plaintext.
package secure

import (
	"bufio"
	"io"
	"strings"

	"github.com/awnumar/memguard"
)

// Buffer holds secret bytes in a protected enclave.
type Buffer struct {
	enclave *memguard.Enclave
}

// NewBuffer seals the given bytes into a protected buffer. The source
// slice is wiped by memguard as part of sealing.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// ReadLine reads a single line from r into a protected buffer, trimming
// the trailing newline. Used to take secrets from stdin without leaving
// them in ordinary garbage-collected memory longer than necessary.
func ReadLine(r io.Reader) (*Buffer, error) {
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	return NewBuffer([]byte(line)), nil
}

// Open decrypts the buffer for use. The caller must Destroy the returned
// locked buffer as soon as the plaintext is no longer needed.
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	return b.enclave.Open()
}

// WithString runs fn with the plaintext as a string and destroys the
// unlocked copy afterwards. The string must not be retained by fn beyond
// the call.
func (b *Buffer) WithString(fn func(string) error) error {
	locked, err := b.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.String())
}
