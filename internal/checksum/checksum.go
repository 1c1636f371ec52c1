// Package checksum computes the hex SHA-256 digests used for layout ETags
// and backup files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Lines hashes a sequence of formatted lines without building the whole
// text in memory. Lines("a") followed by Sum equals Sum([]byte("a\n")).
type Lines struct {
	h hash.Hash
}

// NewLines returns an empty line digest.
func NewLines() *Lines {
	return &Lines{h: sha256.New()}
}

// Addf appends one line.
func (l *Lines) Addf(format string, args ...any) {
	fmt.Fprintf(l.h, format, args...)
	l.h.Write([]byte{'\n'})
}

// Sum returns the hex-encoded digest of the lines added so far.
func (l *Lines) Sum() string {
	return hex.EncodeToString(l.h.Sum(nil))
}
