package ingest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the content hash used for exact-duplicate file
// detection. It hashes the raw bytes, not parsed rows, so any byte-level
// difference (including whitespace) yields a different hash. This is a
// strict duplicate-upload guard, not a semantic-equality check.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
