// Package fingerprint computes content-addressed fingerprints for raw
// bytes, shared by the file watcher (C3 content dedup) and the change
// event data model (spec.md §3: "fingerprint = content hash").
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns the hex-encoded SHA-256 digest of content. Two changes
// with equal fingerprints for the same class are treated as duplicates
// and coalesced (spec.md §3 invariants).
func Of(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two fingerprints denote identical content.
func Equal(a, b string) bool {
	return a != "" && a == b
}
