package visit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashNone is the identity of a bundle where every component is missing.
// Empty bundles are indistinguishable from each other but can never collide
// with a hash of real signals.
const HashNone = "none"

const (
	// Components are joined with the unit separator, which cannot occur in
	// any sane client-reported signal string.
	hashSep = "\x1f"

	// missingMark stands in for an absent component so that a missing value
	// keeps its position in the joined string and stays distinct from a
	// present-but-empty one.
	missingMark = "\x00"
)

// Hash derives the fingerprint identity from an ordered, fixed-arity tuple
// of optional components. Identical tuples (including identical missing
// patterns) always produce the same 64-char lowercase hex digest.
func Hash(components ...*string) string {
	parts := make([]string, len(components))
	present := false
	for i, c := range components {
		if c == nil {
			parts[i] = missingMark
			continue
		}
		parts[i] = *c
		present = true
	}
	if !present {
		return HashNone
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, hashSep)))
	return hex.EncodeToString(sum[:])
}
