package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// PairKey derives the canonical conversation key for an unordered pair of
// user IDs. The lower ID always comes first, so argument order is
// irrelevant, and distinct pairs hash to distinct keys. The fixed-length
// hex string is indexable with a unique constraint, which is what enforces
// one chat per pair.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "pair:%d:%d", a, b))
	return hex.EncodeToString(sum[:])
}
