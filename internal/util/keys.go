package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// BatchKey returns a deterministic composite key for a set of member keys:
// the prefix plus the first 16 hex chars of a hash of the sorted members.
// Member order does not matter.
func BatchKey(prefix string, keys []string) string {
	s := make([]string, len(keys))
	copy(s, keys)
	sort.Strings(s)
	return BatchKeySorted(prefix, s)
}

// BatchKeySorted is BatchKey for keys already sorted ascending.
func BatchKeySorted(prefix string, sorted []string) string {
	h := sha256.New()
	for _, k := range sorted {
		h.Write([]byte(k))
		h.Write([]byte{0}) // members may contain ','
	}
	sum := h.Sum(nil)
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
