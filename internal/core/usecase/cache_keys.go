package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cache key namespaces. Session is reserved for the external session
// layer; it shares the key format so one invalidation sweep can cover it.
const (
	cachePrefixSearch    = "search"
	cachePrefixDocument  = "document"
	cachePrefixEmbedding = "embedding"
	cachePrefixSession   = "session"
)

// cacheKey builds "<prefix>:<stable-hash-of-components>". Components are
// canonicalized through JSON so equal inputs always hash equally.
func cacheKey(prefix string, components ...any) string {
	h := sha256.New()
	for _, c := range components {
		raw, err := json.Marshal(c)
		if err != nil {
			// Unmarshalable component: fall back to its printed form so
			// the key stays deterministic rather than failing the call.
			raw = []byte(fmt.Sprintf("%v", c))
		}
		h.Write(raw)
		h.Write([]byte{0})
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}
