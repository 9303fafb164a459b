package arb

import (
	"crypto/sha256"
	"encoding/hex"

	"triflow/models"
)

// RouteID is the stable identity of a triangle used by the debounce cache.
// Parts are newline-separated before hashing so "AB","C" and "A","BC" differ.
func RouteID(tri models.Triangle) string {
	h := sha256.New()
	for _, part := range []string{tri.Base, tri.Mid1, tri.Mid2} {
		h.Write([]byte(part))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
