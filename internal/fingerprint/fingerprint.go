// Package fingerprint computes the content hash that decides whether a role
// sighting is worth the expensive detail fetch and free-text extraction.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/registry"
)

// Compute returns the SHA-256 hex digest of the payload's stable subset.
// Equal relevant content always hashes equal: list fields are pre-sorted by
// the registry view and encoding/json emits map keys in sorted order, so
// neither source field order nor key order can shift the digest.
func Compute(p model.Payload) string {
	canonical, err := json.Marshal(registry.FingerprintView(p))
	if err != nil {
		// The view only contains strings, bools, numbers, and string
		// slices; Marshal cannot fail on it.
		panic(err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Changed reports whether a stored fingerprint no longer matches the
// incoming payload. An empty stored fingerprint (pre-backfill row) always
// counts as changed.
func Changed(stored string, p model.Payload) bool {
	return stored == "" || stored != Compute(p)
}
