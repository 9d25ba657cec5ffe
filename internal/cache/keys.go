package cache

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// DedupMarkerKey builds the Redis key marking a recently created notification
// for (organization, user, deduplication key). The dedup key is hashed so the
// Redis key stays bounded regardless of how many entities the key encodes.
func DedupMarkerKey(orgID, userID uuid.UUID, dedupKey string) string {
	sum := sha256.Sum256([]byte(dedupKey))
	return fmt.Sprintf("dedup:%s:%s:%x", orgID, userID, sum[:16])
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
