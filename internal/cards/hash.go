package cards

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashForSetCard derives the deterministic card hash for a set member.
func HashForSetCard(setID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d", setID, index)))
	return hex.EncodeToString(sum[:])
}
