package render

import (
	"crypto/sha256"
	"encoding/hex"
)

// ScopeAttrPrefix prefixes the attribute that ties rendered elements to
// their unit's scoped stylesheet.
const ScopeAttrPrefix = "data-braid-"

// ScopeToken derives a unit's style scope token from its identifier. The
// derivation is stable, so a unit's artifacts only change when its source
// or identifier does.
func ScopeToken(unitID string) string {
	sum := sha256.Sum256([]byte(unitID))
	return "b" + hex.EncodeToString(sum[:4])
}

// ScopeAttr returns the scope attribute name for a token.
func ScopeAttr(token string) string {
	return ScopeAttrPrefix + token
}
