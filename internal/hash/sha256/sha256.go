// Package sha256 derives stable worklist row identities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// RowID derives the stable identity of a worklist row from its raw
// reference and affiliate link. Rows are addressed by this digest rather
// than by position, so external reordering cannot corrupt status updates.
func RowID(reference, link string) string {
	sum := sha256.Sum256([]byte(reference + "\n" + link))
	return hex.EncodeToString(sum[:])
}
