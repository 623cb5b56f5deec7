package tokens

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex is the stored marker for a signed token; the token bytes
// themselves never touch the database.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
