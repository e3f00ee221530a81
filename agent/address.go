package agent

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"
)

// addressEncoding is base32 without padding, lower-cased on output.
var addressEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// DeriveAddress deterministically derives an agent address from a seed
// string. The same seed always yields the same address, so peers can be
// configured by seed instead of by opaque address.
func DeriveAddress(seed string) string {
	digest := sha256.Sum256([]byte(seed))
	return "agent1" + strings.ToLower(addressEncoding.EncodeToString(digest[:]))
}
