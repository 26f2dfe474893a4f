package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
)

// KeyLength is the length of every derived key: a hex encoded SHA-256 digest.
const KeyLength = sha256.Size * 2

// Canonicalizer is implemented by query plans. Canonical must return the same
// bytes for logically equivalent plans and must already include the read
// discriminator (single, multiple, count).
type Canonicalizer interface {
	Canonical() []byte
}

// KeyDeriver builds a cache key for a plan executed against a table of a
// connection. It is responsible for producing stable keys across calls and
// processes, and distinct keys whenever any of the three inputs differ.
type KeyDeriver interface {
	DeriveKey(connection, table string, plan Canonicalizer) string
}

type sha256KeyDeriver struct{}

// NewDefaultKeyDeriver returns the SHA-256 key deriver.
func NewDefaultKeyDeriver() KeyDeriver {
	return sha256KeyDeriver{}
}

// DeriveKey hashes the length-prefixed connection and table identifiers
// followed by the canonical plan, so no split of the inputs can produce the
// same hash input twice.
func (sha256KeyDeriver) DeriveKey(connection, table string, plan Canonicalizer) string {
	h := sha256.New()
	writePrefixed(h, connection)
	writePrefixed(h, table)
	h.Write(plan.Canonical())
	return hex.EncodeToString(h.Sum(nil))
}

func writePrefixed(h hash.Hash, s string) {
	h.Write([]byte(strconv.Itoa(len(s))))
	h.Write([]byte{':'})
	h.Write([]byte(s))
	h.Write([]byte{'\n'})
}
