package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identifiers. The version suffix
// allows a future algorithm change without colliding with old ids.
const (
	DomainLeg     = "courier/leg/v1"
	DomainOutcome = "courier/outcome/v1"
)

// Digest hashes the canonical encoding of v under a domain prefix:
// SHA256(domain || 0x00 || canonical(v)).
func Digest(domain string, v Value) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
