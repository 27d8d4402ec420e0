// Package secrets generates and masks per-project bypass credentials.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	// Prefix is the fixed, recognizable prefix on every bypass secret.
	// The UI keeps it visible when the rest of the secret is masked.
	Prefix = "bgs_"

	// bodyLen is the number of hex characters following the prefix.
	// 32 hex chars encode 128 bits of entropy.
	bodyLen = 32
)

// allMask is what masking returns for anything that is not a well-formed
// secret. A constant output means masking leaks nothing about the input.
var allMask = strings.Repeat("*", len(Prefix)+bodyLen)

// Generate returns a new bypass secret: the fixed prefix followed by
// 128 bits from crypto/rand, hex encoded.
func Generate() (string, error) {
	b := make([]byte, bodyLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(b), nil
}

// ValidateFormat reports whether s has the exact shape of a generated
// secret. Call this before comparing or displaying a secret.
func ValidateFormat(s string) bool {
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	body := s[len(Prefix):]
	if len(body) != bodyLen {
		return false
	}
	for _, c := range body {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Mask returns the display form of a secret: the prefix plus a fixed-width
// mask for a valid secret, or the all-mask constant for anything else.
// The output depends only on the validity of s, never on its value.
func Mask(s string) string {
	if !ValidateFormat(s) {
		return allMask
	}
	return Masked()
}

// Masked is the display form of any valid secret. Used where the stored
// secret is known to be well-formed and decrypting it just to mask it
// would be pointless.
func Masked() string {
	return Prefix + strings.Repeat("*", bodyLen)
}
