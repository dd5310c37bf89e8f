// Package cryptox derives the server-side signing key from the configured
// secret.
package cryptox

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// KeySize is the length of derived keys in bytes.
const KeySize = 32

// signingSalt binds derived keys to cookie signing, so the same secret used
// elsewhere yields an unrelated key.
var signingSalt = []byte("extsession/cookie-signing/v1")

// DeriveKey stretches secret with Argon2id.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// DeriveSigningKey returns the cookie-signing key for secret.
func DeriveSigningKey(secret string) []byte {
	return DeriveKey([]byte(secret), signingSalt)
}

// KeyID returns a short public fingerprint of key, used to tell keys apart
// after the secret is rotated.
func KeyID(key []byte) string {
	hash := sha256.Sum256(key)
	return hex.EncodeToString(hash[:8])
}
