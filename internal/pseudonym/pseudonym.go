// Package pseudonym replaces raw usernames with keyed one-way digests.
//
// A fresh key is generated for every run, so the same username maps to the
// same pseudonym within one output file but to a different pseudonym on the
// next run. Nobody, including the operator, can reverse a pseudonym once the
// process exits.
package pseudonym

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

// KeySize is the number of random bytes backing a Key. Matched to the
// SHA-512 block size so the HMAC key is never hashed down.
const KeySize = 64

// Key is the per-run secret used to derive pseudonyms. It lives only in
// memory and must never be written to any output artifact.
type Key []byte

// NewKey generates a cryptographically random per-run key.
func NewKey() (Key, error) {
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("generating pseudonym key: %w", err)
	}
	return k, nil
}

// String hides the key bytes from %v/%s formatting and from loggers that
// stringify their fields.
func (k Key) String() string {
	return "pseudonym.Key(redacted)"
}

// Pseudonym returns the hex-encoded HMAC-SHA-512 of the username under this
// key. The digest is 128 hex characters; two distinct usernames collide with
// negligible probability, and the same username always maps to the same
// digest for a given key.
func (k Key) Pseudonym(username string) string {
	mac := hmac.New(sha512.New, k)
	mac.Write([]byte(username))
	return hex.EncodeToString(mac.Sum(nil))
}
