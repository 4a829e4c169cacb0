// Package token validates the anonymous client tokens sent by devices and
// turns them into opaque ledger keys. A key cannot be mapped back to the token
// without the server's pepper.
package token

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// DefaultHeader is the request header that carries the client token.
const DefaultHeader = "X-Client-Token"

var (
	// ErrMissing reports a request without a client token.
	ErrMissing = errors.New("client token missing")
	// ErrMalformed reports a client token with an unacceptable shape.
	ErrMalformed = errors.New("client token malformed")
)

// A Key identifies one anonymous client in the ledger.
type Key string

var tokenRE = regexp.MustCompile(`^[A-Za-z0-9._-]{8,128}$`)

// Hasher derives ledger keys from client tokens.
type Hasher struct {
	pepper []byte
}

// NewHasher returns a Hasher keyed with pepper. The pepper may be empty in
// development; BLAKE2b accepts keys of up to 64 bytes, longer peppers are
// rejected.
func NewHasher(pepper string) (*Hasher, error) {
	if len(pepper) > blake2b.Size {
		return nil, fmt.Errorf("pepper is %d bytes, at most %d allowed", len(pepper), blake2b.Size)
	}
	return &Hasher{pepper: []byte(pepper)}, nil
}

// Canonical validates raw and returns its canonical form. UUIDs are accepted in
// any of the spellings uuid.Parse understands and are lower-cased.
func Canonical(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissing
	}
	if id, err := uuid.Parse(raw); err == nil {
		return id.String(), nil
	}
	if !tokenRE.MatchString(raw) {
		return "", ErrMalformed
	}
	return raw, nil
}

// Key validates raw and derives its ledger key.
func (h *Hasher) Key(raw string) (Key, error) {
	c, err := Canonical(raw)
	if err != nil {
		return "", err
	}
	mac, err := blake2b.New256(h.pepper)
	if err != nil {
		return "", fmt.Errorf("blake2b: %w", err)
	}
	mac.Write([]byte(c))
	return Key(hex.EncodeToString(mac.Sum(nil))), nil
}
