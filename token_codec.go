package activation

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/blake2b"
)

// TokenEntropyBytes is the amount of random bytes in an activation token
const TokenEntropyBytes = 32

// TokenCodec issues activation tokens and computes the digest persisted
// in place of the raw value.
type TokenCodec interface {
	Issue() (string, error)
	Digest(raw string) string
}

type blake2bCodec struct {
	key []byte
}

// NewTokenCodec returns a codec using BLAKE2b-256 for digests. A non empty
// key turns the digest into a keyed MAC.
func NewTokenCodec(key string) TokenCodec {
	c := &blake2bCodec{}
	switch {
	case key == "":
	case len(key) > blake2b.Size:
		// blake2b keys are limited to 64 bytes
		sum := blake2b.Sum512([]byte(key))
		c.key = sum[:]
	default:
		c.key = []byte(key)
	}
	return c
}

// Issue returns a random URL safe token
func (c *blake2bCodec) Issue() (string, error) {
	b := make([]byte, TokenEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes for activation token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Digest returns the hex encoded digest of raw. The empty token has an
// empty digest, which never matches a stored record.
func (c *blake2bCodec) Digest(raw string) string {
	if raw == "" {
		return ""
	}

	h, err := blake2b.New256(c.key)
	if err != nil {
		return ""
	}

	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
