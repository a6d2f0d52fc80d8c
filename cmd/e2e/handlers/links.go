package handlers

import (
	"errors"
	"time"

	"github.com/gorilla/securecookie"
)

const linkName = "artifact"

var (
	// ErrInvalidLink is returned for tampered, foreign or expired tokens.
	ErrInvalidLink = errors.New("invalid artifact link")

	// ErrShortLinkSecret is returned when the signing secret is under 32 bytes.
	ErrShortLinkSecret = errors.New("link secret must be at least 32 bytes")
)

// LinkSigner turns storage keys into expiring, tamper-proof tokens.
type LinkSigner struct {
	codec *securecookie.SecureCookie
}

// NewLinkSigner creates a signer. Tokens older than expiry are rejected.
func NewLinkSigner(secret string, expiry time.Duration) (*LinkSigner, error) {
	if len(secret) < 32 {
		return nil, ErrShortLinkSecret
	}
	codec := securecookie.New([]byte(secret), nil)
	codec.MaxAge(int(expiry / time.Second))
	return &LinkSigner{codec: codec}, nil
}

// Sign returns a token for key.
func (s *LinkSigner) Sign(key string) (string, error) {
	return s.codec.Encode(linkName, key)
}

// Verify returns the key a token was signed for.
func (s *LinkSigner) Verify(token string) (string, error) {
	var key string
	if err := s.codec.Decode(linkName, token, &key); err != nil {
		return "", ErrInvalidLink
	}
	return key, nil
}
