package credstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// sealer encrypts tokens at rest so neither tier ever stores plaintext
// bearer tokens.
type sealer struct {
	key [32]byte
}

func newSealer(secret string) *sealer {
	return &sealer{key: sha256.Sum256([]byte(secret))}
}

func (s *sealer) seal(plain string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("credstore: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *sealer) open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("credstore: decode: %w", err)
	}
	if len(raw) < 24 {
		return "", errors.New("credstore: sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return "", errors.New("credstore: unseal failed")
	}
	return string(plain), nil
}
