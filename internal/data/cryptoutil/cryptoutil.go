// Package cryptoutil seals session tokens before they are written to a store.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sealer seals and opens token values. The field name is bound to the ciphertext as
// associated data, so a sealed access token cannot be replayed as a refresh token.
type Sealer interface {
	Seal(field string, plaintext []byte) (string, error)
	Open(field, sealed string) ([]byte, error)
}

const (
	sealedPrefixV1 = "v1:"
	plainPrefix    = "plain:"
	keySize        = 32
)

// ErrUnsealed is returned by AESGCMSealer.Open for a value written without a key.
var ErrUnsealed = errors.New("value was stored without encryption")

// AESGCMSealer implements Sealer using AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
	// AllowPlain accepts values written by PlainSealer, for stores created before a key was configured.
	AllowPlain bool
}

// NewAESGCMSealer constructs an AESGCMSealer. Key must be 32 bytes (AES-256).
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("aes-gcm key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMSealer{aead: gcm}, nil
}

// Seal encrypts plaintext with a random nonce and returns a versioned base64 string.
func (s *AESGCMSealer) Seal(field string, plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	// nonce||ciphertext
	buf := s.aead.Seal(nonce, nonce, plaintext, []byte(field))
	return sealedPrefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts a value produced by Seal for the same field.
func (s *AESGCMSealer) Open(field, sealed string) ([]byte, error) {
	if strings.HasPrefix(sealed, plainPrefix) {
		if !s.AllowPlain {
			return nil, ErrUnsealed
		}
		return PlainSealer{}.Open(field, sealed)
	}
	if !strings.HasPrefix(sealed, sealedPrefixV1) {
		return nil, fmt.Errorf("unknown sealed value version (prefix: %s)", prefixOf(sealed))
	}
	data, err := base64.StdEncoding.DecodeString(sealed[len(sealedPrefixV1):])
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("sealed value too short")
	}
	pt, err := s.aead.Open(nil, data[:n], data[n:], []byte(field))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", field, err)
	}
	return pt, nil
}

// PlainSealer stores values base64-encoded with a marker prefix. Used when no key is configured and in tests.
type PlainSealer struct{}

func (PlainSealer) Seal(_ string, plaintext []byte) (string, error) {
	return plainPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (PlainSealer) Open(_ string, sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, plainPrefix) {
		return nil, errors.New("invalid plain value")
	}
	return base64.StdEncoding.DecodeString(sealed[len(plainPrefix):])
}

// SealString seals a string field. Empty values stay empty so an absent token remains absent.
func SealString(s Sealer, field, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return s.Seal(field, []byte(value))
}

// OpenString is the inverse of SealString.
func OpenString(s Sealer, field, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	pt, err := s.Open(field, sealed)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// ParseKey decodes a 32-byte key given as 64 hex characters or standard base64.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == hex.EncodedLen(keySize) {
		if key, err := hex.DecodeString(raw); err == nil {
			return key, nil
		}
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("session encryption key must be hex or base64: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("session encryption key must decode to %d bytes, got %d", keySize, len(key))
	}
	return key, nil
}

// FromKey returns an AES-GCM sealer for a configured key, or a PlainSealer when the key is blank.
func FromKey(raw string) (Sealer, error) {
	if strings.TrimSpace(raw) == "" {
		return PlainSealer{}, nil
	}
	key, err := ParseKey(raw)
	if err != nil {
		return nil, err
	}
	s, err := NewAESGCMSealer(key)
	if err != nil {
		return nil, err
	}
	s.AllowPlain = true
	return s, nil
}

func prefixOf(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
