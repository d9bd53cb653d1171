// Package hsgcrypto provides the symmetric encryption-at-rest service
// content passes through before persistence (spec.md §4.2 step 4, invariant
// 11). Grounded on the AES-256-GCM + HKDF-SHA256 pattern in
// ehrlich-b-wingthing/internal/auth/crypto.go, adapted from an X25519 peer
// key-exchange setting to a single master-key-plus-tenant-salt setting since
// HSG encrypts content at rest for one owner rather than negotiating a
// shared secret between two parties.
package hsgcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// info is the fixed HKDF context string binding derived keys to this
// package, mirroring the teacher's "wt-pty" info string.
const info = "hsg-content-v1"

// Service encrypts and decrypts Memory content with a per-tenant key derived
// from a single master key via HKDF-SHA256.
type Service struct {
	masterKey []byte
}

// NewService builds a Service from a 32-byte (or longer; HKDF will reduce
// it) master key. The master key is expected to come from the deployment's
// secret store, never from persisted state.
func NewService(masterKey []byte) (*Service, error) {
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("hsgcrypto: master key must not be empty")
	}
	return &Service{masterKey: masterKey}, nil
}

// gcmFor derives a tenant-scoped AES-256-GCM AEAD: salt = sha256(userID),
// info = the fixed package context string.
func (s *Service) gcmFor(userID string) (cipher.AEAD, error) {
	salt := sha256.Sum256([]byte(userID))
	kdf := hkdf.New(sha256.New, s.masterKey, salt[:], []byte(info))
	aesKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, aesKey); err != nil {
		return nil, fmt.Errorf("hsgcrypto: hkdf: %w", err)
	}
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("hsgcrypto: aes: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt returns base64(nonce || ciphertext || tag) for plaintext, scoped
// to userID.
func (s *Service) Encrypt(userID string, plaintext []byte) (string, error) {
	gcm, err := s.gcmFor(userID)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("hsgcrypto: nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt for the same userID.
func (s *Service) Decrypt(userID string, encoded string) ([]byte, error) {
	gcm, err := s.gcmFor(userID)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("hsgcrypto: decode: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("hsgcrypto: ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
