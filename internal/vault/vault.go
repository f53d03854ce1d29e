// Package vault seals per-user API keys at rest with XChaCha20-Poly1305.
//
// Sealed blobs are nonce||ciphertext. The additional data binds a blob to
// its (user, tier) owner, so a row copied to another owner fails to open.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/vortexartec/gencore/pkg/contracts"
)

// KeySize is the master key length in bytes.
const KeySize = chacha20poly1305.KeySize

var (
	ErrKeySize    = fmt.Errorf("vault: master key must be %d bytes", KeySize)
	ErrCiphertext = errors.New("vault: malformed or tampered ciphertext")
)

// Vault is an AEAD-backed contracts.Vault.
type Vault struct {
	aead cipher.AEAD
}

var _ contracts.Vault = (*Vault)(nil)

// New creates a vault from a 32-byte master key.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (v *Vault) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Decrypt opens a blob produced by Encrypt with the same aad.
func (v *Vault) Decrypt(ciphertext, aad []byte) ([]byte, error) {
	ns := v.aead.NonceSize()
	if len(ciphertext) < ns+chacha20poly1305.Overhead {
		return nil, ErrCiphertext
	}
	pt, err := v.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], aad)
	if err != nil {
		return nil, ErrCiphertext
	}
	return pt, nil
}

// OwnerAAD is the additional data for a credential owned by (userID, tier).
func OwnerAAD(userID, tier string) []byte {
	return []byte(userID + "\x00" + tier)
}
