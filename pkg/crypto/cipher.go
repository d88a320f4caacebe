// Package crypto implements the symmetric transform applied to payloads before
// they reach a provider. The registry never inspects plaintext; providers are
// wrapped with provider.Seal to encrypt on the way in and decrypt on the way out.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	formatVersion byte = 1
	saltSize           = 16

	// Argon2id parameters for deriving a key from a credential.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	// ErrEmptyCredential is returned when no credential is supplied.
	ErrEmptyCredential = errors.New("empty credential")

	// ErrMalformedCiphertext is returned when the payload is too short or has an unknown version.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrAuthentication is returned when the payload fails authentication,
	// typically because the credential is wrong.
	ErrAuthentication = errors.New("ciphertext authentication failed")
)

// Cipher encrypts and decrypts payloads keyed by a caller credential.
type Cipher interface {
	Encrypt(plaintext []byte, credential string) ([]byte, error)
	Decrypt(ciphertext []byte, credential string) ([]byte, error)
}

// XChaCha seals payloads with XChaCha20-Poly1305 under an Argon2id key.
//
// Layout: version(1) | salt(16) | nonce(24) | sealed payload.
type XChaCha struct{}

// NewXChaCha returns the default cipher.
func NewXChaCha() *XChaCha {
	return &XChaCha{}
}

func deriveKey(credential string, salt []byte) []byte {
	return argon2.IDKey([]byte(credential), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// Encrypt seals plaintext with a key derived from credential and a fresh salt.
func (c *XChaCha) Encrypt(plaintext []byte, credential string) ([]byte, error) {
	if credential == "" {
		return nil, ErrEmptyCredential
	}

	header := make([]byte, 1+saltSize+chacha20poly1305.NonceSizeX)
	header[0] = formatVersion
	if _, err := rand.Read(header[1:]); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	salt := header[1 : 1+saltSize]
	nonce := header[1+saltSize:]

	aead, err := chacha20poly1305.NewX(deriveKey(credential, salt))
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(header), len(header)+len(plaintext)+aead.Overhead())
	copy(out, header)
	return aead.Seal(out, nonce, plaintext, header[:1]), nil
}

// Decrypt opens a payload produced by Encrypt.
func (c *XChaCha) Decrypt(ciphertext []byte, credential string) ([]byte, error) {
	if credential == "" {
		return nil, ErrEmptyCredential
	}

	headerLen := 1 + saltSize + chacha20poly1305.NonceSizeX
	if len(ciphertext) < headerLen+chacha20poly1305.Overhead || ciphertext[0] != formatVersion {
		return nil, ErrMalformedCiphertext
	}
	salt := ciphertext[1 : 1+saltSize]
	nonce := ciphertext[1+saltSize : headerLen]

	aead, err := chacha20poly1305.NewX(deriveKey(credential, salt))
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext[headerLen:], ciphertext[:1])
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
