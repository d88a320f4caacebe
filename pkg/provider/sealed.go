package provider

import (
	"context"
	"fmt"
	"io"

	"replicafs/pkg/crypto"
)

// Sealed encrypts payloads before they reach the wrapped provider and decrypts
// them on the way out.
type Sealed struct {
	inner  Provider
	cipher crypto.Cipher
}

// Seal wraps p so every stored payload is encrypted with c under the caller credential.
func Seal(p Provider, c crypto.Cipher) *Sealed {
	return &Sealed{inner: p, cipher: c}
}

// Unwrap returns the wrapped provider.
func (s *Sealed) Unwrap() Provider {
	return s.inner
}

// Name returns the wrapped adapter name.
func (s *Sealed) Name() string {
	return s.inner.Name()
}

// Initialize initializes the wrapped provider.
func (s *Sealed) Initialize(ctx context.Context) error {
	return s.inner.Initialize(ctx)
}

// Store encrypts data and stores the ciphertext.
func (s *Sealed) Store(ctx context.Context, data []byte, filename, credential string) (Receipt, error) {
	ciphertext, err := s.cipher.Encrypt(data, credential)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return s.inner.Store(ctx, ciphertext, filename, credential)
}

// Retrieve loads the ciphertext and decrypts it.
func (s *Sealed) Retrieve(ctx context.Context, filename, credential string) ([]byte, error) {
	ciphertext, err := s.inner.Retrieve(ctx, filename, credential)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.cipher.Decrypt(ciphertext, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// Delete removes filename from the wrapped provider.
func (s *Sealed) Delete(ctx context.Context, filename string) error {
	return s.inner.Delete(ctx, filename)
}

// List lists the wrapped provider.
func (s *Sealed) List(ctx context.Context) ([]string, error) {
	return s.inner.List(ctx)
}

// Exists probes the wrapped provider.
func (s *Sealed) Exists(ctx context.Context, filename string) bool {
	return s.inner.Exists(ctx, filename)
}

// IsConfigured reports the wrapped provider's local check.
func (s *Sealed) IsConfigured() bool {
	return s.inner.IsConfigured()
}

// Ping forwards to the wrapped provider's probe so sealing never hides a Pinger.
func (s *Sealed) Ping(ctx context.Context) error {
	return Probe(ctx, s.inner)
}

// Close closes the wrapped provider when it holds resources.
func (s *Sealed) Close() error {
	if closer, ok := s.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
