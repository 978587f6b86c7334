package kvstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// EncryptionBackend wraps any backend with AES-256-GCM encryption at rest.
// The store image and transaction records are encrypted before storage and
// decrypted after retrieval; the lock sentinel passes through unchanged so
// its exclusive-creation semantics are untouched.
type EncryptionBackend struct {
	Backend
	key []byte // 32 bytes for AES-256
}

// NewEncryptionBackend wraps a backend with AES-256-GCM encryption.
// Key must be exactly 32 bytes for AES-256.
func NewEncryptionBackend(backend Backend, key []byte) (*EncryptionBackend, error) {
	if len(key) != 32 {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"expected_key_length": 32,
			"actual_key_length":   len(key),
			"reason":              "AES-256 requires 32-byte key",
		})
	}

	return &EncryptionBackend{
		Backend: backend,
		key:     key,
	}, nil
}

func (e *EncryptionBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := e.Backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if key == LockObject {
		return data, nil
	}
	return e.decrypt(data)
}

func (e *EncryptionBackend) Put(ctx context.Context, key string, data []byte) error {
	if key == LockObject {
		return e.Backend.Put(ctx, key, data)
	}
	encrypted, err := e.encrypt(data)
	if err != nil {
		return err
	}
	return e.Backend.Put(ctx, key, encrypted)
}

func (e *EncryptionBackend) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	if key == LockObject {
		return e.Backend.PutIfAbsent(ctx, key, data)
	}
	encrypted, err := e.encrypt(data)
	if err != nil {
		return err
	}
	return e.Backend.PutIfAbsent(ctx, key, encrypted)
}

// encrypt seals data with a random nonce prepended to the ciphertext.
func (e *EncryptionBackend) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *EncryptionBackend) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"reason": "ciphertext shorter than nonce",
		})
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
