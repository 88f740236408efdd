// Package secrets handles the data-source credentials stored in the backing
// store. Passwords live encrypted in p_datasource and are only decrypted at
// pool-construction time; the decrypted form never enters a cache.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

// ErrMalformedCiphertext is returned when a stored password cannot be
// decoded or authenticated.
var ErrMalformedCiphertext = errors.New("secrets: malformed ciphertext")

// Codec encrypts and decrypts stored passwords with AES-GCM. The key is
// derived from the configured secret; rotating the secret invalidates every
// stored credential.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives an AES-256 key from secret and returns a ready codec.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("secrets: empty secret")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Codec{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext) for the given plaintext.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. An empty stored value decrypts to an empty
// password, matching data sources that connect without credentials.
func (c *Codec) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(plaintext), nil
}
