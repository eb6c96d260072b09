// Package vault implements authenticated encryption of credential-at-rest
// columns (OAuth token bundles, ICS URLs) using a master key sourced from
// the OS keystore. Its wire format is AES-256-GCM with a random
// 96-bit nonce prepended to the sealed output, the whole thing base64
// encoded.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/socrates8300/openchime/internal/ocerr"
)

// Vault encrypts and decrypts credential-at-rest values. It holds no
// mutable state beyond the in-memory key, which is kept in a
// zero-on-drop container and never logged.
type Vault struct {
	key *SecretBytes
}

// Open retrieves the master key from ks and returns a ready Vault.
// Retrieval is mandatory at startup; a KeyStore error is fatal and the
// caller must not start the scheduler.
func Open(ks KeyStore) (*Vault, error) {
	key, err := ks.MasterKey()
	if err != nil {
		return nil, err
	}
	return &Vault{key: key}, nil
}

// Close zeroes the in-memory master key.
func (v *Vault) Close() {
	v.key.Close()
}

// Encrypt seals plaintext with a fresh random nonce and returns the
// base64(nonce||ciphertext||tag) wire format. plaintext is zeroed before
// this function returns.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	defer zero(plaintext)

	gcm, err := v.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ocerr.Wrap(ocerr.DecryptionFailed, "failed to generate nonce", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// EncryptString is a convenience wrapper over Encrypt for string inputs.
func (v *Vault) EncryptString(plaintext string) (string, error) {
	return v.Encrypt([]byte(plaintext))
}

// Decrypt decodes, splits, and opens a ciphertext produced by Encrypt. It
// fails with ocerr.DecryptionFailed on any tamper, wrong-key, or format
// error. The returned plaintext is wrapped in a zero-on-drop container;
// the caller must Close it once done.
func (v *Vault) Decrypt(ciphertextText string) (*SecretBytes, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextText)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DecryptionFailed, "ciphertext is not valid base64", err)
	}

	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, ocerr.New(ocerr.DecryptionFailed, "ciphertext too short")
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DecryptionFailed, "authentication tag mismatch", err)
	}

	return NewSecretBytes(plaintext), nil
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key.Bytes())
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DecryptionFailed, "failed to construct cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DecryptionFailed, "failed to construct GCM", err)
	}
	return gcm, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
