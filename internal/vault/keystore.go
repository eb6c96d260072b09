package vault

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/socrates8300/openchime/internal/ocerr"
)

const (
	keystoreService = "openchime"
	keystoreKeyName = "master-key"
)

// KeyStore retrieves or mints the 32-byte master key used by the vault.
// The default implementation is backed by the OS credential manager
// (Keychain, Secret Service, Windows Credential Manager); there is
// deliberately no file-backed fallback.
type KeyStore interface {
	// MasterKey returns the 32-byte master key, minting and persisting one
	// on first run. It returns ocerr.KeystoreUnavailable if the OS
	// credential store cannot be reached.
	MasterKey() (*SecretBytes, error)
}

type keyringKeyStore struct {
	service string
	keyName string
}

// NewOSKeyStore returns a KeyStore backed by the OS credential manager.
// An empty service or keyName falls back to OpenChime's default
// credential entry identifiers.
func NewOSKeyStore(service, keyName string) KeyStore {
	if service == "" {
		service = keystoreService
	}
	if keyName == "" {
		keyName = keystoreKeyName
	}
	return keyringKeyStore{service: service, keyName: keyName}
}

func (k keyringKeyStore) MasterKey() (*SecretBytes, error) {
	encoded, err := keyring.Get(k.service, k.keyName)
	if err == nil {
		key, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil {
			return nil, ocerr.Wrap(ocerr.KeystoreUnavailable, "stored master key is not valid base64", decodeErr)
		}
		if len(key) != 32 {
			return nil, ocerr.New(ocerr.KeystoreUnavailable, "stored master key has unexpected length")
		}
		return NewSecretBytes(key), nil
	}

	if err != keyring.ErrNotFound {
		return nil, ocerr.Wrap(ocerr.KeystoreUnavailable, "OS credential store unreachable", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, ocerr.Wrap(ocerr.KeystoreUnavailable, "failed to generate master key", err)
	}

	encoded = base64.StdEncoding.EncodeToString(key)
	if err := keyring.Set(k.service, k.keyName, encoded); err != nil {
		return nil, ocerr.Wrap(ocerr.KeystoreUnavailable, "failed to persist master key to OS credential store", err)
	}

	return NewSecretBytes(key), nil
}

// staticKeyStore is a KeyStore over an already-known key, used by tests.
type staticKeyStore struct {
	key []byte
}

// NewStaticKeyStore returns a KeyStore that always returns key. It exists
// for tests that cannot rely on an OS credential manager being present.
func NewStaticKeyStore(key []byte) KeyStore {
	if len(key) != 32 {
		panic(fmt.Sprintf("vault: static key must be 32 bytes, got %d", len(key)))
	}
	cp := make([]byte, 32)
	copy(cp, key)
	return staticKeyStore{key: cp}
}

func (s staticKeyStore) MasterKey() (*SecretBytes, error) {
	cp := make([]byte, len(s.key))
	copy(cp, s.key)
	return NewSecretBytes(cp), nil
}
