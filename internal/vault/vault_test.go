package vault

import (
	"bytes"
	"testing"

	"github.com/socrates8300/openchime/internal/ocerr"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	v, err := Open(NewStaticKeyStore(key))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return v
}

func TestEncryptDecrypt_Basic(t *testing.T) {
	v := testVault(t)

	plaintext := []byte("my-super-secret-oauth-token")
	ciphertext, err := v.Encrypt(append([]byte(nil), plaintext...))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if ciphertext == "" {
		t.Fatal("ciphertext is empty")
	}

	decrypted, err := v.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	defer decrypted.Close()

	if !bytes.Equal(decrypted.Bytes(), plaintext) {
		t.Fatalf("decrypted mismatch: got %q, want %q", decrypted.Bytes(), plaintext)
	}
}

func TestEncryptDecrypt_EmptyAndLarge(t *testing.T) {
	v := testVault(t)

	cases := [][]byte{
		{},
		bytes.Repeat([]byte("x"), 64*1024),
	}
	for _, plaintext := range cases {
		cp := append([]byte(nil), plaintext...)
		ciphertext, err := v.Encrypt(cp)
		if err != nil {
			t.Fatalf("Encrypt failed for len %d: %v", len(plaintext), err)
		}
		decrypted, err := v.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt failed for len %d: %v", len(plaintext), err)
		}
		if !bytes.Equal(decrypted.Bytes(), plaintext) {
			t.Fatalf("roundtrip mismatch for len %d", len(plaintext))
		}
		decrypted.Close()
	}
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	v := testVault(t)

	seen := make(map[string]bool)
	const n = 2000
	for i := 0; i < n; i++ {
		ciphertext, err := v.Encrypt([]byte("same-content"))
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if seen[ciphertext[:16]] {
			t.Fatalf("nonce prefix collision detected after %d encryptions", i)
		}
		seen[ciphertext[:16]] = true
	}
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	v := testVault(t)

	ciphertext, err := v.Encrypt([]byte("secret data"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	raw := []byte(ciphertext)
	// Flip a bit well past the nonce so it lands in the sealed ciphertext.
	raw[len(raw)-2] ^= 0x01

	if _, err := v.Decrypt(string(raw)); err == nil {
		t.Fatal("expected DecryptionFailed for tampered ciphertext")
	} else if !ocerr.Is(err, ocerr.DecryptionFailed) {
		t.Fatalf("expected DecryptionFailed, got %v", err)
	}
}

func TestDecrypt_TooShort(t *testing.T) {
	v := testVault(t)

	if _, err := v.Decrypt("AA=="); err == nil {
		t.Fatal("expected error for too-short ciphertext")
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	key1 := make([]byte, 32)
	key2 := make([]byte, 32)
	for i := range key2 {
		key2[i] = byte(255 - i)
	}

	v1, _ := Open(NewStaticKeyStore(key1))
	v2, _ := Open(NewStaticKeyStore(key2))

	ciphertext, err := v1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := v2.Decrypt(ciphertext); err == nil {
		t.Fatal("expected error decrypting with wrong key")
	}
}

func TestDecrypt_InvalidBase64(t *testing.T) {
	v := testVault(t)

	if _, err := v.Decrypt("not-valid-base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
