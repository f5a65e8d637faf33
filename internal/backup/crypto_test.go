package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	b, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(a) != saltSize {
		t.Errorf("salt length = %d, want %d", len(a), saltSize)
	}
	if bytes.Equal(a, b) {
		t.Error("two salts are equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")
	k1 := DeriveKey("correct horse", salt)
	if len(k1) != keySize {
		t.Errorf("key length = %d, want %d", len(k1), keySize)
	}
	if !bytes.Equal(k1, DeriveKey("correct horse", salt)) {
		t.Error("same passphrase and salt gave different keys")
	}
	if bytes.Equal(k1, DeriveKey("battery staple", salt)) {
		t.Error("different passphrases gave the same key")
	}
}

func TestSealOpen(t *testing.T) {
	plaintext := []byte("SQLite format 3\x00 and then some pages")

	sealed, err := Seal(plaintext, "hunter2")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed output contains the plaintext")
	}
	again, err := Seal(plaintext, "hunter2")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Equal(sealed, again) {
		t.Error("two seals of the same input are identical")
	}

	got, err := Open(sealed, "hunter2")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("open = %q, want %q", got, plaintext)
	}
}

func TestOpenErrors(t *testing.T) {
	sealed, err := Seal([]byte("data"), "hunter2")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	tampered := bytes.Clone(sealed)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name       string
		data       []byte
		passphrase string
		want       error
	}{
		{"wrong passphrase", sealed, "hunter3", ErrBadPassphrase},
		{"tampered", tampered, "hunter2", ErrBadPassphrase},
		{"plain sqlite file", []byte("SQLite format 3\x00"), "hunter2", ErrNotBackup},
		{"truncated", sealed[:len(magic)+4], "hunter2", ErrNotBackup},
		{"empty", nil, "hunter2", ErrNotBackup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(tt.data, tt.passphrase); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.db")
	enc := filepath.Join(dir, "source.db.enc")
	dec := filepath.Join(dir, "restored.db")

	original := []byte("test database content")
	if err := os.WriteFile(src, original, 0600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := EncryptFile(src, enc, "hunter2"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := DecryptFile(enc, dec, "hunter2"); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	got, err := os.ReadFile(dec)
	if err != nil {
		t.Fatalf("read decrypted: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("decrypted = %q, want %q", got, original)
	}

	if err := DecryptFile(enc, dec, "wrong"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("wrong passphrase err = %v", err)
	}
	if err := EncryptFile(filepath.Join(dir, "missing.db"), enc, "x"); err == nil {
		t.Error("encrypting a missing file succeeded")
	}
}
