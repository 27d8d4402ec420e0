package storage

import (
	"bytes"
	"errors"
	"testing"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"typical secret", "bgs_0123456789abcdef0123456789abcdef"},
		{"empty", ""},
		{"unicode", "sécrét-ütf8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := EncryptSecret(tt.secret, testKey)
			if err != nil {
				t.Fatalf("EncryptSecret() error: %v", err)
			}
			if bytes.Contains(encrypted, []byte(tt.secret)) && tt.secret != "" {
				t.Error("ciphertext contains plaintext")
			}

			decrypted, err := DecryptSecret(encrypted, testKey)
			if err != nil {
				t.Fatalf("DecryptSecret() error: %v", err)
			}
			if decrypted != tt.secret {
				t.Errorf("roundtrip = %q, want %q", decrypted, tt.secret)
			}
		})
	}
}

func TestEncryptSecretNondeterministic(t *testing.T) {
	a, err := EncryptSecret("same-secret", testKey)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptSecret("same-secret", testKey)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same secret are identical; nonce not randomized")
	}
}

func TestEncryptSecretInvalidKey(t *testing.T) {
	if _, err := EncryptSecret("secret", []byte("short")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key: got %v, want ErrInvalidKey", err)
	}
	if _, err := DecryptSecret([]byte("00"), []byte("short")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key on decrypt: got %v, want ErrInvalidKey", err)
	}
}

func TestDecryptSecretCorrupted(t *testing.T) {
	encrypted, err := EncryptSecret("secret", testKey)
	if err != nil {
		t.Fatal(err)
	}

	// Flip one hex character of the ciphertext tail.
	corrupted := bytes.Clone(encrypted)
	last := len(corrupted) - 1
	if corrupted[last] == 'a' {
		corrupted[last] = 'b'
	} else {
		corrupted[last] = 'a'
	}

	if _, err := DecryptSecret(corrupted, testKey); !errors.Is(err, ErrDecryption) {
		t.Errorf("corrupted ciphertext: got %v, want ErrDecryption", err)
	}
}

func TestDecryptSecretWrongKey(t *testing.T) {
	encrypted, err := EncryptSecret("secret", testKey)
	if err != nil {
		t.Fatal(err)
	}

	otherKey := []byte("fedcba9876543210fedcba9876543210")
	if _, err := DecryptSecret(encrypted, otherKey); !errors.Is(err, ErrDecryption) {
		t.Errorf("wrong key: got %v, want ErrDecryption", err)
	}
}

func TestDecryptSecretGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"not hex", []byte("zz-not-hex")},
		{"too short", []byte("00ff")},
		{"empty", []byte("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecryptSecret(tt.input, testKey); !errors.Is(err, ErrDecryption) {
				t.Errorf("got %v, want ErrDecryption", err)
			}
		})
	}
}

func TestHashVerifyToken(t *testing.T) {
	hash, err := HashToken("bgt_sometoken")
	if err != nil {
		t.Fatalf("HashToken() error: %v", err)
	}
	if hash == "bgt_sometoken" {
		t.Fatal("hash equals plaintext")
	}

	if err := VerifyToken("bgt_sometoken", hash); err != nil {
		t.Errorf("VerifyToken() rejected the matching token: %v", err)
	}
	if err := VerifyToken("bgt_othertoken", hash); err == nil {
		t.Error("VerifyToken() accepted a non-matching token")
	}
}
