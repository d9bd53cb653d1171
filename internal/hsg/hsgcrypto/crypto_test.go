package hsgcrypto

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc, err := NewService([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	plaintext := []byte("the memory content goes here")
	encoded, err := svc.Encrypt("tenant-a", plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := svc.Decrypt("tenant-a", encoded)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestDecryptFailsForWrongTenant(t *testing.T) {
	svc, _ := NewService([]byte("0123456789abcdef0123456789abcdef"))
	encoded, _ := svc.Encrypt("tenant-a", []byte("secret"))
	if _, err := svc.Decrypt("tenant-b", encoded); err == nil {
		t.Fatalf("expected decrypt failure across tenants")
	}
}

func TestNewServiceRejectsEmptyKey(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected error for empty master key")
	}
}

func TestEncryptNondeterministic(t *testing.T) {
	svc, _ := NewService([]byte("0123456789abcdef0123456789abcdef"))
	a, _ := svc.Encrypt("tenant-a", []byte("same plaintext"))
	b, _ := svc.Encrypt("tenant-a", []byte("same plaintext"))
	if a == b {
		t.Fatalf("expected distinct ciphertexts due to random nonce")
	}
}
