package security

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	provider, err := NewLocalKeySecretProviderFromString("unit-test-key")
	if err != nil {
		t.Fatalf("provider build failed: %v", err)
	}
	ctx := context.Background()

	plaintext := []byte(`{"user-1":{"access_token":"abc"}}`)
	sealed, err := provider.Encrypt(ctx, plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if !strings.HasPrefix(string(sealed), envelopePrefix) {
		t.Fatalf("expected envelope prefix, got %q", sealed[:32])
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatalf("ciphertext leaks plaintext")
	}

	opened, err := provider.Decrypt(ctx, sealed)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: %q", opened)
	}
}

func TestEncryptProducesFreshNonces(t *testing.T) {
	provider, err := NewLocalKeySecretProviderFromString("unit-test-key")
	if err != nil {
		t.Fatalf("provider build failed: %v", err)
	}
	ctx := context.Background()
	first, err := provider.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	second, err := provider.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("identical envelopes for the same plaintext")
	}
}

func TestDecryptRejectsKeyMismatch(t *testing.T) {
	ctx := context.Background()
	writer, err := NewLocalKeySecretProviderFromString("key-a", WithKeyID("ring-a"))
	if err != nil {
		t.Fatalf("provider build failed: %v", err)
	}
	sealed, err := writer.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	wrongID, err := NewLocalKeySecretProviderFromString("key-a", WithKeyID("ring-b"))
	if err != nil {
		t.Fatalf("provider build failed: %v", err)
	}
	if _, err := wrongID.Decrypt(ctx, sealed); err == nil || !strings.Contains(err.Error(), "key id mismatch") {
		t.Fatalf("expected key id mismatch, got %v", err)
	}

	wrongKey, err := NewLocalKeySecretProviderFromString("key-b", WithKeyID("ring-a"))
	if err != nil {
		t.Fatalf("provider build failed: %v", err)
	}
	if _, err := wrongKey.Decrypt(ctx, sealed); err == nil {
		t.Fatalf("expected decryption failure with the wrong key")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	provider, err := NewLocalKeySecretProviderFromString("unit-test-key")
	if err != nil {
		t.Fatalf("provider build failed: %v", err)
	}
	cases := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not an envelope", data: []byte("plain text")},
		{name: "truncated payload", data: []byte(envelopePrefix + `{"kid":"local","alg":"aes-256-gcm","payload":"QQ=="}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := provider.Decrypt(context.Background(), tc.data); err == nil {
				t.Fatalf("expected decrypt failure")
			}
		})
	}
}

func TestKeyMaterialRequired(t *testing.T) {
	if _, err := NewLocalKeySecretProvider(nil); err == nil {
		t.Fatalf("expected constructor error")
	}
	if _, err := NewLocalKeySecretProviderFromString("   "); err == nil {
		t.Fatalf("expected constructor error for blank material")
	}
}

func TestThirtyTwoByteKeyUsedVerbatim(t *testing.T) {
	material := bytes.Repeat([]byte("k"), 32)
	provider, err := NewLocalKeySecretProvider(material)
	if err != nil {
		t.Fatalf("provider build failed: %v", err)
	}
	if !bytes.Equal(provider.key, material) {
		t.Fatalf("exact-size key material must not be re-derived")
	}
}
