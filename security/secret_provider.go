package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Ashishkumar667/ms-tools/core"
)

const envelopePrefix = "mstools.secret.v1:"

// LocalKeySecretProvider seals credential payloads with AES-256-GCM using a
// key derived from locally supplied key material. It protects the durable
// credential file at rest; it is not a key management system and the key
// never rotates in place.
type LocalKeySecretProvider struct {
	key   []byte
	keyID string
}

type sealedEnvelope struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
	Payload   string `json:"payload"`
}

type Option func(*LocalKeySecretProvider)

// WithKeyID labels envelopes so a mismatched key fails fast instead of
// producing a GCM open error.
func WithKeyID(id string) Option {
	return func(p *LocalKeySecretProvider) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			p.keyID = trimmed
		}
	}
}

// NewLocalKeySecretProvider derives a 256-bit key from the given material.
// Material of exactly 32 bytes is used as-is; anything else is hashed.
func NewLocalKeySecretProvider(keyMaterial []byte, opts ...Option) (*LocalKeySecretProvider, error) {
	material := bytes.TrimSpace(keyMaterial)
	if len(material) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	provider := &LocalKeySecretProvider{
		key:   deriveKey(material),
		keyID: "local",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	return provider, nil
}

func NewLocalKeySecretProviderFromString(key string, opts ...Option) (*LocalKeySecretProvider, error) {
	return NewLocalKeySecretProvider([]byte(key), opts...)
}

func (p *LocalKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	sealer, err := p.newGCM()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, sealer.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	// Payload carries nonce || ciphertext in one field.
	sealed := sealer.Seal(nonce, nonce, plaintext, nil)
	encoded, err := json.Marshal(sealedEnvelope{
		KeyID:     p.keyID,
		Algorithm: "aes-256-gcm",
		Payload:   base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(envelopePrefix), encoded...), nil
}

func (p *LocalKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	payload := strings.TrimPrefix(string(ciphertext), envelopePrefix)
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("security: ciphertext is required")
	}

	var parsed sealedEnvelope
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("security: decode envelope: %w", err)
	}
	if parsed.KeyID != "" && parsed.KeyID != p.keyID {
		return nil, fmt.Errorf("security: key id mismatch: got %q want %q", parsed.KeyID, p.keyID)
	}

	sealed, err := base64.StdEncoding.DecodeString(parsed.Payload)
	if err != nil {
		return nil, fmt.Errorf("security: decode payload: %w", err)
	}
	opener, err := p.newGCM()
	if err != nil {
		return nil, err
	}
	if len(sealed) < opener.NonceSize() {
		return nil, fmt.Errorf("security: payload shorter than nonce")
	}
	nonce, body := sealed[:opener.NonceSize()], sealed[opener.NonceSize():]
	plaintext, err := opener.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (p *LocalKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *LocalKeySecretProvider) newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	sealer, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return sealer, nil
}

func deriveKey(material []byte) []byte {
	if len(material) == 32 {
		key := make([]byte, 32)
		copy(key, material)
		return key
	}
	sum := sha256.Sum256(material)
	return sum[:]
}

var _ core.SecretProvider = (*LocalKeySecretProvider)(nil)
