// Package privacy holds the pseudonymization and field-encryption primitives used on the tracking path.
package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

var additionalData = []byte("additional-data")

var (
	// ErrInvalidKey reports key material that is not 64 hex characters.
	ErrInvalidKey = errors.New("privacy: encryption key must be 32 bytes encoded as 64 hex characters")
	// ErrDecrypt covers every malformed or tampered envelope.
	ErrDecrypt = errors.New("privacy: cannot open envelope")
)

// Hash returns the hex SHA-256 of value followed by salt, or "" for an empty value.
func Hash(value, salt string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value + salt))
	return hex.EncodeToString(sum[:])
}

// Cipher seals short strings with AES-256-GCM.
type Cipher struct {
	aead cipher.AEAD
	key  []byte
}

type envelope struct {
	IV      string `json:"iv"`
	AuthTag string `json:"authTag"`
	Data    string `json:"data"`
}

// NewCipher parses a 64-hex-character key.
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("privacy: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("privacy: %w", err)
	}
	return &Cipher{aead: aead, key: key}, nil
}

// GenerateKey returns a fresh random key in the form NewCipher accepts.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("privacy: generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Encrypt seals plaintext into a base64 token carrying nonce, tag and ciphertext.
// An empty plaintext yields an empty token.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("privacy: nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), additionalData)
	split := len(sealed) - tagSize

	raw, err := json.Marshal(envelope{
		IV:      hex.EncodeToString(nonce),
		AuthTag: hex.EncodeToString(sealed[split:]),
		Data:    hex.EncodeToString(sealed[:split]),
	})
	if err != nil {
		return "", fmt.Errorf("privacy: encode envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt opens a token produced by Encrypt. It never panics; any failure returns "", false.
// A nil Cipher opens nothing.
func (c *Cipher) Decrypt(token string) (string, bool) {
	if c == nil {
		return "", false
	}
	plain, err := c.open(token)
	if err != nil {
		return "", false
	}
	return plain, true
}

func (c *Cipher) open(token string) (string, error) {
	env, ok := parseEnvelope(token)
	if !ok {
		return "", ErrDecrypt
	}

	nonce, err := hex.DecodeString(env.IV)
	if err != nil || len(nonce) == 0 {
		return "", ErrDecrypt
	}
	tag, err := hex.DecodeString(env.AuthTag)
	if err != nil || len(tag) != tagSize {
		return "", ErrDecrypt
	}
	data, err := hex.DecodeString(env.Data)
	if err != nil {
		return "", ErrDecrypt
	}

	aead := c.aead
	if len(nonce) != nonceSize {
		block, err := aes.NewCipher(c.key)
		if err != nil {
			return "", ErrDecrypt
		}
		if aead, err = cipher.NewGCMWithNonceSize(block, len(nonce)); err != nil {
			return "", ErrDecrypt
		}
	}

	plain, err := aead.Open(nil, nonce, append(data, tag...), additionalData)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// IsEncrypted reports whether value decodes to an envelope with all three fields present.
func IsEncrypted(value string) bool {
	_, ok := parseEnvelope(value)
	return ok
}

func parseEnvelope(token string) (envelope, bool) {
	var env envelope
	if token == "" {
		return env, false
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return env, false
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, false
	}
	if env.IV == "" || env.AuthTag == "" || env.Data == "" {
		return env, false
	}
	return env, true
}
