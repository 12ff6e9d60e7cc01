package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Key sizes.
const (
	PublicKeySize = 32
	SecretKeySize = 64
	SignatureSize = 64
)

// ErrInvalidSecretKey is returned when a secret key cannot back a wallet.
var ErrInvalidSecretKey = errors.New("invalid secret key")

// Keypair is an ed25519 wallet key in Solana's 64-byte layout
// (32-byte seed followed by the 32-byte public key).
type Keypair struct {
	private ed25519.PrivateKey
	public  []byte
}

// NewKeypair validates a 64-byte secret key: the public half must be a
// curve point and must match the key derived from the seed half.
func NewKeypair(secret []byte) (*Keypair, error) {
	if len(secret) != SecretKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSecretKey, SecretKeySize, len(secret))
	}
	if !IsOnCurve(secret[32:]) {
		return nil, fmt.Errorf("%w: public key is not a valid curve point", ErrInvalidSecretKey)
	}
	derived := ed25519.NewKeyFromSeed(secret[:32])
	if !bytes.Equal(derived[32:], secret[32:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidSecretKey)
	}
	return &Keypair{
		private: derived,
		public:  bytes.Clone(derived[32:]),
	}, nil
}

// GenerateKeypair creates a fresh random keypair.
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewKeypair(priv)
}

// ParseSecretKey accepts a JSON byte array ("[12,34,...]", the Solana CLI
// keyfile format) or a base58 string.
func ParseSecretKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSecretKey)
	}
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
		}
		out := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidSecretKey, i, v)
			}
			out[i] = byte(v)
		}
		return out, nil
	}
	out, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	return out, nil
}

// PublicKey returns the base58 wallet address.
func (k *Keypair) PublicKey() string {
	return base58.Encode(k.public)
}

// PublicKeyBytes returns a copy of the raw public key.
func (k *Keypair) PublicKeyBytes() []byte {
	return bytes.Clone(k.public)
}

// SecretKey returns a copy of the 64-byte secret key.
func (k *Keypair) SecretKey() []byte {
	return bytes.Clone(k.private)
}

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// IsOnCurve reports whether b encodes a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// DecodePublicKey decodes a base58 address into its 32 raw bytes.
func DecodePublicKey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key %q: %w", s, err)
	}
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("decode public key %q: expected %d bytes, got %d", s, PublicKeySize, len(b))
	}
	return b, nil
}
