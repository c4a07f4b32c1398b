// Package crypto wraps the Ed25519 signing primitive used to make
// provenance manifests tamper-evident. Signing is deterministic; a
// cryptographically invalid signature is a normal false result, never
// an error.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SeedSize is the private seed length. Ed25519 derives the full private
// key from the seed, so the seed is the only secret.
const SeedSize = ed25519.SeedSize

// PublicKeySize is the verifying key length.
const PublicKeySize = ed25519.PublicKeySize

// SignatureSize is the detached signature length.
const SignatureSize = ed25519.SignatureSize

var (
	// ErrEmptyMessage rejects signing or verifying an empty message.
	ErrEmptyMessage = errors.New("crypto: message cannot be empty")
	// ErrInvalidKeyLength reports a seed or public key of the wrong size.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length")
	// ErrInvalidSignatureLength reports a signature of the wrong size.
	ErrInvalidSignatureLength = errors.New("crypto: invalid signature length")
)

// KeyPair holds a freshly generated signing identity. The Seed is owned by
// whoever requested generation; nothing in this package persists or logs it.
type KeyPair struct {
	Seed   []byte
	Public []byte
}

// SeedBase64 returns the std-base64 form of the private seed.
func (k KeyPair) SeedBase64() string { return base64.StdEncoding.EncodeToString(k.Seed) }

// PublicBase64 returns the std-base64 form of the verifying key.
func (k KeyPair) PublicBase64() string { return base64.StdEncoding.EncodeToString(k.Public) }

// GenerateKeyPair creates a new Ed25519 keypair from the system CSPRNG.
// RNG exhaustion is fatal and not retried.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("crypto: key generation failed: %w", err)
	}
	return KeyPair{Seed: priv.Seed(), Public: pub}, nil
}

// Sign signs message with the given 32-byte seed. Ed25519 is deterministic,
// so equal inputs always yield equal signatures.
func Sign(message, seed []byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, ErrEmptyMessage
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: want %d seed bytes, got %d", ErrInvalidKeyLength, SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return ed25519.Sign(priv, message), nil
}

// Verify checks signature over message with the given public key.
// A well-formed signature that does not match returns (false, nil);
// only malformed inputs produce errors.
func Verify(message, signature, public []byte) (bool, error) {
	if len(message) == 0 {
		return false, ErrEmptyMessage
	}
	if len(public) != PublicKeySize {
		return false, fmt.Errorf("%w: want %d public key bytes, got %d", ErrInvalidKeyLength, PublicKeySize, len(public))
	}
	if len(signature) != SignatureSize {
		return false, fmt.Errorf("%w: want %d signature bytes, got %d", ErrInvalidSignatureLength, SignatureSize, len(signature))
	}
	return ed25519.Verify(ed25519.PublicKey(public), message, signature), nil
}

// Signer binds a keypair to a stable key identity for callers that sign
// repeatedly with the same key.
type Signer struct {
	keys  KeyPair
	KeyID string
}

// NewSigner creates a Signer with a fresh keypair and a generated key ID.
func NewSigner() (*Signer, error) {
	keys, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &Signer{keys: keys, KeyID: "key-" + uuid.New().String()}, nil
}

// NewSignerFromSeed creates a Signer from an existing seed.
func NewSignerFromSeed(seed []byte, keyID string) (*Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: want %d seed bytes, got %d", ErrInvalidKeyLength, SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	if keyID == "" {
		keyID = "key-" + uuid.New().String()
	}
	return &Signer{keys: KeyPair{Seed: seed, Public: pub}, KeyID: keyID}, nil
}

// Sign signs message with the bound seed.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	return Sign(message, s.keys.Seed)
}

// Verify checks a signature against the bound public key.
func (s *Signer) Verify(message, signature []byte) (bool, error) {
	return Verify(message, signature, s.keys.Public)
}

// PublicKey returns the verifying key bytes.
func (s *Signer) PublicKey() []byte { return s.keys.Public }

// SeedBase64 exports the private seed for key-file persistence. Callers
// own the secret from here; it must never be logged.
func (s *Signer) SeedBase64() string { return s.keys.SeedBase64() }

// PublicKeyBase64 returns the std-base64 verifying key.
func (s *Signer) PublicKeyBase64() string { return s.keys.PublicBase64() }
