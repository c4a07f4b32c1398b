// Package verifier checks embedded provenance envelopes offline.
//
// It is intentionally minimal: no server, no network, no shared state.
// Trust extends only to the cryptographic primitives (Ed25519, SHA-256,
// RFC 8785 canonicalization) and the envelope format, never to the
// application that produced the document.
package verifier

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/creatorrr/sonnun/pkg/canonical"
	"github.com/creatorrr/sonnun/pkg/crypto"
	"github.com/creatorrr/sonnun/pkg/envelope"
)

var (
	// ErrNotFound means the document carries no envelope marker.
	ErrNotFound = errors.New("verifier: no provenance envelope found in document")
	// ErrMalformed means the marker is present but its content is not
	// well-formed JSON.
	ErrMalformed = errors.New("verifier: envelope content is not well-formed")
	// ErrInvalidStructure means a required field is missing or mistyped.
	// The wrap names the first offending field. Raised before any
	// cryptographic work.
	ErrInvalidStructure = errors.New("verifier: invalid envelope structure")
	// ErrKeyMismatch means the caller-supplied expected key disagrees with
	// the embedded one. Distinct from a failed signature: the document may
	// be validly signed by someone else.
	ErrKeyMismatch = errors.New("verifier: embedded public key does not match expected key")
	// ErrInvalidEncoding means the signature or public key is not valid
	// base64.
	ErrInvalidEncoding = errors.New("verifier: invalid base64 encoding")
)

// Result is returned for every verified document. Manifest and PublicKey
// are populated regardless of validity so callers can display claimed
// provenance; a Result with Valid == false must never be trusted.
type Result struct {
	Valid     bool            `json:"valid"`
	PublicKey string          `json:"public_key"`
	Manifest  json.RawMessage `json:"manifest"`
}

// VerifyFunc is the signature-check primitive. Injectable so tests can
// prove that structural rejection happens before any cryptographic call.
type VerifyFunc func(message, signature, public []byte) (bool, error)

// Verifier runs the extract / validate / decode / verify pipeline.
type Verifier struct {
	verify VerifyFunc
}

// New returns a Verifier backed by the Ed25519 primitive.
func New() *Verifier {
	return &Verifier{verify: crypto.Verify}
}

// NewWithVerifyFunc returns a Verifier with a custom signature check.
func NewWithVerifyFunc(fn VerifyFunc) *Verifier {
	return &Verifier{verify: fn}
}

// VerifyDocument locates and checks the envelope embedded in document.
// expectedKey, when non-empty, must equal the embedded base64 public key.
func (v *Verifier) VerifyDocument(document, expectedKey string) (Result, error) {
	raw, err := Extract(document)
	if err != nil {
		return Result{}, err
	}

	env, err := validateStructure(raw)
	if err != nil {
		return Result{}, err
	}

	result := Result{PublicKey: env.PublicKey, Manifest: env.Manifest}

	if expectedKey != "" && expectedKey != env.PublicKey {
		return result, ErrKeyMismatch
	}

	pub, err := base64.StdEncoding.DecodeString(env.PublicKey)
	if err != nil {
		return result, fmt.Errorf("%w: public_key: %v", ErrInvalidEncoding, err)
	}
	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return result, fmt.Errorf("%w: signature: %v", ErrInvalidEncoding, err)
	}
	if len(pub) != crypto.PublicKeySize {
		return result, fmt.Errorf("%w: want %d public key bytes, got %d", crypto.ErrInvalidKeyLength, crypto.PublicKeySize, len(pub))
	}
	if len(sig) != crypto.SignatureSize {
		return result, fmt.Errorf("%w: want %d signature bytes, got %d", crypto.ErrInvalidSignatureLength, crypto.SignatureSize, len(sig))
	}

	// Recompute the canonical encoding from the extracted manifest bytes,
	// running the identical algorithm the signer ran.
	encoded, err := canonical.EncodeRaw(env.Manifest)
	if err != nil {
		return result, fmt.Errorf("%w: manifest: %v", ErrMalformed, err)
	}

	valid, err := v.verify(encoded, sig, pub)
	if err != nil {
		return result, err
	}
	result.Valid = valid
	return result, nil
}

// VerifyDocument runs the default pipeline.
func VerifyDocument(document, expectedKey string) (Result, error) {
	return New().VerifyDocument(document, expectedKey)
}

// scriptTag matches any script element; attribute checks happen separately
// so attribute order and whitespace never matter.
var scriptTag = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script>`)

var markerAttr = regexp.MustCompile(`(?i)\bid\s*=\s*["']` + regexp.QuoteMeta(envelope.MarkerID) + `["']`)

// Extract locates the embedded envelope block and returns its raw JSON.
func Extract(document string) (json.RawMessage, error) {
	for _, match := range scriptTag.FindAllStringSubmatch(document, -1) {
		if !markerAttr.MatchString(match[1]) {
			continue
		}
		body := strings.TrimSpace(match[2])
		if !json.Valid([]byte(body)) {
			return nil, fmt.Errorf("%w: marker found but content is not valid JSON", ErrMalformed)
		}
		return json.RawMessage(body), nil
	}
	return nil, ErrNotFound
}

// parsedEnvelope carries the fields needed downstream once structure has
// been validated. Manifest stays raw: the canonical encoding is recomputed
// from the embedded bytes, never from a re-marshalled struct.
type parsedEnvelope struct {
	Manifest  json.RawMessage
	Signature string
	PublicKey string
}

// validateStructure confirms required fields with explicit checks before
// any decoding or cryptography. Cheap rejection first.
func validateStructure(raw json.RawMessage) (parsedEnvelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return parsedEnvelope{}, fmt.Errorf("%w: envelope is not a JSON object", ErrMalformed)
	}

	for _, field := range []string{"manifest", "signature", "public_key"} {
		if _, ok := top[field]; !ok {
			return parsedEnvelope{}, fmt.Errorf("%w: missing field %q", ErrInvalidStructure, field)
		}
	}

	var env parsedEnvelope
	env.Manifest = top["manifest"]
	if err := json.Unmarshal(top["signature"], &env.Signature); err != nil {
		return parsedEnvelope{}, fmt.Errorf("%w: field %q must be a string", ErrInvalidStructure, "signature")
	}
	if err := json.Unmarshal(top["public_key"], &env.PublicKey); err != nil {
		return parsedEnvelope{}, fmt.Errorf("%w: field %q must be a string", ErrInvalidStructure, "public_key")
	}

	var inner map[string]json.RawMessage
	if err := json.Unmarshal(env.Manifest, &inner); err != nil {
		return parsedEnvelope{}, fmt.Errorf("%w: field %q must be an object", ErrInvalidStructure, "manifest")
	}
	for _, field := range []string{"human_percentage", "ai_percentage", "cited_percentage", "total_characters"} {
		val, ok := inner[field]
		if !ok {
			return parsedEnvelope{}, fmt.Errorf("%w: missing field %q", ErrInvalidStructure, "manifest."+field)
		}
		var num json.Number
		if err := json.Unmarshal(val, &num); err != nil {
			return parsedEnvelope{}, fmt.Errorf("%w: field %q must be a number", ErrInvalidStructure, "manifest."+field)
		}
	}
	if val, ok := inner["events"]; ok {
		var events []json.RawMessage
		if err := json.Unmarshal(val, &events); err != nil {
			return parsedEnvelope{}, fmt.Errorf("%w: field %q must be an array", ErrInvalidStructure, "manifest.events")
		}
	}

	return env, nil
}
