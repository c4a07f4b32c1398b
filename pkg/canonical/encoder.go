// Package canonical produces the single deterministic byte encoding of a
// manifest. The signature is computed over these bytes, so the signer and
// the verifier must run the identical algorithm: RFC 8785 (JSON
// Canonicalization Scheme), with lexicographic key order, ES6 number
// formatting, no HTML escaping, and no insignificant whitespace.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/creatorrr/sonnun/pkg/manifest"
)

// EncodeManifest canonically encodes a manifest value. Total over
// well-formed manifests: no I/O, no external calls.
func EncodeManifest(data manifest.Data) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("canonical: marshal failed: %w", err)
	}
	return EncodeRaw(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
}

// EncodeRaw canonicalizes an already-serialized JSON value. This is the
// verifier-side path: the extracted inner manifest is re-encoded from its
// embedded bytes, insensitive to key order and whitespace, and must come
// out byte-identical to the producer's EncodeManifest output for an equal
// value.
func EncodeRaw(raw []byte) ([]byte, error) {
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform failed: %w", err)
	}
	return out, nil
}
