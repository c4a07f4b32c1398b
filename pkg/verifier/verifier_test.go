package verifier_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorrr/sonnun/pkg/crypto"
	"github.com/creatorrr/sonnun/pkg/envelope"
	"github.com/creatorrr/sonnun/pkg/manifest"
	"github.com/creatorrr/sonnun/pkg/provenance"
	"github.com/creatorrr/sonnun/pkg/store/ledger"
	"github.com/creatorrr/sonnun/pkg/verifier"
)

// signedDocument builds a document through the full producer path:
// ledger -> builder -> canonical encoder -> sign -> embed.
func signedDocument(t *testing.T) (string, *crypto.Signer, manifest.Data) {
	t.Helper()

	led := ledger.NewMemoryLedger()
	ctx := context.Background()
	for i, spec := range []struct {
		kind provenance.Kind
		span int64
	}{
		{provenance.KindHuman, 60},
		{provenance.KindAI, 30},
		{provenance.KindCited, 10},
	} {
		_, err := led.Append(ctx, provenance.Event{
			Timestamp:     fmt.Sprintf("2024-05-01T10:0%d:00Z", i),
			Kind:          spec.kind,
			ContentDigest: provenance.DigestText(fmt.Sprintf("text-%d", i)),
			Source:        "test",
			SpanLength:    spec.span,
		})
		require.NoError(t, err)
	}

	data, err := manifest.Build(ctx, led, 0)
	require.NoError(t, err)

	signer, err := crypto.NewSigner()
	require.NoError(t, err)

	env, err := envelope.Seal(data, signer)
	require.NoError(t, err)

	doc, err := envelope.Inject("<html><body><h1>Post</h1></body></html>", env)
	require.NoError(t, err)
	return doc, signer, data
}

func TestVerifyDocument_RoundTrip(t *testing.T) {
	doc, signer, data := signedDocument(t)

	result, err := verifier.VerifyDocument(doc, "")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, signer.PublicKeyBase64(), result.PublicKey)

	var decoded manifest.Data
	require.NoError(t, json.Unmarshal(result.Manifest, &decoded))
	assert.Equal(t, data.HumanPercentage, decoded.HumanPercentage)
	assert.Equal(t, data.TotalCharacters, decoded.TotalCharacters)
	assert.Len(t, decoded.Events, len(data.Events))
}

func TestVerifyDocument_ExpectedKeyMatch(t *testing.T) {
	doc, signer, _ := signedDocument(t)

	result, err := verifier.VerifyDocument(doc, signer.PublicKeyBase64())
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestVerifyDocument_KeyMismatch(t *testing.T) {
	doc, _, _ := signedDocument(t)

	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	result, err := verifier.VerifyDocument(doc, other.PublicBase64())
	require.ErrorIs(t, err, verifier.ErrKeyMismatch)
	// The claimed key still comes back for display.
	assert.NotEmpty(t, result.PublicKey)
}

func TestVerifyDocument_TamperedTotal(t *testing.T) {
	doc, _, data := signedDocument(t)

	// Mutate total_characters inside the embedded envelope.
	needle := fmt.Sprintf(`"total_characters": %d`, data.TotalCharacters)
	require.Contains(t, doc, needle)
	tampered := strings.Replace(doc, needle, fmt.Sprintf(`"total_characters": %d`, data.TotalCharacters+1), 1)

	result, err := verifier.VerifyDocument(tampered, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestVerifyDocument_AttributeOrderAndWhitespaceTolerant(t *testing.T) {
	doc, _, _ := signedDocument(t)

	// Reorder the script tag attributes and add whitespace; extraction is
	// structural, not an exact string match.
	reordered := strings.Replace(doc,
		`<script type="application/json" id="sonnun-manifest">`,
		"<script   id='sonnun-manifest'\n  type=\"application/json\" >",
		1)
	require.NotEqual(t, doc, reordered)

	result, err := verifier.VerifyDocument(reordered, "")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestVerifyDocument_NotFound(t *testing.T) {
	_, err := verifier.VerifyDocument("<html><body>no envelope here</body></html>", "")
	assert.ErrorIs(t, err, verifier.ErrNotFound)
}

func TestVerifyDocument_MalformedContent(t *testing.T) {
	doc := `<html><body><script type="application/json" id="sonnun-manifest">{not json</script></body></html>`
	_, err := verifier.VerifyDocument(doc, "")
	assert.ErrorIs(t, err, verifier.ErrMalformed)
}

func envelopeDoc(t *testing.T, env map[string]any) string {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return fmt.Sprintf(`<html><body><script type="application/json" id="sonnun-manifest">%s</script></body></html>`, body)
}

func validInnerManifest() map[string]any {
	return map[string]any{
		"human_percentage": 100.0,
		"ai_percentage":    0.0,
		"cited_percentage": 0.0,
		"total_characters": 10,
		"events":           []any{},
	}
}

func TestVerifyDocument_StructuralRejectionBeforeCrypto(t *testing.T) {
	cryptoCalls := 0
	counting := verifier.NewWithVerifyFunc(func(message, sig, pub []byte) (bool, error) {
		cryptoCalls++
		return crypto.Verify(message, sig, pub)
	})

	tests := []struct {
		name    string
		env     map[string]any
		wantErr string
	}{
		{
			name: "missing signature",
			env: map[string]any{
				"manifest":   validInnerManifest(),
				"public_key": "AAAA",
			},
			wantErr: `"signature"`,
		},
		{
			name: "missing public_key",
			env: map[string]any{
				"manifest":  validInnerManifest(),
				"signature": "AAAA",
			},
			wantErr: `"public_key"`,
		},
		{
			name: "missing manifest",
			env: map[string]any{
				"signature":  "AAAA",
				"public_key": "AAAA",
			},
			wantErr: `"manifest"`,
		},
		{
			name: "missing total_characters",
			env: map[string]any{
				"manifest": map[string]any{
					"human_percentage": 100.0,
					"ai_percentage":    0.0,
					"cited_percentage": 0.0,
				},
				"signature":  "AAAA",
				"public_key": "AAAA",
			},
			wantErr: `"manifest.total_characters"`,
		},
		{
			name: "percentage wrong type",
			env: map[string]any{
				"manifest": map[string]any{
					"human_percentage": "all of it",
					"ai_percentage":    0.0,
					"cited_percentage": 0.0,
					"total_characters": 10,
				},
				"signature":  "AAAA",
				"public_key": "AAAA",
			},
			wantErr: `"manifest.human_percentage"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := counting.VerifyDocument(envelopeDoc(t, tc.env), "")
			require.ErrorIs(t, err, verifier.ErrInvalidStructure)
			assert.Contains(t, err.Error(), tc.wantErr, "error must name the first offending field")
		})
	}

	assert.Zero(t, cryptoCalls, "no cryptographic call may precede structural validation")
}

func TestVerifyDocument_InvalidEncoding(t *testing.T) {
	env := map[string]any{
		"manifest":   validInnerManifest(),
		"signature":  "!!!not-base64!!!",
		"public_key": "also not base64 %%",
	}
	_, err := verifier.VerifyDocument(envelopeDoc(t, env), "")
	assert.ErrorIs(t, err, verifier.ErrInvalidEncoding)
}

func TestVerifyDocument_InvalidLengths(t *testing.T) {
	shortKey := base64.StdEncoding.EncodeToString([]byte("short"))
	goodSig := base64.StdEncoding.EncodeToString(make([]byte, crypto.SignatureSize))

	env := map[string]any{
		"manifest":   validInnerManifest(),
		"signature":  goodSig,
		"public_key": shortKey,
	}
	_, err := verifier.VerifyDocument(envelopeDoc(t, env), "")
	assert.ErrorIs(t, err, crypto.ErrInvalidKeyLength)

	goodKey := base64.StdEncoding.EncodeToString(make([]byte, crypto.PublicKeySize))
	shortSig := base64.StdEncoding.EncodeToString([]byte("sig"))
	env["public_key"] = goodKey
	env["signature"] = shortSig
	_, err = verifier.VerifyDocument(envelopeDoc(t, env), "")
	assert.ErrorIs(t, err, crypto.ErrInvalidSignatureLength)
}

func TestVerifyDocument_WellFormedWrongSignatureIsFalseNotError(t *testing.T) {
	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	env := map[string]any{
		"manifest":   validInnerManifest(),
		"signature":  base64.StdEncoding.EncodeToString(make([]byte, crypto.SignatureSize)),
		"public_key": keys.PublicBase64(),
	}
	result, err := verifier.VerifyDocument(envelopeDoc(t, env), "")
	require.NoError(t, err, "a well-formed non-matching signature is a false result, not an error")
	assert.False(t, result.Valid)
	assert.Equal(t, keys.PublicBase64(), result.PublicKey)
}
