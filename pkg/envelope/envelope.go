// Package envelope bundles a manifest with its signature and public key
// and embeds that bundle in a published document.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/creatorrr/sonnun/pkg/canonical"
	"github.com/creatorrr/sonnun/pkg/crypto"
	"github.com/creatorrr/sonnun/pkg/manifest"
)

// MarkerID is the element id that tags an embedded envelope. The verifier
// locates it by structural scan, not exact string match.
const MarkerID = "sonnun-manifest"

// Envelope is the embedded unit: manifest, detached signature, and the
// public key that signed it, both std-base64. Immutable once constructed.
type Envelope struct {
	Manifest  manifest.Data `json:"manifest"`
	Signature string        `json:"signature"`
	PublicKey string        `json:"public_key"`
}

// Seal canonically encodes the manifest and signs it.
func Seal(data manifest.Data, signer *crypto.Signer) (Envelope, error) {
	encoded, err := canonical.EncodeManifest(data)
	if err != nil {
		return Envelope{}, err
	}
	sig, err := signer.Sign(encoded)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: sign failed: %w", err)
	}
	return Envelope{
		Manifest:  data,
		Signature: base64.StdEncoding.EncodeToString(sig),
		PublicKey: signer.PublicKeyBase64(),
	}, nil
}

// Render returns the script block that carries the envelope in a document.
func (e Envelope) Render() (string, error) {
	body, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("envelope: marshal failed: %w", err)
	}
	return fmt.Sprintf("<script type=\"application/json\" id=%q>\n%s\n</script>", MarkerID, body), nil
}

// Inject embeds the envelope into an HTML document, before </body> when
// present, appended otherwise.
func Inject(document string, e Envelope) (string, error) {
	block, err := e.Render()
	if err != nil {
		return "", err
	}
	if idx := strings.LastIndex(document, "</body>"); idx >= 0 {
		return document[:idx] + block + "\n" + document[idx:], nil
	}
	return document + "\n" + block + "\n", nil
}
