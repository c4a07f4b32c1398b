// Package provenance defines the attribution data model: every span of text
// in a published document is attributed to a human author, an AI assistant,
// or a cited external source. The ledger stores digests of attributed text,
// never the text itself.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Kind classifies the origin of an attributed span.
type Kind string

const (
	KindHuman Kind = "human"
	KindAI    Kind = "ai"
	KindCited Kind = "cited"
)

// Kinds lists all valid kinds in display order.
var Kinds = []Kind{KindHuman, KindAI, KindCited}

// ErrInvalidKind is returned when an event carries an unknown kind.
// The kind set is closed; unknown values are rejected at ingestion,
// never coerced.
var ErrInvalidKind = errors.New("provenance: invalid event kind")

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindHuman, KindAI, KindCited:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// DigestSize is the length of a hex-encoded SHA-256 digest.
const DigestSize = sha256.Size * 2

// Event is one attributed span. Immutable once appended to a ledger.
type Event struct {
	// Timestamp is an ISO-8601 string supplied by the caller and stored
	// verbatim. The ledger never re-derives it.
	Timestamp string `json:"timestamp"`
	Kind      Kind   `json:"event_type"`
	// ContentDigest is the SHA-256 hex digest of the attributed text.
	// Raw text never enters the ledger.
	ContentDigest string `json:"text_hash"`
	Source        string `json:"source"`
	SpanLength    int64  `json:"span_length"`
}

// DigestText returns the SHA-256 hex digest of text. This is the only
// sanctioned way to derive an Event's ContentDigest.
func DigestText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Validate checks the event against the ingestion contract.
func (e Event) Validate() error {
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	if e.Timestamp == "" {
		return errors.New("provenance: missing timestamp")
	}
	if len(e.ContentDigest) != DigestSize {
		return fmt.Errorf("provenance: content digest must be %d hex chars, got %d", DigestSize, len(e.ContentDigest))
	}
	if _, err := hex.DecodeString(e.ContentDigest); err != nil {
		return fmt.Errorf("provenance: content digest is not hex: %w", err)
	}
	if e.SpanLength < 0 {
		return fmt.Errorf("provenance: span length must be non-negative, got %d", e.SpanLength)
	}
	return nil
}
