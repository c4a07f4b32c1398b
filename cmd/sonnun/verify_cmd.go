package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/creatorrr/sonnun/pkg/crypto"
	"github.com/creatorrr/sonnun/pkg/verifier"
)

// runVerifyCmd implements `sonnun verify <file> [-key <base64>]`.
//
// Exit codes:
//
//	0 = signature valid
//	1 = signature invalid, or any verification-stage failure
//	2 = usage error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var expectedKey string
	var jsonOutput bool
	cmd.StringVar(&expectedKey, "key", "", "Expected public key (base64); mismatch is an error")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: sonnun verify <file> [-key <base64>]")
		return 2
	}

	content, err := os.ReadFile(cmd.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot read document: %v\n", err)
		return 1
	}

	result, err := verifier.VerifyDocument(string(content), expectedKey)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error (%s): %v\n", failingStage(err), err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		if !result.Valid {
			return 1
		}
		return 0
	}

	if result.Valid {
		_, _ = fmt.Fprintln(stdout, "VALID signature")
		_, _ = fmt.Fprintf(stdout, "Public key: %s\n", result.PublicKey)
		pretty, _ := json.MarshalIndent(result.Manifest, "", "  ")
		_, _ = fmt.Fprintf(stdout, "Manifest: %s\n", pretty)
		return 0
	}

	_, _ = fmt.Fprintln(stdout, "INVALID signature")
	_, _ = fmt.Fprintf(stdout, "Claimed public key: %s\n", result.PublicKey)
	return 1
}

// failingStage names the verification stage an error belongs to, so
// operators can tell "not our document" from "tampered document" from
// "wrong expected key".
func failingStage(err error) string {
	switch {
	case errors.Is(err, verifier.ErrNotFound), errors.Is(err, verifier.ErrMalformed):
		return "extraction"
	case errors.Is(err, verifier.ErrInvalidStructure):
		return "structural validation"
	case errors.Is(err, verifier.ErrKeyMismatch):
		return "key match"
	case errors.Is(err, verifier.ErrInvalidEncoding),
		errors.Is(err, crypto.ErrInvalidKeyLength),
		errors.Is(err, crypto.ErrInvalidSignatureLength):
		return "decoding"
	default:
		return "signature check"
	}
}
