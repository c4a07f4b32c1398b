package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/creatorrr/sonnun/pkg/crypto"
)

// keyFile is the on-disk keypair format. The private seed lives only in
// this file; nothing else persists or logs it.
type keyFile struct {
	KeyID      string `yaml:"key_id"`
	PrivateKey string `yaml:"private_key"`
	PublicKey  string `yaml:"public_key"`
}

// runKeygenCmd implements `sonnun keygen`.
func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var out string
	cmd.StringVar(&out, "out", "sonnun-key.yaml", "Path for the generated key file")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	signer, err := crypto.NewSigner()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	kf := keyFile{
		KeyID:      signer.KeyID,
		PrivateKey: signer.SeedBase64(),
		PublicKey:  signer.PublicKeyBase64(),
	}
	data, err := yaml.Marshal(kf)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot write key file: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "Key %s written to %s\n", signer.KeyID, out)
	_, _ = fmt.Fprintf(stdout, "Public key: %s\n", signer.PublicKeyBase64())
	return 0
}

// loadSigner reads a key file written by keygen.
func loadSigner(path string) (*crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read key file: %w", err)
	}
	var kf keyFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("cannot parse key file: %w", err)
	}
	seed, err := base64.StdEncoding.DecodeString(kf.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key encoding: %w", err)
	}
	return crypto.NewSignerFromSeed(seed, kf.KeyID)
}
