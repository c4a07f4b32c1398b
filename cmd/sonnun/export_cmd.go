package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/creatorrr/sonnun/pkg/config"
	"github.com/creatorrr/sonnun/pkg/envelope"
	"github.com/creatorrr/sonnun/pkg/manifest"
)

// runExportCmd implements `sonnun export`: build a manifest from the
// configured ledger, sign it, and embed the envelope into a document.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		docPath string
		outPath string
		keyPath string
		limit   int
	)
	cmd.StringVar(&docPath, "doc", "", "Path to the HTML document to embed into (REQUIRED)")
	cmd.StringVar(&outPath, "out", "", "Output path (default: overwrite input)")
	cmd.StringVar(&keyPath, "key-file", "sonnun-key.yaml", "Signing key file")
	cmd.IntVar(&limit, "limit", manifest.DefaultExcerptLimit, "Event excerpt size")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if docPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -doc is required")
		return 2
	}
	if outPath == "" {
		outPath = docPath
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	signer, err := loadSigner(keyPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	led, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLedger()

	data, err := manifest.Build(ctx, led, limit)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	env, err := envelope.Seal(data, signer)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	document, err := os.ReadFile(docPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot read document: %v\n", err)
		return 1
	}
	embedded, err := envelope.Inject(string(document), env)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := os.WriteFile(outPath, []byte(embedded), 0o644); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot write document: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "Signed manifest embedded in %s\n", outPath)
	_, _ = fmt.Fprintf(stdout, "Human %.1f%% / AI %.1f%% / Cited %.1f%%, %d characters\n",
		data.HumanPercentage, data.AIPercentage, data.CitedPercentage, data.TotalCharacters)
	return 0
}
