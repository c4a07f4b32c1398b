package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/creatorrr/sonnun/pkg/config"
	"github.com/creatorrr/sonnun/pkg/provenance"
)

// runEventsCmd implements `sonnun events log|list`.
func runEventsCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: sonnun events <log|list> [flags]")
		return 2
	}
	switch args[0] {
	case "log":
		return runEventsLog(args[1:], stdout, stderr)
	case "list":
		return runEventsList(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown events subcommand: %s\n", args[0])
		return 2
	}
}

func runEventsLog(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("events log", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		kindStr string
		text    string
		source  string
		span    int64
	)
	cmd.StringVar(&kindStr, "kind", "", "Event kind: human, ai, or cited (REQUIRED)")
	cmd.StringVar(&text, "text", "", "Attributed text; only its digest is stored (REQUIRED)")
	cmd.StringVar(&source, "source", "", "Author id, model name, or citation identifier")
	cmd.Int64Var(&span, "span", -1, "Span length in characters (default: length of -text)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if kindStr == "" || text == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -kind and -text are required")
		return 2
	}

	kind, err := provenance.ParseKind(kindStr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if span < 0 {
		span = int64(len([]rune(text)))
	}

	event := provenance.Event{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Kind:          kind,
		ContentDigest: provenance.DigestText(text),
		Source:        source,
		SpanLength:    span,
	}

	cfg, err := config.Load()
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

	id, err := led.Append(ctx, event)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "Event %d recorded (%s, %d chars)\n", id, kind, span)
	return 0
}

func runEventsList(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("events list", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		kindStr string
		limit   int
	)
	cmd.StringVar(&kindStr, "kind", "", "Filter by kind")
	cmd.IntVar(&limit, "limit", 0, "Maximum records to return (0 = unlimited)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var kind *provenance.Kind
	if kindStr != "" {
		k, err := provenance.ParseKind(kindStr)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		kind = &k
	}

	cfg, err := config.Load()
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

	records, err := led.Query(ctx, kind, limit)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	data, _ := json.MarshalIndent(records, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}
