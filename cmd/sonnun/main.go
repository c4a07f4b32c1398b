// Command sonnun records provenance events, signs provenance manifests,
// embeds them in published documents, and verifies embedded manifests.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/creatorrr/sonnun/pkg/api"
	"github.com/creatorrr/sonnun/pkg/config"
	"github.com/creatorrr/sonnun/pkg/crypto"
	"github.com/creatorrr/sonnun/pkg/store/ledger"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, separated from main for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "serve", "server":
		return runServe(stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "events":
		return runEventsCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Usage: sonnun <command> [flags]

Commands:
  serve             Run the HTTP API server
  events            Log or list provenance events (log | list)
  export            Build, sign, and embed a manifest into a document
  verify            Verify a signed document
  keygen            Generate a signing keypair
  help              Show this help`)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openLedger opens the configured ledger store.
func openLedger(ctx context.Context, cfg *config.Config) (*ledger.SQLLedger, func(), error) {
	led, db, err := ledger.Open(ctx, ledger.Dialect(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	return led, func() { _ = db.Close() }, nil
}

func runServe(stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	led, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLedger()

	var signer *crypto.Signer
	if keyPath := os.Getenv("SONNUN_KEY_FILE"); keyPath != "" {
		signer, err = loadSigner(keyPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		logger.Info("signing key loaded", "key_id", signer.KeyID)
	}

	assistant := api.NewAssistantProxy(cfg.AssistantURL, cfg.APIKey, logger)
	server := api.NewServer(led, signer, cfg.ExcerptLimit, assistant, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	logger.Info("server listening", "port", cfg.Port, "db_driver", cfg.DBDriver)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		logger.Info("server stopped")
		return 0
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
}
