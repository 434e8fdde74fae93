package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ryoto/vpstrap/internal/domain-adapters/gateways"
	"github.com/ryoto/vpstrap/internal/domain/entities"
	"github.com/ryoto/vpstrap/internal/domain/interfaces"
	"github.com/ryoto/vpstrap/internal/domain/services"
	"github.com/ryoto/vpstrap/internal/external-adapters/signature"
)

func runRun(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		hashURL     = fs.String("hash-url", "", "Hash-reference URL (checksum document or trusted reference copy)")
		pinned      = fs.String("pinned-sha256", "", "Pinned fallback SHA-256 (hex)")
		interpreter = fs.String("interpreter", "/bin/sh", "Interpreter to execute the verified script with")
		sigScheme   = fs.String("sig-scheme", "", "Optional signature scheme: gpg or minisign")
		sigURL      = fs.String("sig-url", "", "Detached signature URL")
		keyPath     = fs.String("key", "", "Local key file (armored GPG key or minisign public key)")
		keyURL      = fs.String("key-url", "", "Remote KEYS file URL (gpg only)")
		dryRun      = fs.Bool("dry-run", false, "Verify only; do not execute")
		allowHTTP   = fs.Bool("allow-http", false, "Permit plain-HTTP URLs (HTTPS-only by default)")
		verbose     = fs.Bool("verbose", false, "Enable debug logging")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vpstrap run <script-url> [options] [-- script args...]

Fetch a script from an untrusted URL, verify its SHA-256 against a remote
hash reference (falling back to a pinned value), and execute it only on an
exact match. Temporary files are always cleaned up.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Verify against a live checksum document
  vpstrap run https://example.com/install.sh --hash-url https://example.com/install.sh.sha256

  # Pinned hash only, passing arguments to the script
  vpstrap run https://example.com/install.sh --pinned-sha256 9f86d08... -- --prefix /opt
`)
	}

	// The script URL comes first, as documented, with options after it;
	// flag parsing stops at the first non-flag argument, so the URL is
	// peeled off before parsing. A leading flag (such as --help) still goes
	// to the flag set.
	var scriptURL string
	rest := args
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		scriptURL = args[0]
		rest = args[1:]
	}

	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	scriptArgs := fs.Args()
	if scriptURL == "" {
		if fs.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "Error: script URL is required\n\n")
			fs.Usage()
			os.Exit(1)
		}
		scriptURL = fs.Arg(0)
		scriptArgs = fs.Args()[1:]
	}

	req := services.RunRequest{
		ScriptURL:     scriptURL,
		HashSourceURL: *hashURL,
		PinnedSHA256:  *pinned,
		Interpreter:   *interpreter,
		Args:          scriptArgs,
		DryRun:        *dryRun,
	}
	if *sigScheme != "" {
		req.Signature = &entities.SignatureConfig{
			Scheme:       *sigScheme,
			SignatureURL: *sigURL,
			KeyPath:      *keyPath,
			KeyURL:       *keyURL,
		}
	}

	logger := &interfaces.StderrLogger{Verbose: *verbose}
	var fetchOpts []gateways.FetcherOption
	if *allowHTTP {
		fetchOpts = append(fetchOpts, gateways.AllowHTTP())
	}
	runner := services.NewTrustedRunner(
		gateways.NewFetcher(fetchOpts...),
		gateways.NewHasher(),
		gateways.NewScriptExecutor(),
		signature.NewDispatcher(),
		gateways.ExtractChecksum,
		logger,
	)

	report, err := runner.Run(ctx, req)
	if err != nil {
		logger.Error("run failed", interfaces.F("error", err))
		var execErr *services.ExecutionError
		if errors.As(err, &execErr) && execErr.ExitCode > 0 {
			os.Exit(execErr.ExitCode)
		}
		os.Exit(1)
	}

	if report.Executed {
		logger.Info("script executed",
			interfaces.F("url", report.ScriptURL),
			interfaces.F("exit_code", report.ExitCode))
	} else {
		logger.Info("verification passed (dry run)",
			interfaces.F("url", report.ScriptURL),
			interfaces.F("digest", report.Digest),
			interfaces.F("provenance", report.Expected.Provenance))
	}
}
