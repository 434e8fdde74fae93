package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ryoto/vpstrap/internal/domain-adapters/gateways"
	orchestrators "github.com/ryoto/vpstrap/internal/domain-orchestrators"
	"github.com/ryoto/vpstrap/internal/domain/entities"
	"github.com/ryoto/vpstrap/internal/domain/interfaces"
	"github.com/ryoto/vpstrap/internal/domain/services"
	"github.com/ryoto/vpstrap/internal/external-adapters/signature"
	"github.com/ryoto/vpstrap/internal/external-adapters/yaml"
)

func runBootstrap(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	var (
		planPath  = fs.String("plan", "bootstrap.yaml", "Bootstrap plan file")
		ipMode    = fs.String("ip-mode", "", "Force address family: 4, 6 or auto (default: VPSTRAP_IP_MODE or auto)")
		dryRun    = fs.Bool("dry-run", false, "Verify every installer; execute nothing")
		allowHTTP = fs.Bool("allow-http", false, "Permit plain-HTTP URLs (HTTPS-only by default)")
		verbose   = fs.Bool("verbose", false, "Enable debug logging")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vpstrap bootstrap [options]

Run a bootstrap plan: classify the host's network region once, select the
matching mirror set, then fetch, verify and execute each installer with
mirror failover. An installer runs only when its checksum (and configured
signature) verifies; optional installers are skipped after all sources
fail, mandatory ones abort the bootstrap.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logger := &interfaces.StderrLogger{Verbose: *verbose}

	plan, err := yaml.NewPlanParser().ParseFile(*planPath)
	if err != nil {
		logger.Error("failed to load plan", interfaces.F("error", err))
		os.Exit(1)
	}
	yaml.ApplyEnvOverrides(plan)

	if len(plan.TraceEndpoints) == 0 {
		plan.TraceEndpoints = defaultTraceEndpoints()
	}

	mode := ipModeFromEnv()
	if *ipMode != "" {
		mode = entities.ParseIPMode(*ipMode)
	}

	var probeOpts, fetchOpts []gateways.FetcherOption
	if *allowHTTP {
		probeOpts = append(probeOpts, gateways.AllowHTTP())
		fetchOpts = append(fetchOpts, gateways.AllowHTTP())
	}

	classifier := services.NewGeoClassifier(plan.TraceEndpoints, gateways.NewProbeFetcher(probeOpts...), mode, logger)
	runner := services.NewTrustedRunner(
		gateways.NewFetcher(fetchOpts...),
		gateways.NewHasher(),
		gateways.NewScriptExecutor(),
		signature.NewDispatcher(),
		gateways.ExtractChecksum,
		logger,
	)
	orchestrator := orchestrators.NewBootstrapOrchestrator(classifier, runner, logger, *dryRun)

	result, err := orchestrator.Execute(ctx, plan)
	printBootstrapSummary(result)
	if err != nil {
		logger.Error("bootstrap aborted", interfaces.F("error", err))
		os.Exit(1)
	}
}

func printBootstrapSummary(result *orchestrators.BootstrapResult) {
	if result == nil {
		return
	}
	fmt.Printf("verdict: %s\n", result.Verdict)
	fmt.Printf("mirrors: %s", result.Mirrors.Name)
	if result.Mirrors.AptMirror != "" {
		fmt.Printf(" apt=%s", result.Mirrors.AptMirror)
	}
	if result.Mirrors.GithubProxy != "" {
		fmt.Printf(" github=%s", result.Mirrors.GithubProxy)
	}
	fmt.Println()

	for _, ir := range result.Installers {
		switch {
		case ir.Err == nil && ir.Report != nil && ir.Report.Executed:
			fmt.Printf("installer %-20s ok (exit %d)\n", ir.Name, ir.Report.ExitCode)
		case ir.Err == nil:
			fmt.Printf("installer %-20s verified (dry run)\n", ir.Name)
		case ir.Skipped:
			fmt.Printf("installer %-20s skipped (optional, all sources failed)\n", ir.Name)
		default:
			fmt.Printf("installer %-20s FAILED\n", ir.Name)
		}
	}
	fmt.Printf("duration: %v\n", result.Duration)
}
