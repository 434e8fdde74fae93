package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ryoto/vpstrap/internal/domain-adapters/gateways"
	"github.com/ryoto/vpstrap/internal/domain/entities"
	"github.com/ryoto/vpstrap/internal/domain/interfaces"
	"github.com/ryoto/vpstrap/internal/domain/services"
)

func runGeo(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("geo", flag.ExitOnError)
	var (
		endpoints = fs.String("endpoints", "", "Comma-separated trace endpoint URLs (default: built-in list)")
		ipMode    = fs.String("ip-mode", "", "Force address family: 4, 6 or auto (default: VPSTRAP_IP_MODE or auto)")
		timeout   = fs.Duration("timeout", 8*time.Second, "Per-probe timeout")
		allowHTTP = fs.Bool("allow-http", false, "Permit plain-HTTP endpoints (HTTPS-only by default)")
		verbose   = fs.Bool("verbose", false, "Enable debug logging")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vpstrap geo [options]

Classify whether this host is inside the restricted network region by
probing trace endpoints in order. A restricted answer from any endpoint is
conclusive; a non-restricted conclusion requires the whole list.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	list := defaultTraceEndpoints()
	if *endpoints != "" {
		list = nil
		for _, u := range strings.Split(*endpoints, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				list = append(list, entities.TraceEndpoint{URL: u})
			}
		}
	}

	mode := ipModeFromEnv()
	if *ipMode != "" {
		mode = entities.ParseIPMode(*ipMode)
	}

	logger := &interfaces.StderrLogger{Verbose: *verbose}
	probeOpts := []gateways.FetcherOption{gateways.WithTimeout(*timeout)}
	if *allowHTTP {
		probeOpts = append(probeOpts, gateways.AllowHTTP())
	}
	fetcher := gateways.NewProbeFetcher(probeOpts...)
	classifier := services.NewGeoClassifier(list, fetcher, mode, logger)

	result := classifier.Classify(ctx)
	for _, probe := range result.Probes {
		status := probe.Loc
		if probe.Err != nil {
			status = "unreachable"
		} else if probe.Loc == "" {
			status = "no loc field"
		}
		fmt.Printf("%-60s %s\n", probe.Endpoint.URL, status)
	}
	fmt.Printf("verdict: %s\n", result.Verdict)
}
