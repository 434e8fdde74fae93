package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ryoto/vpstrap/internal/domain/entities"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	command := os.Args[1]

	// Dispatch to subcommand
	switch command {
	case "bootstrap":
		runBootstrap(ctx, os.Args[2:])
	case "geo":
		runGeo(ctx, os.Args[2:])
	case "run":
		runRun(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`vpstrap - VPS bootstrap with verified remote-script execution

Usage:
  vpstrap <command> [options]

Commands:
  bootstrap  Run a bootstrap plan: classify region, pick mirrors, install
  geo        Classify the host's network region via trace endpoints
  run        Fetch, verify and execute a single script URL

Use "vpstrap <command> --help" for more information about a command.`)
}

// ipModeFromEnv reads the operator override, defaulting to auto on unset
// or invalid values.
func ipModeFromEnv() entities.IPMode {
	return entities.ParseIPMode(os.Getenv("VPSTRAP_IP_MODE"))
}

// defaultTraceEndpoints is the reference deployment's probe list: three
// endpoints run by the same CDN operator, probed in order.
func defaultTraceEndpoints() []entities.TraceEndpoint {
	return []entities.TraceEndpoint{
		{Name: "cloudflare-www", URL: "https://www.cloudflare.com/cdn-cgi/trace"},
		{Name: "cloudflare-blog", URL: "https://blog.cloudflare.com/cdn-cgi/trace"},
		{Name: "cloudflare-developers", URL: "https://developers.cloudflare.com/cdn-cgi/trace"},
	}
}
