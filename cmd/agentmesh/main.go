// Package main provides the CLI entry point for agentmesh, an agent
// orchestration layer combining an A2A protocol engine, a swarm orchestrator,
// and a Gateway RPC transport.
//
// # Basic Usage
//
// Start the server:
//
//	agentmesh serve --http-addr :8080 --gateway-addr :8081
//
// # Environment Variables
//
//   - AGENTMESH_AUTH_MODE: none, token, or gateway (default: none)
//   - AGENTMESH_AUTH_TOKEN: static bearer token when auth mode is "token"
//   - AGENTMESH_JWT_SECRET: HMAC secret when auth mode is "gateway"
//   - AGENTMESH_OTLP_ENDPOINT: OTLP gRPC collector endpoint, enables tracing
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agentmesh",
		Short:   "Agent orchestration layer: A2A protocol, swarms, and the Gateway transport",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
	}
	cmd.AddCommand(buildServeCmd())
	return cmd
}
