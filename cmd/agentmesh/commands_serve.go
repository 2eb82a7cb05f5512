package main

import (
	"os"

	"github.com/spf13/cobra"
)

// serveOptions collects the "serve" command's flags before they're threaded
// into runServe.
type serveOptions struct {
	httpAddr     string
	gatewayAddr  string
	cardURL      string
	cardName     string

	authMode    string
	authToken   string
	jwtSecret   string

	maxTasks            int
	taskExpiryMs        int64
	maxAgentsPerSwarm   int
	maxConcurrentSwarms int

	otlpEndpoint string
	logLevel     string
	logFormat    string
}

// buildServeCmd creates the "serve" command that starts the A2A HTTP server
// and the Gateway WebSocket server side by side.
func buildServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the A2A server and the Gateway transport",
		Long: `Start agentmesh's two network surfaces:

1. The A2A HTTP server: agent-card discovery, JSON-RPC task dispatch, and
   SSE task streaming.
2. The Gateway RPC transport: a WebSocket duplex channel for browser/UI
   clients to issue requests and receive swarm/task events.

A swarm orchestrator runs in-process; A2A tasks are executed by spawning a
swarm sized to the task's content.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", ":8080", "Address the A2A HTTP server listens on")
	cmd.Flags().StringVar(&opts.gatewayAddr, "gateway-addr", ":8081", "Address the Gateway WebSocket server listens on")
	cmd.Flags().StringVar(&opts.cardURL, "card-url", "http://localhost:8080", "Base URL advertised in this agent's card")
	cmd.Flags().StringVar(&opts.cardName, "card-name", "agentmesh", "Name advertised in this agent's card")

	cmd.Flags().StringVar(&opts.authMode, "auth-mode", envOr("AGENTMESH_AUTH_MODE", "none"), "Auth mode: none, token, or gateway")
	cmd.Flags().StringVar(&opts.authToken, "auth-token", envOr("AGENTMESH_AUTH_TOKEN", ""), "Static bearer token (auth-mode=token)")
	cmd.Flags().StringVar(&opts.jwtSecret, "jwt-secret", envOr("AGENTMESH_JWT_SECRET", ""), "HMAC secret for Gateway JWTs (auth-mode=gateway)")

	cmd.Flags().IntVar(&opts.maxTasks, "max-tasks", 0, "Maximum concurrently tracked A2A tasks (0 = unbounded)")
	cmd.Flags().Int64Var(&opts.taskExpiryMs, "task-expiry-ms", 0, "Milliseconds a terminal task is kept before pruning (0 = default 60m)")
	cmd.Flags().IntVar(&opts.maxAgentsPerSwarm, "max-agents-per-swarm", 8, "Maximum agents in a single swarm")
	cmd.Flags().IntVar(&opts.maxConcurrentSwarms, "max-concurrent-swarms", 10, "Maximum swarms running at once")

	cmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", envOr("AGENTMESH_OTLP_ENDPOINT", ""), "OTLP gRPC collector endpoint; empty disables tracing")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "json", "Log format: json or text")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
