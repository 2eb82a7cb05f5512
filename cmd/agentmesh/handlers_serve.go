package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentmesh/internal/a2a"
	"github.com/haasonsaas/agentmesh/internal/auth"
	"github.com/haasonsaas/agentmesh/internal/gatewaytransport"
	"github.com/haasonsaas/agentmesh/internal/observability"
	"github.com/haasonsaas/agentmesh/internal/swarm"
)

const shutdownGrace = 15 * time.Second

// runServe wires the A2A server, the swarm orchestrator, and the Gateway
// transport into two listening HTTP servers and blocks until a shutdown
// signal arrives or either server fails.
func runServe(cmd *cobra.Command, opts *serveOptions) error {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  opts.logLevel,
		Format: opts.logFormat,
	})
	metrics := observability.NewMetrics()

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "agentmesh",
		ServiceVersion: version,
		Endpoint:       opts.otlpEndpoint,
	})
	defer func() { _ = shutdownTracer(context.Background()) }()

	authn, err := buildAuthenticator(opts)
	if err != nil {
		return fmt.Errorf("auth configuration: %w", err)
	}

	orch := swarm.NewOrchestrator(swarm.OrchestratorConfig{
		MaxConcurrentSwarms: opts.maxConcurrentSwarms,
		MaxAgentsPerSwarm:   opts.maxAgentsPerSwarm,
	}, logger, metrics)

	tasks := a2a.NewTaskManager(opts.maxTasks, opts.taskExpiryMs, logger, metrics)
	defer tasks.Close()

	events := observability.NewEventRecorder(observability.NewMemoryEventStore(opts.maxTasks*16), logger)
	dispatcher := a2a.NewDispatcher(tasks, swarmExecuteHook(orch, tracer, events), logger)

	card := a2a.Card{
		Name:        opts.cardName,
		Description: "agentmesh orchestration agent",
		BaseURL:     a2a.NormalizeBaseURL(opts.cardURL),
		Version:     version,
		Capabilities: a2a.Capabilities{
			Streaming:              true,
			StateTransitionHistory: true,
		},
	}
	a2aServer := a2a.NewServer(card, dispatcher, tasks, authn, logger)

	gw := gatewaytransport.NewServer(logger, metrics)
	registerGatewayHandlers(gw, orch, tasks, dispatcher, card, opts.authMode)

	httpMux := http.NewServeMux()
	httpMux.Handle("/", a2aServer)
	httpMux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Addr: opts.httpAddr, Handler: httpMux}

	gatewayServer := &http.Server{Addr: opts.gatewayAddr, Handler: gw}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		logger.Info(ctx, "a2a server listening", "addr", opts.httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("a2a server: %w", err)
		}
	}()
	go func() {
		logger.Info(ctx, "gateway server listening", "addr", opts.gatewayAddr)
		if err := gatewayServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info(context.Background(), "shutdown signal received, draining connections")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	var shutdownErr error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("a2a server shutdown: %w", err))
	}
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("gateway server shutdown: %w", err))
	}
	return shutdownErr
}

func buildAuthenticator(opts *serveOptions) (*auth.Authenticator, error) {
	mode := auth.Mode(opts.authMode)
	switch mode {
	case auth.ModeNone, "":
		return auth.NewAuthenticator(auth.Config{Mode: auth.ModeNone}), nil
	case auth.ModeToken:
		if opts.authToken == "" {
			return nil, fmt.Errorf("auth-mode=token requires --auth-token or AGENTMESH_AUTH_TOKEN")
		}
		return auth.NewAuthenticator(auth.Config{Mode: auth.ModeToken, Token: opts.authToken}), nil
	case auth.ModeGateway:
		if opts.jwtSecret == "" {
			return nil, fmt.Errorf("auth-mode=gateway requires --jwt-secret or AGENTMESH_JWT_SECRET")
		}
		return auth.NewAuthenticator(auth.Config{
			Mode:        auth.ModeGateway,
			JWTSecret:   opts.jwtSecret,
			TokenExpiry: time.Hour,
		}), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", opts.authMode)
	}
}
