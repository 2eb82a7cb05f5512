// Package observability provides comprehensive monitoring and debugging capabilities
// for the agentmesh application through metrics, structured logging, and distributed tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - A2A Task state transitions and JSON-RPC dispatch latency
//   - Agent Card cache hit/miss rates
//   - Swarm and Swarm Agent execution outcomes and durations
//   - Gateway Transport connection counts, frames, and reconnects
//   - Error rates by component and type
//   - HTTP request/response metrics
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//	defer prometheus.Handler() // Expose metrics endpoint
//
//	// Track a Task transition
//	metrics.RecordTaskTransition("working", "completed")
//
//	// Track RPC dispatch
//	start := time.Now()
//	// ... dispatch message/send ...
//	metrics.RecordRPCDispatch("message/send", "ok", time.Since(start).Seconds())
//
//	// Track a Swarm Agent's run
//	start = time.Now()
//	// ... execute agent ...
//	metrics.RecordSwarmAgentFinished("coder", "done", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, taskID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "dispatching rpc method",
//	    "method", "message/send",
//	    "task_id", taskID,
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "swarm agent failed",
//	    "error", err,
//	    "role", "coder",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track requests across components:
//   - End-to-end request visualization across A2A RPCs, swarm group
//     execution, and Gateway Transport round-trips
//   - Performance bottleneck identification
//   - Error correlation across services
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "agentmesh",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace an RPC dispatch
//	ctx, span := tracer.TraceRPCDispatch(ctx, "message/send", taskID)
//	defer span.End()
//
//	// Trace a swarm group execution
//	ctx, swarmSpan := tracer.TraceSwarmExecution(ctx, swarmID)
//	defer swarmSpan.End()
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "task-456")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "dispatching") // Includes request_id, session_id, etc.
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// # Configuration
//
// All components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	// Tracing - configurable sampling, endpoint, attributes
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "agentmesh",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	        "deployment.cluster": cluster,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic systems
//  6. Use typed metric labels (avoid high-cardinality values)
//  7. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Task transition rate
//	rate(agentmesh_task_transitions_total[5m])
//
//	# RPC dispatch latency (95th percentile)
//	histogram_quantile(0.95, rate(agentmesh_rpc_dispatch_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(agentmesh_errors_total[5m])
//
//	# Active tasks
//	agentmesh_active_tasks
//
//	# Swarm agent duration by role
//	rate(agentmesh_swarm_agent_duration_seconds_sum[5m]) /
//	rate(agentmesh_swarm_agent_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: agentmesh_errors_total > threshold
//   - High RPC latency: p95 dispatch latency > 10s
//   - Task accumulation: agentmesh_active_tasks growing unbounded
//   - Gateway reconnect exhaustion: agentmesh_gateway_reconnects_total{outcome="exhausted"} > 0
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
