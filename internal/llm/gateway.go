package llm

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Gateway is the single entry point for model calls. It resolves the
// configured provider, applies the token watchdog to streaming calls, and
// exposes the escalation target for the engine's policy checks.
type Gateway struct {
	registry           *Registry
	defaultProvider    string
	escalationProvider string
	live               LivenessConfig
	logger             *slog.Logger
	tracer             trace.Tracer
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger }
}

// WithTracer sets the gateway tracer.
func WithTracer(tracer trace.Tracer) GatewayOption {
	return func(g *Gateway) { g.tracer = tracer }
}

// WithLiveness overrides the watchdog configuration.
func WithLiveness(cfg LivenessConfig) GatewayOption {
	return func(g *Gateway) { g.live = cfg }
}

// NewGateway creates a gateway over the registry. defaultProvider serves
// all calls; escalationProvider is consulted only through Escalate.
func NewGateway(registry *Registry, defaultProvider, escalationProvider string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		registry:           registry,
		defaultProvider:    defaultProvider,
		escalationProvider: escalationProvider,
		live:               DefaultLivenessConfig(),
		logger:             slog.Default(),
		tracer:             noop.NewTracerProvider().Tracer("llm"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type ctxKey int

const escalationKey ctxKey = iota

// WithEscalation marks the context so gateway calls route to the
// escalation provider. The engine sets this after the caller approves
// escalation (or the auto-escalate policy allows it).
func WithEscalation(ctx context.Context) context.Context {
	return context.WithValue(ctx, escalationKey, true)
}

func escalated(ctx context.Context) bool {
	v, _ := ctx.Value(escalationKey).(bool)
	return v
}

// providerFor resolves the provider name for a call, honoring the
// escalation context flag.
func (g *Gateway) providerFor(ctx context.Context, requested string) string {
	if escalated(ctx) && g.CanEscalate() {
		return g.escalationProvider
	}
	return requested
}

// Complete runs a watchdog-guarded streaming completion on the default
// provider.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return g.CompleteWith(ctx, g.providerFor(ctx, g.defaultProvider), req)
}

// CompleteWith runs a watchdog-guarded streaming completion on a named
// provider.
func (g *Gateway) CompleteWith(ctx context.Context, providerName string, req CompletionRequest) (*CompletionResponse, error) {
	p, err := g.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", providerName),
		attribute.String("llm.model", req.Model),
	))
	defer span.End()

	resp, err := CompleteLive(ctx, p, req, g.live, g.logger)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("llm.tokens.total", resp.Usage.TotalTokens))
	return resp, nil
}

// CompleteTools runs a watchdog-guarded tool-call completion on the
// default provider. The response is valid with text, tool calls, or both.
func (g *Gateway) CompleteTools(ctx context.Context, req CompletionRequest, tools []ToolDef) (*CompletionResponse, error) {
	providerName := g.providerFor(ctx, g.defaultProvider)
	p, err := g.registry.Get(providerName)
	if err != nil {
		return nil, err
	}
	req.Tools = tools

	ctx, span := g.tracer.Start(ctx, "llm.complete_tools", trace.WithAttributes(
		attribute.String("llm.provider", providerName),
		attribute.Int("llm.tool_count", len(tools)),
	))
	defer span.End()

	resp, err := CompleteLive(ctx, p, req, g.live, g.logger)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return resp, nil
}

// Escalate runs the completion on the escalation provider.
func (g *Gateway) Escalate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return g.CompleteWith(ctx, g.escalationProvider, req)
}

// CanEscalate reports whether an escalation provider is configured and
// registered. Without a credential there is nothing to ask approval for.
func (g *Gateway) CanEscalate() bool {
	return g.escalationProvider != "" && g.registry.Has(g.escalationProvider)
}

// EscalationProvider returns the configured escalation provider name.
func (g *Gateway) EscalationProvider() string {
	return g.escalationProvider
}

// DefaultProvider returns the configured default provider name.
func (g *Gateway) DefaultProvider() string {
	return g.defaultProvider
}
