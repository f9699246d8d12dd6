// Package gateway runs every tool call through the full policy pipeline:
// category permission, global modes, scope, rate limiting, argument
// validation, execution, result normalization, audit, and events.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codewheel/toolgate/internal/audit"
	"github.com/codewheel/toolgate/internal/callctx"
	"github.com/codewheel/toolgate/internal/config"
	"github.com/codewheel/toolgate/internal/events"
	"github.com/codewheel/toolgate/internal/policy"
	"github.com/codewheel/toolgate/internal/ratelimit"
	"github.com/codewheel/toolgate/internal/registry"
	"github.com/codewheel/toolgate/internal/result"
)

// Request is one tool execution attempt by an authenticated caller.
type Request struct {
	ToolID    string
	CallerID  string
	Scopes    policy.ScopeSet
	Grants    policy.Grants
	Arguments map[string]any
}

// Gateway owns the execution pipeline. Policy checks run in a fixed order
// and the rate limiter is consulted last, so a charge is only committed for
// calls that every other check has already approved.
type Gateway struct {
	registry *registry.Registry
	limiter  *ratelimit.Limiter
	settings func() config.Settings
	recorder audit.Recorder
	bus      *events.Bus
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a gateway.
func New(reg *registry.Registry, limiter *ratelimit.Limiter, settings func() config.Settings,
	recorder audit.Recorder, bus *events.Bus, logger *zap.Logger) *Gateway {
	return &Gateway{
		registry: reg,
		limiter:  limiter,
		settings: settings,
		recorder: recorder,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute runs one tool call through the pipeline. The returned canonical
// result is the only thing the caller ever sees; a denied call never reaches
// the tool's handler.
func (g *Gateway) Execute(ctx context.Context, req Request) result.CanonicalResult {
	settings := g.settings()

	cc := callctx.FromContext(ctx)
	if cc == nil {
		cc = callctx.New(uuid.NewString())
		ctx = callctx.WithContext(ctx, cc)
	}
	requestID := cc.RequestID()

	tool := g.registry.Get(req.ToolID)
	if tool == nil {
		res := result.CanonicalResult{
			Outcome:   result.OutcomeFailure,
			Error:     fmt.Sprintf("Unknown tool %q.", req.ToolID),
			ErrorCode: policy.CodeValidationError,
		}
		g.audit(settings, requestID, req, policy.ToolDescriptor{ID: req.ToolID},
			audit.OutcomeFailure, map[string]string{"error": res.Error})
		g.publishFailed(requestID, req, events.ReasonValidation, res.Error)
		return res
	}
	desc := tool.Descriptor

	if d := g.authorize(settings, req, tool); !d.Allowed {
		g.auditDenial(settings, requestID, req, desc, d)
		g.publishFailed(requestID, req, denialReason(d.Code), d.Reason)
		return result.Denied(d.Code, d.Reason, d.RetryAfter)
	}

	if err := tool.ValidateArgs(req.Arguments); err != nil {
		res := result.CanonicalResult{
			Outcome:   result.OutcomeFailure,
			Error:     fmt.Sprintf("Invalid arguments for tool %q: %v", req.ToolID, err),
			ErrorCode: policy.CodeValidationError,
		}
		g.audit(settings, requestID, req, desc,
			audit.OutcomeFailure, map[string]string{"error": res.Error})
		g.publishFailed(requestID, req, events.ReasonValidation, res.Error)
		return res
	}

	depth := cc.Enter()
	defer cc.Leave()

	g.bus.Publish(events.Event{
		Type:      events.TypeStarted,
		ToolID:    req.ToolID,
		RequestID: requestID,
		CallerID:  req.CallerID,
		Arguments: req.Arguments,
	})

	start := g.now()
	res := g.invoke(ctx, tool, req)
	durationMs := float64(g.now().Sub(start)) / float64(time.Millisecond)

	md := argsMetadata(req.Arguments)
	md["depth"] = fmt.Sprintf("%d", depth)

	switch res.Outcome {
	case result.OutcomeSuccess:
		g.audit(settings, requestID, req, desc, audit.OutcomeSuccess, md)
		g.bus.Publish(events.Event{
			Type:       events.TypeSucceeded,
			ToolID:     req.ToolID,
			RequestID:  requestID,
			CallerID:   req.CallerID,
			DurationMs: durationMs,
		})
	default:
		md["error"] = res.Error
		g.audit(settings, requestID, req, desc, audit.OutcomeFailure, md)
		g.bus.Publish(events.Event{
			Type:       events.TypeFailed,
			ToolID:     req.ToolID,
			RequestID:  requestID,
			CallerID:   req.CallerID,
			DurationMs: durationMs,
			Reason:     events.ReasonExecution,
			Err:        res.Error,
		})
	}

	return res
}

// authorize applies the policy checks in their fixed order. Global modes are
// evaluated before scope so a system-wide freeze reports READ_ONLY_MODE to
// every caller, whatever their scopes. The rate limiter runs last and charges
// nothing unless every prior check passed.
func (g *Gateway) authorize(settings config.Settings, req Request, tool *registry.Tool) policy.Decision {
	desc := tool.Descriptor

	if d := policy.CheckCategory(req.Grants, desc.Category); !d.Allowed {
		return d
	}
	if d := settings.Modes().Evaluate(desc); !d.Allowed {
		return d
	}
	if d := policy.CheckScope(req.Scopes, desc); !d.Allowed {
		return d
	}
	if desc.Operation.Mutates() {
		if d := g.limiter.CheckAndCharge(req.CallerID, tool.RateClass); !d.Allowed {
			return d
		}
	}
	return policy.Allow()
}

// invoke runs the tool handler with panic containment. A panicking tool is
// reported as an execution failure, never as a crashed request.
func (g *Gateway) invoke(ctx context.Context, tool *registry.Tool, req Request) (res result.CanonicalResult) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("tool handler panicked",
				zap.String("tool_id", req.ToolID),
				zap.String("caller_id", req.CallerID),
				zap.Any("panic", r),
			)
			res = result.ExecutionFailure(fmt.Sprintf("%v", r))
		}
	}()
	return result.Normalize(tool.Handler(ctx, req.Arguments))
}

func (g *Gateway) audit(settings config.Settings, requestID string, req Request,
	desc policy.ToolDescriptor, outcome string, metadata map[string]string) {
	if !settings.Access.AuditLogging {
		return
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["operation"] = string(desc.Operation)

	g.recorder.Record(&audit.Entry{
		RequestID:  requestID,
		Actor:      req.CallerID,
		Action:     desc.ID,
		TargetType: desc.Category,
		Outcome:    outcome,
		Timestamp:  g.now(),
		Metadata:   audit.SanitizeMetadata(metadata),
	})
}

// auditDenial records a denied call. Mode denials carry both the attempted
// write kind and the category so operators can see what the toggle blocked.
func (g *Gateway) auditDenial(settings config.Settings, requestID string, req Request,
	desc policy.ToolDescriptor, d policy.Decision) {
	md := map[string]string{
		"code":   d.Code,
		"reason": d.Reason,
	}
	if d.Code == policy.CodeReadOnlyMode || d.Code == policy.CodeConfigOnlyMode {
		md["write_kind"] = string(desc.WriteKind)
		md["category"] = desc.Category
	}
	g.audit(settings, requestID, req, desc, audit.OutcomeDenied, md)
}

func (g *Gateway) publishFailed(requestID string, req Request, reason events.FailReason, errMsg string) {
	g.bus.Publish(events.Event{
		Type:      events.TypeFailed,
		ToolID:    req.ToolID,
		RequestID: requestID,
		CallerID:  req.CallerID,
		Reason:    reason,
		Err:       errMsg,
	})
}

func denialReason(code string) events.FailReason {
	switch code {
	case policy.CodeAccessDenied:
		return events.ReasonDeniedCategory
	case policy.CodeInsufficientScope:
		return events.ReasonDeniedScope
	case policy.CodeReadOnlyMode, policy.CodeConfigOnlyMode:
		return events.ReasonDeniedMode
	case policy.CodeRateLimitExceeded:
		return events.ReasonDeniedRateLimit
	default:
		return events.ReasonAccessDenied
	}
}

func argsMetadata(args map[string]any) map[string]string {
	md := make(map[string]string, len(args)+2)
	for k, v := range args {
		md["arg_"+k] = fmt.Sprintf("%v", v)
	}
	return md
}
