// Package events carries execution lifecycle notifications from the gateway
// to its observers (logging, metrics, audit alerting) without coupling the
// gateway to any of them.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type is the event variant.
type Type string

const (
	TypeStarted   Type = "started"
	TypeSucceeded Type = "succeeded"
	TypeFailed    Type = "failed"

	// TypeAuditSinkError is published when persisting an audit entry fails.
	// Never surfaced to the caller as a tool failure.
	TypeAuditSinkError Type = "audit_sink_error"
)

// FailReason classifies a Failed event.
type FailReason string

const (
	ReasonDeniedScope     FailReason = "policy_denied_scope"
	ReasonDeniedMode      FailReason = "policy_denied_mode"
	ReasonDeniedCategory  FailReason = "policy_denied_category"
	ReasonDeniedRateLimit FailReason = "policy_denied_rate_limit"
	ReasonValidation      FailReason = "validation"
	ReasonExecution       FailReason = "execution"
	ReasonAccessDenied    FailReason = "access_denied"
)

// Event is one execution lifecycle notification. For a single call the
// gateway publishes Started before domain logic runs, then exactly one of
// Succeeded or Failed.
type Event struct {
	Type       Type
	ToolID     string
	RequestID  string
	CallerID   string
	Arguments  map[string]any
	DurationMs float64
	Reason     FailReason // set on Failed
	Err        string     // underlying error summary, if any
	Timestamp  time.Time
}

// Handler consumes events for one variant.
type Handler func(Event)

// Bus is an in-process typed publish/subscribe channel. Subscribers register
// per variant; delivery is synchronous but a panicking subscriber never
// prevents the others from receiving the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]Handler
	logger *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[Type][]Handler),
		logger: logger,
	}
}

// Subscribe registers a handler for one event variant.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish delivers the event to every subscriber of its variant. Missing
// timestamps are filled in.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				zap.String("event_type", string(e.Type)),
				zap.String("tool_id", e.ToolID),
				zap.Any("panic", r),
			)
		}
	}()
	h(e)
}
