// Package callctx tracks whether a privileged tool call is currently in
// flight for a request. External observers (e.g. a change tracker that only
// records edits made during a tool call) consult IsActive.
package callctx

import (
	"context"
	"sync/atomic"
)

// CallContext is the per-request nesting tracker. A tool's domain logic may
// re-enter the gateway through secondary side effects; the depth counter
// keeps IsActive true until the outermost call exits. Never shared across
// requests.
type CallContext struct {
	requestID string
	depth     atomic.Int32
}

// New creates a call context for a request.
func New(requestID string) *CallContext {
	return &CallContext{requestID: requestID}
}

// RequestID returns the identifier of the owning request.
func (c *CallContext) RequestID() string {
	return c.requestID
}

// Enter records the start of a (possibly nested) tool call and returns the
// new depth. Callers must guarantee a matching Leave on every exit path,
// typically via defer.
func (c *CallContext) Enter() int {
	return int(c.depth.Add(1))
}

// Leave records the end of a tool call and returns the new depth. An
// unbalanced Leave is clamped at zero rather than going negative; the
// invariant depth >= 0 holds at all times.
func (c *CallContext) Leave() int {
	for {
		cur := c.depth.Load()
		if cur <= 0 {
			return 0
		}
		if c.depth.CompareAndSwap(cur, cur-1) {
			return int(cur - 1)
		}
	}
}

// Depth returns the current nesting depth.
func (c *CallContext) Depth() int {
	return int(c.depth.Load())
}

// IsActive reports whether a tool call is currently executing.
func (c *CallContext) IsActive() bool {
	return c.depth.Load() > 0
}

type ctxKey struct{}

// WithContext attaches the call context to a context.Context so nested
// gateway invocations reuse it instead of starting a fresh one.
func WithContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, cc)
}

// FromContext returns the attached call context, or nil.
func FromContext(ctx context.Context) *CallContext {
	cc, _ := ctx.Value(ctxKey{}).(*CallContext)
	return cc
}
