package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/codewheel/toolgate/internal/config"
	"github.com/codewheel/toolgate/internal/policy"
)

// Quota class names. Stable identifiers exposed by the status API.
const (
	ClassWritesPerMinute         = "writes_per_minute"
	ClassWritesPerHour           = "writes_per_hour"
	ClassDeletesPerHour          = "deletes_per_hour"
	ClassStructureChangesPerHour = "structure_changes_per_hour"
)

// AllClasses lists every quota class in display order.
var AllClasses = []string{
	ClassWritesPerMinute,
	ClassWritesPerHour,
	ClassDeletesPerHour,
	ClassStructureChangesPerHour,
}

// OpClass is the rate-limit bucket family a chargeable call belongs to.
type OpClass string

const (
	OpClassWrite     OpClass = "write"
	OpClassDelete    OpClass = "delete"
	OpClassStructure OpClass = "structure"
)

// Quota is one entry of the static quota catalog.
type Quota struct {
	Class         string
	WindowSeconds int
	Limit         int
}

// quotaCatalog resolves the catalog for the current limits. The global write
// quotas apply to every chargeable call; deletes and structure changes carry
// an additional hourly quota on top.
func quotaCatalog(l config.RateLimiting) map[string]Quota {
	return map[string]Quota{
		ClassWritesPerMinute:         {Class: ClassWritesPerMinute, WindowSeconds: 60, Limit: l.MaxWritesPerMinute},
		ClassWritesPerHour:           {Class: ClassWritesPerHour, WindowSeconds: 3600, Limit: l.MaxWritesPerHour},
		ClassDeletesPerHour:          {Class: ClassDeletesPerHour, WindowSeconds: 3600, Limit: l.MaxDeletesPerHour},
		ClassStructureChangesPerHour: {Class: ClassStructureChangesPerHour, WindowSeconds: 3600, Limit: l.MaxStructureChangesPerHour},
	}
}

// classesFor maps an operation class to the quota classes it consumes.
func classesFor(op OpClass) []string {
	switch op {
	case OpClassDelete:
		return []string{ClassWritesPerMinute, ClassWritesPerHour, ClassDeletesPerHour}
	case OpClassStructure:
		return []string{ClassWritesPerMinute, ClassWritesPerHour, ClassStructureChangesPerHour}
	default:
		return []string{ClassWritesPerMinute, ClassWritesPerHour}
	}
}

// usage is a fixed-window counter for one (caller, class) pair.
type usage struct {
	count       int
	windowStart time.Time
}

// Limiter tracks per-caller usage against the quota catalog with fixed
// windows. Counters are shared across concurrent requests from the same
// caller, so the read-modify-write is done under one lock: two concurrent
// calls can never both slip past the limit.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*usage // callerID + "|" + class

	settings func() config.Settings
	now      func() time.Time
}

// New creates a limiter. The settings func is consulted on every call so
// hot-reloaded limits apply immediately.
func New(settings func() config.Settings) *Limiter {
	return &Limiter{
		counters: make(map[string]*usage),
		settings: settings,
		now:      time.Now,
	}
}

func counterKey(callerID, class string) string {
	return callerID + "|" + class
}

// CheckAndCharge verifies every quota class applicable to the operation and,
// only if all pass, commits one charge to each. A denial commits nothing.
func (l *Limiter) CheckAndCharge(callerID string, op OpClass) policy.Decision {
	s := l.settings().RateLimiting
	if !s.Enabled {
		return policy.Allow()
	}

	catalog := quotaCatalog(s)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	classes := classesFor(op)
	for _, class := range classes {
		q := catalog[class]
		if q.Limit <= 0 {
			// Non-positive limits mean unlimited for that class.
			continue
		}
		u := l.rollWindow(callerID, class, q, now)
		if u.count >= q.Limit {
			retryAfter := int(u.windowStart.Add(time.Duration(q.WindowSeconds) * time.Second).Sub(now).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			d := policy.Deny(policy.CodeRateLimitExceeded, fmt.Sprintf(
				"Rate limit exceeded: maximum %d %s. Try again in %d seconds.",
				q.Limit, q.Class, retryAfter))
			d.RetryAfter = retryAfter
			return d
		}
	}

	for _, class := range classes {
		if catalog[class].Limit <= 0 {
			continue
		}
		u := l.rollWindow(callerID, class, catalog[class], now)
		u.count++
	}

	return policy.Allow()
}

// rollWindow returns the live counter for a (caller, class) pair, resetting
// it when its window has elapsed. Caller must hold l.mu.
func (l *Limiter) rollWindow(callerID, class string, q Quota, now time.Time) *usage {
	key := counterKey(callerID, class)
	u, ok := l.counters[key]
	if !ok {
		u = &usage{windowStart: now}
		l.counters[key] = u
	}
	if now.Sub(u.windowStart) >= time.Duration(q.WindowSeconds)*time.Second {
		u.count = 0
		u.windowStart = now
	}
	return u
}

// ClassUsage is the observable state of one quota class for a caller.
type ClassUsage struct {
	Class           string `json:"class"`
	Used            int    `json:"used"`
	Limit           int    `json:"limit"`
	WindowSeconds   int    `json:"window_seconds"`
	ResetsInSeconds int    `json:"resets_in_seconds"`
}

// Status returns current usage for every quota class without charging.
func (l *Limiter) Status(callerID string) []ClassUsage {
	s := l.settings().RateLimiting
	catalog := quotaCatalog(s)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ClassUsage, 0, len(AllClasses))
	for _, class := range AllClasses {
		q := catalog[class]
		cu := ClassUsage{Class: class, Limit: q.Limit, WindowSeconds: q.WindowSeconds}
		if u, ok := l.counters[counterKey(callerID, class)]; ok {
			if now.Sub(u.windowStart) < time.Duration(q.WindowSeconds)*time.Second {
				cu.Used = u.count
				cu.ResetsInSeconds = int(u.windowStart.Add(time.Duration(q.WindowSeconds) * time.Second).Sub(now).Seconds())
			}
		}
		out = append(out, cu)
	}
	return out
}

// Reset clears all counters for a caller. Administrative use only.
func (l *Limiter) Reset(callerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, class := range AllClasses {
		delete(l.counters, counterKey(callerID, class))
	}
}
