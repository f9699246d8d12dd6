package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/codewheel/toolgate/internal/policy"
	"github.com/codewheel/toolgate/internal/ratelimit"
	"github.com/codewheel/toolgate/internal/registry"
	"github.com/codewheel/toolgate/internal/result"
)

// registerBuiltinTools installs the tools the standalone server ships with.
// Deployments embedding the gateway register their own domain tools instead.
func registerBuiltinTools(reg *registry.Registry) error {
	builtins := []registry.Registration{
		{
			ID:          "ping",
			Category:    "system",
			Operation:   policy.OpRead,
			Description: "Liveness probe through the full policy pipeline.",
			Handler: func(context.Context, map[string]any) result.Output {
				return result.OK("pong", map[string]any{
					"time": time.Now().UTC().Format(time.RFC3339),
				})
			},
		},
		{
			ID:          "echo",
			Category:    "system",
			Operation:   policy.OpRead,
			Description: "Returns its message argument unchanged.",
			ArgSchema: map[string]any{
				"type":     "object",
				"required": []any{"message"},
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
				},
			},
			Handler: func(_ context.Context, args map[string]any) result.Output {
				msg, _ := args["message"].(string)
				return result.OK("", map[string]any{"message": msg})
			},
		},
		{
			ID:          "runtime_info",
			Category:    "system",
			Operation:   policy.OpRead,
			Description: "Reports process runtime details.",
			Handler: func(context.Context, map[string]any) result.Output {
				var ms runtime.MemStats
				runtime.ReadMemStats(&ms)
				return result.OK("", map[string]any{
					"go_version": runtime.Version(),
					"goroutines": runtime.NumGoroutine(),
					"heap_bytes": ms.HeapAlloc,
				})
			},
		},
		{
			ID:          "gc_run",
			Category:    "cache",
			Operation:   policy.OpWrite,
			WriteKind:   policy.WriteKindOps,
			Description: "Forces a garbage collection cycle.",
			Handler: func(context.Context, map[string]any) result.Output {
				start := time.Now()
				runtime.GC()
				return result.OK(fmt.Sprintf("GC completed in %s.", time.Since(start).Round(time.Millisecond)), nil)
			},
		},
		{
			ID:          "sleep",
			Category:    "system",
			Operation:   policy.OpTrigger,
			RateClass:   ratelimit.OpClassStructure,
			Description: "Blocks for the given number of milliseconds. Load-testing aid.",
			ArgSchema: map[string]any{
				"type":     "object",
				"required": []any{"duration_ms"},
				"properties": map[string]any{
					"duration_ms": map[string]any{
						"type":    "integer",
						"minimum": 0,
						"maximum": 10_000,
					},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) result.Output {
				ms, _ := args["duration_ms"].(float64)
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
					return result.OK("", nil)
				case <-ctx.Done():
					return result.Fail("INTERNAL_ERROR", "cancelled")
				}
			},
		},
	}

	for _, b := range builtins {
		if err := reg.Register(b); err != nil {
			return err
		}
	}
	return nil
}
