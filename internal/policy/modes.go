package policy

import (
	"fmt"
	"strings"
)

// Modes holds the two global safety toggles, snapshotted from configuration
// at request start. Read-only mode blocks every mutation; config-only mode
// blocks mutations whose write kind is not on the allow-list. Read-only
// always wins: the allow-list never reopens what read-only closed.
type Modes struct {
	ReadOnly          bool
	ConfigOnly        bool
	AllowedWriteKinds []WriteKind
}

// writeKindAllowed reports whether the kind is on the config-only allow-list.
// An empty or entirely-invalid list falls back to {config}, so enabling
// config-only mode can never silently allow everything.
func (m Modes) writeKindAllowed(kind WriteKind) bool {
	allowed := make([]WriteKind, 0, len(m.AllowedWriteKinds))
	for _, k := range m.AllowedWriteKinds {
		if ValidWriteKind(k) {
			allowed = append(allowed, k)
		}
	}
	if len(allowed) == 0 {
		allowed = []WriteKind{WriteKindConfig}
	}
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

// Evaluate applies the global mode policy to a tool. Read tools are always
// allowed here; modes only restrict mutation.
func (m Modes) Evaluate(tool ToolDescriptor) Decision {
	if !tool.Operation.Mutates() {
		return Allow()
	}
	if m.ReadOnly {
		return Deny(CodeReadOnlyMode, "Write operations are disabled. System is in read-only mode.")
	}
	if m.ConfigOnly && !m.writeKindAllowed(tool.WriteKind) {
		return Deny(CodeConfigOnlyMode, fmt.Sprintf(
			"Config-only mode is enabled. Writes of kind %q are not allowed.", tool.WriteKind))
	}
	return Allow()
}

// CheckScope verifies the caller's scope set covers the tool's operation.
func CheckScope(scopes ScopeSet, tool ToolDescriptor) Decision {
	required := tool.Operation.RequiredScope()
	if scopes.Has(required) {
		return Allow()
	}
	op := string(tool.Operation)
	if op != "" {
		op = strings.ToUpper(op[:1]) + op[1:]
	}
	return Deny(CodeInsufficientScope, fmt.Sprintf(
		"%s operations not allowed for this connection. Scope: %s", op, scopes))
}
