package policy

import "strings"

// Scope is a coarse capability grant attached to a caller's connection.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	ScopeAdmin Scope = "admin"
)

// AllScopes lists every valid scope. Used to filter untrusted input.
var AllScopes = []Scope{ScopeRead, ScopeWrite, ScopeAdmin}

// OperationKind describes what a tool does to the managed system.
type OperationKind string

const (
	OpRead    OperationKind = "read"
	OpWrite   OperationKind = "write"
	OpTrigger OperationKind = "trigger"
)

// Mutates reports whether the operation kind modifies the managed system.
func (k OperationKind) Mutates() bool {
	return k == OpWrite || k == OpTrigger
}

// RequiredScope returns the scope a caller needs for this operation kind.
// Trigger operations require admin; admin is not implied by write.
func (k OperationKind) RequiredScope() Scope {
	switch k {
	case OpWrite:
		return ScopeWrite
	case OpTrigger:
		return ScopeAdmin
	default:
		return ScopeRead
	}
}

// WriteKind classifies a mutating tool for config-only mode enforcement.
type WriteKind string

const (
	WriteKindContent WriteKind = "content"
	WriteKindOps     WriteKind = "ops"
	WriteKindConfig  WriteKind = "config"
)

// AllWriteKinds lists every valid write kind.
var AllWriteKinds = []WriteKind{WriteKindContent, WriteKindOps, WriteKindConfig}

// ValidWriteKind reports whether s names a known write kind.
func ValidWriteKind(s WriteKind) bool {
	for _, k := range AllWriteKinds {
		if s == k {
			return true
		}
	}
	return false
}

// ScopeSet is an unordered set of scopes.
type ScopeSet map[Scope]struct{}

// NewScopeSet builds a set from the given scopes, dropping unknown values.
func NewScopeSet(scopes ...Scope) ScopeSet {
	s := make(ScopeSet, len(scopes))
	for _, sc := range scopes {
		if validScope(sc) {
			s[sc] = struct{}{}
		}
	}
	return s
}

// ParseScopes parses a comma-separated scope string (e.g. "read,write"),
// dropping unknown values.
func ParseScopes(raw string) ScopeSet {
	s := make(ScopeSet)
	for _, part := range strings.Split(raw, ",") {
		sc := Scope(strings.TrimSpace(part))
		if validScope(sc) {
			s[sc] = struct{}{}
		}
	}
	return s
}

// Has reports whether the set contains the scope.
func (s ScopeSet) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// Intersect returns the scopes present in both sets.
func (s ScopeSet) Intersect(other ScopeSet) ScopeSet {
	out := make(ScopeSet)
	for sc := range s {
		if other.Has(sc) {
			out[sc] = struct{}{}
		}
	}
	return out
}

// Slice returns the scopes in a stable order (read, write, admin).
func (s ScopeSet) Slice() []Scope {
	out := make([]Scope, 0, len(s))
	for _, sc := range AllScopes {
		if s.Has(sc) {
			out = append(out, sc)
		}
	}
	return out
}

// String returns the scopes joined by commas in stable order.
func (s ScopeSet) String() string {
	parts := make([]string, 0, len(s))
	for _, sc := range s.Slice() {
		parts = append(parts, string(sc))
	}
	return strings.Join(parts, ",")
}

func validScope(s Scope) bool {
	return s == ScopeRead || s == ScopeWrite || s == ScopeAdmin
}
