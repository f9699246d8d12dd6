package policy

import "fmt"

// CategoryPermission derives the permission name gating a tool category.
// Adding a new category requires no new code here; the mapping is purely
// data-driven.
func CategoryPermission(category string) string {
	return "use " + category
}

// Grants is the set of permission names held by a caller.
type Grants map[string]struct{}

// NewGrants builds a grant set from permission names.
func NewGrants(perms ...string) Grants {
	g := make(Grants, len(perms))
	for _, p := range perms {
		g[p] = struct{}{}
	}
	return g
}

// Has reports whether the grant set contains the permission.
func (g Grants) Has(perm string) bool {
	_, ok := g[perm]
	return ok
}

// Slice returns the grants as a slice (unordered).
func (g Grants) Slice() []string {
	out := make([]string, 0, len(g))
	for p := range g {
		out = append(out, p)
	}
	return out
}

// CheckCategory verifies the caller holds the permission for a tool's
// category. Pure predicate over grants + category, no side effects.
func CheckCategory(grants Grants, category string) Decision {
	if grants.Has(CategoryPermission(category)) {
		return Allow()
	}
	return Deny(CodeAccessDenied, fmt.Sprintf(
		"Permission %q is required for tools in category %q.", CategoryPermission(category), category))
}
