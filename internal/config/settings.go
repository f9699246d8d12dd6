package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/codewheel/toolgate/internal/policy"
)

// Settings is the full policy configuration. It is loaded from a TOML file at
// startup, optionally overridden by a persisted administrative copy, and
// snapshotted per request — policy components never read ambient state.
type Settings struct {
	Access       Access       `toml:"access" json:"access"`
	RateLimiting RateLimiting `toml:"rate_limiting" json:"rate_limiting"`
}

// Access holds the safety-mode toggles and scope defaults.
type Access struct {
	ReadOnlyMode                bool     `toml:"read_only_mode" json:"read_only_mode"`
	ConfigOnlyMode              bool     `toml:"config_only_mode" json:"config_only_mode"`
	ConfigOnlyAllowedWriteKinds []string `toml:"config_only_allowed_write_kinds" json:"config_only_allowed_write_kinds"`
	DefaultScopes               []string `toml:"default_scopes" json:"default_scopes"`
	TrustScopeHeader            bool     `toml:"trust_scope_header" json:"trust_scope_header"`
	AuditLogging                bool     `toml:"audit_logging" json:"audit_logging"`
}

// RateLimiting holds the per-class numeric limits.
type RateLimiting struct {
	Enabled                    bool `toml:"enabled" json:"enabled"`
	MaxWritesPerMinute         int  `toml:"max_writes_per_minute" json:"max_writes_per_minute"`
	MaxWritesPerHour           int  `toml:"max_writes_per_hour" json:"max_writes_per_hour"`
	MaxDeletesPerHour          int  `toml:"max_deletes_per_hour" json:"max_deletes_per_hour"`
	MaxStructureChangesPerHour int  `toml:"max_structure_changes_per_hour" json:"max_structure_changes_per_hour"`
}

// DefaultSettings returns the shipped defaults: read scope only, audit
// logging on, rate limiting on with conservative limits.
func DefaultSettings() Settings {
	return Settings{
		Access: Access{
			ConfigOnlyAllowedWriteKinds: []string{string(policy.WriteKindConfig)},
			DefaultScopes:               []string{string(policy.ScopeRead)},
			AuditLogging:                true,
		},
		RateLimiting: RateLimiting{
			Enabled:                    true,
			MaxWritesPerMinute:         30,
			MaxWritesPerHour:           500,
			MaxDeletesPerHour:          50,
			MaxStructureChangesPerHour: 100,
		},
	}
}

// LoadFile decodes a TOML settings file over the defaults.
func LoadFile(path string) (Settings, error) {
	s := DefaultSettings()
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Settings{}, fmt.Errorf("LoadFile: %w", err)
	}
	return s.Normalize(), nil
}

// Normalize filters invalid scope and write-kind names and restores safe
// fallbacks. An empty scope list always keeps read to prevent accidental
// lockout; an empty allow-list keeps config.
func (s Settings) Normalize() Settings {
	kinds := make([]string, 0, len(s.Access.ConfigOnlyAllowedWriteKinds))
	for _, k := range s.Access.ConfigOnlyAllowedWriteKinds {
		if policy.ValidWriteKind(policy.WriteKind(k)) {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		kinds = []string{string(policy.WriteKindConfig)}
	}
	s.Access.ConfigOnlyAllowedWriteKinds = kinds

	scopes := make([]string, 0, len(s.Access.DefaultScopes))
	for _, sc := range s.Access.DefaultScopes {
		for _, valid := range policy.AllScopes {
			if sc == string(valid) {
				scopes = append(scopes, sc)
			}
		}
	}
	if len(scopes) == 0 {
		scopes = []string{string(policy.ScopeRead)}
	}
	s.Access.DefaultScopes = scopes

	return s
}

// Modes projects the settings onto the global mode policy.
func (s Settings) Modes() policy.Modes {
	kinds := make([]policy.WriteKind, 0, len(s.Access.ConfigOnlyAllowedWriteKinds))
	for _, k := range s.Access.ConfigOnlyAllowedWriteKinds {
		kinds = append(kinds, policy.WriteKind(k))
	}
	return policy.Modes{
		ReadOnly:          s.Access.ReadOnlyMode,
		ConfigOnly:        s.Access.ConfigOnlyMode,
		AllowedWriteKinds: kinds,
	}
}

// DefaultScopeSet returns the configured default scopes as a set.
func (s Settings) DefaultScopeSet() policy.ScopeSet {
	set := make(policy.ScopeSet, len(s.Access.DefaultScopes))
	for _, sc := range s.Access.DefaultScopes {
		set[policy.Scope(sc)] = struct{}{}
	}
	return set
}
