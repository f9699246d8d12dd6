package policy

import (
	"strings"
	"testing"
)

func readTool() ToolDescriptor {
	return NewToolDescriptor("list_content", "content", OpRead, "")
}

func writeTool(kind WriteKind) ToolDescriptor {
	return NewToolDescriptor("update_content", "content", OpWrite, kind)
}

func triggerTool() ToolDescriptor {
	return NewToolDescriptor("run_cron", "cron", OpTrigger, "")
}

func TestModes_ReadToolAlwaysAllowed(t *testing.T) {
	m := Modes{ReadOnly: true, ConfigOnly: true}
	if d := m.Evaluate(readTool()); !d.Allowed {
		t.Errorf("read tool should be allowed under any mode, got denial %s", d.Code)
	}
}

func TestModes_ReadOnlyBlocksWrites(t *testing.T) {
	m := Modes{ReadOnly: true}
	d := m.Evaluate(writeTool(WriteKindContent))
	if d.Allowed {
		t.Fatal("write tool should be denied in read-only mode")
	}
	if d.Code != CodeReadOnlyMode {
		t.Errorf("expected READ_ONLY_MODE, got %s", d.Code)
	}
}

func TestModes_ReadOnlyBlocksTriggers(t *testing.T) {
	m := Modes{ReadOnly: true}
	if d := m.Evaluate(triggerTool()); d.Allowed || d.Code != CodeReadOnlyMode {
		t.Errorf("trigger tool should be denied with READ_ONLY_MODE, got allowed=%v code=%s", d.Allowed, d.Code)
	}
}

func TestModes_ReadOnlyWinsOverConfigOnlyAllowList(t *testing.T) {
	// Even when the allow-list would permit this write kind, read-only
	// mode takes precedence.
	m := Modes{
		ReadOnly:          true,
		ConfigOnly:        true,
		AllowedWriteKinds: []WriteKind{WriteKindConfig, WriteKindContent, WriteKindOps},
	}
	d := m.Evaluate(writeTool(WriteKindConfig))
	if d.Allowed {
		t.Fatal("read-only mode must win over config-only allow-list")
	}
	if d.Code != CodeReadOnlyMode {
		t.Errorf("expected READ_ONLY_MODE, got %s", d.Code)
	}
}

func TestModes_ConfigOnlyBlocksDisallowedKind(t *testing.T) {
	m := Modes{ConfigOnly: true, AllowedWriteKinds: []WriteKind{WriteKindConfig}}
	d := m.Evaluate(writeTool(WriteKindContent))
	if d.Allowed {
		t.Fatal("content write should be denied in config-only mode")
	}
	if d.Code != CodeConfigOnlyMode {
		t.Errorf("expected CONFIG_ONLY_MODE, got %s", d.Code)
	}
}

func TestModes_ConfigOnlyAllowsListedKind(t *testing.T) {
	m := Modes{ConfigOnly: true, AllowedWriteKinds: []WriteKind{WriteKindConfig}}
	if d := m.Evaluate(writeTool(WriteKindConfig)); !d.Allowed {
		t.Errorf("config write should be allowed, got denial %s", d.Code)
	}
}

func TestModes_ConfigOnlyEmptyAllowListFallsBackToConfig(t *testing.T) {
	m := Modes{ConfigOnly: true}
	if d := m.Evaluate(writeTool(WriteKindConfig)); !d.Allowed {
		t.Errorf("empty allow-list should fall back to {config}, got denial %s", d.Code)
	}
	if d := m.Evaluate(writeTool(WriteKindOps)); d.Allowed {
		t.Error("ops write should be denied under the fallback allow-list")
	}
}

func TestModes_ConfigOnlyInvalidEntriesIgnored(t *testing.T) {
	m := Modes{ConfigOnly: true, AllowedWriteKinds: []WriteKind{"bogus", WriteKindOps}}
	if d := m.Evaluate(writeTool(WriteKindOps)); !d.Allowed {
		t.Errorf("ops write should be allowed, got denial %s", d.Code)
	}
	if d := m.Evaluate(writeTool(WriteKindContent)); d.Allowed {
		t.Error("content write should be denied; bogus entries must not widen the list")
	}
}

func TestModes_DefaultModeAllowsWrites(t *testing.T) {
	m := Modes{}
	if d := m.Evaluate(writeTool(WriteKindContent)); !d.Allowed {
		t.Errorf("write should be allowed with both modes off, got denial %s", d.Code)
	}
}

func TestCheckScope_WriteRequiresWriteScope(t *testing.T) {
	d := CheckScope(NewScopeSet(ScopeRead), writeTool(WriteKindContent))
	if d.Allowed {
		t.Fatal("write tool should be denied for read-only scope set")
	}
	if d.Code != CodeInsufficientScope {
		t.Errorf("expected INSUFFICIENT_SCOPE, got %s", d.Code)
	}
	if !strings.HasPrefix(d.Reason, "Write operations not allowed") {
		t.Errorf("denial message should lead with the capitalized operation kind, got %q", d.Reason)
	}
}

func TestCheckScope_TriggerRequiresAdmin(t *testing.T) {
	// Write does not imply admin.
	d := CheckScope(NewScopeSet(ScopeRead, ScopeWrite), triggerTool())
	if d.Allowed {
		t.Fatal("trigger tool should require admin scope")
	}
	if d.Code != CodeInsufficientScope {
		t.Errorf("expected INSUFFICIENT_SCOPE, got %s", d.Code)
	}
	if d2 := CheckScope(NewScopeSet(ScopeAdmin), triggerTool()); !d2.Allowed {
		t.Errorf("admin scope should allow trigger tools, got denial %s", d2.Code)
	}
}

func TestCheckScope_ReadToolNeedsReadScope(t *testing.T) {
	if d := CheckScope(NewScopeSet(ScopeRead), readTool()); !d.Allowed {
		t.Errorf("read scope should allow read tools, got denial %s", d.Code)
	}
	if d := CheckScope(NewScopeSet(), readTool()); d.Allowed {
		t.Error("empty scope set should deny read tools")
	}
}
