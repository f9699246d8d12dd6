package policy

// ToolDescriptor is the immutable metadata the gateway holds per registered
// tool. Created at registration time and never mutated afterwards.
type ToolDescriptor struct {
	ID        string
	Category  string
	Operation OperationKind
	WriteKind WriteKind // meaningful only when Operation mutates
}

// categoryWriteKinds maps tool categories to their default write kind for
// tools that register without an explicit one. Kept as flat data so the
// classification is testable without touching any tool.
var categoryWriteKinds = map[string]WriteKind{
	// Entity mutations: nodes, media, users and friends.
	"content":      WriteKindContent,
	"users":        WriteKindContent,
	"media":        WriteKindContent,
	"batch":        WriteKindContent,
	"migration":    WriteKindContent,
	"moderation":   WriteKindContent,
	"scheduler":    WriteKindContent,
	"redirect":     WriteKindContent,
	"entity_clone": WriteKindContent,
	// Menu links are content entities.
	"menus": WriteKindContent,

	// Operational actions: runtime state, indexing, regeneration.
	"cache":         WriteKindOps,
	"cron":          WriteKindOps,
	"ultimate_cron": WriteKindOps,
	"search_api":    WriteKindOps,
}

// DefaultWriteKind is applied to categories with no table entry: anything
// not recognizably content or ops is treated as a configuration change.
const DefaultWriteKind = WriteKindConfig

// ClassifyWriteKind returns the write kind for a category.
func ClassifyWriteKind(category string) WriteKind {
	if k, ok := categoryWriteKinds[category]; ok {
		return k
	}
	return DefaultWriteKind
}

// NewToolDescriptor builds a descriptor, filling in the write kind from the
// category table when the tool did not declare one. Read tools carry no
// write kind.
func NewToolDescriptor(id, category string, op OperationKind, writeKind WriteKind) ToolDescriptor {
	d := ToolDescriptor{ID: id, Category: category, Operation: op}
	if !op.Mutates() {
		return d
	}
	if ValidWriteKind(writeKind) {
		d.WriteKind = writeKind
	} else {
		d.WriteKind = ClassifyWriteKind(category)
	}
	return d
}
