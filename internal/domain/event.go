package domain

// Source identifies the agent CLI that produced an event.
type Source string

const (
	SourceClaudeCode Source = "claude-code"
	SourceCodex      Source = "codex"
	SourceOpenCode   Source = "opencode"
)

// ParseSource maps a producer-supplied source string onto the closed set.
// Anything unrecognized, including the empty string, is claude-code: the
// original hook producer never sent a source field.
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceCodex:
		return SourceCodex
	case SourceOpenCode:
		return SourceOpenCode
	default:
		return SourceClaudeCode
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceClaudeCode, SourceCodex, SourceOpenCode:
		return true
	}
	return false
}

// Category is the coarse classification used for filtering and coloring.
type Category string

const (
	CategorySession Category = "session"
	CategoryMessage Category = "message"
	CategoryTool    Category = "tool"
	CategoryError   Category = "error"
	CategorySystem  Category = "system"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySession, CategoryMessage, CategoryTool, CategoryError, CategorySystem:
		return true
	}
	return false
}

// Role is the speaker of a message event.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Canonical event types. Unrecognized payloads keep their raw type string,
// so Event.Type is a plain string rather than a closed enum.
const (
	TypeSessionStart     = "session.start"
	TypeSessionEnd       = "session.end"
	TypeMessageUser      = "message.user"
	TypeMessageAssistant = "message.assistant"
	TypeMessageReasoning = "message.reasoning"
	TypeToolStart        = "tool.start"
	TypeToolEnd          = "tool.end"
	TypeError            = "error"
	TypeNotification     = "notification"
	TypeStepStart        = "step.start"
	TypeStepFinish       = "step.finish"
)

// Event is the canonical, source-agnostic record of one thing that happened
// in an agent session. Events are immutable once normalized.
type Event struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"sessionId"`
	Timestamp  int64    `json:"timestamp"`
	Source     Source   `json:"source"`
	Category   Category `json:"category"`
	Type       string   `json:"type"`
	Role       *Role    `json:"role"`
	Text       *string  `json:"text"`
	ToolName   *string  `json:"toolName"`
	ToolInput  any      `json:"toolInput"`
	ToolOutput any      `json:"toolOutput"`
	Error      *string  `json:"error"`
	Meta       Meta     `json:"meta"`
}

// Meta is the open bag of JSON-serializable values that do not fit the fixed
// event fields. encoding/json writes map keys sorted, so its serialized form
// is stable.
type Meta map[string]any

// Clone returns a shallow copy of m. A nil Meta clones to an empty one.
func (m Meta) Clone() Meta {
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
