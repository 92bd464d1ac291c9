package normalize

import (
	"strings"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// Codex `exec --json` event types.
const (
	codexThreadStarted = "thread.started"
	codexTurnCompleted = "turn.completed"
	codexTurnFailed    = "turn.failed"
	codexItemStarted   = "item.started"
	codexItemCompleted = "item.completed"
	codexError         = "error"
	codexCommandExec   = "command_execution"
	codexFileChange    = "file_change"
	codexMCPToolCall   = "mcp_tool_call"
	codexAgentMessage  = "agent_message"
	codexReasoning     = "reasoning"
)

func mapCodex(raw map[string]any) mapping {
	tag := rawType(raw, "type", "event", "msg_type")

	switch tag {
	case codexThreadStarted:
		return mapping{
			category: domain.CategorySession,
			typ:      domain.TypeSessionStart,
			meta:     copyKeys(nil, raw, "thread_id"),
		}

	case codexTurnCompleted:
		return mapping{
			category: domain.CategorySession,
			typ:      domain.TypeSessionEnd,
			meta:     copyKeys(nil, raw, "usage"),
		}

	case codexTurnFailed, codexError:
		return mapping{
			category: domain.CategoryError,
			typ:      domain.TypeError,
			err:      errorTextOf(raw),
		}

	case codexItemStarted, codexItemCompleted:
		item := firstMap(raw, "item", "payload")
		if item == nil {
			break
		}
		if m, ok := mapCodexItem(item, tag == codexItemCompleted); ok {
			return m
		}
	}

	return unrecognized(tag, raw)
}

func mapCodexItem(item map[string]any, completed bool) (mapping, bool) {
	itemType := rawType(item, "type", "item_type", "itemType")
	meta := copyKeys(nil, item, "id", "status", "exit_code")

	switch itemType {
	case codexCommandExec, codexFileChange, codexMCPToolCall:
		m := mapping{
			category:  domain.CategoryTool,
			typ:       domain.TypeToolStart,
			toolName:  codexToolName(itemType, item),
			toolInput: codexToolInput(itemType, item),
			meta:      meta,
		}
		if completed {
			m.typ = domain.TypeToolEnd
			m.toolOutput = Truncate(codexToolOutput(itemType, item))
		}
		return m, true

	case codexAgentMessage:
		if !completed {
			return mapping{}, false
		}
		return mapping{
			category: domain.CategoryMessage,
			typ:      domain.TypeMessageAssistant,
			role:     ptr(domain.RoleAssistant),
			text:     firstString(item, "text", "message", "content"),
			meta:     meta,
		}, true

	case codexReasoning:
		if !completed {
			return mapping{}, false
		}
		return mapping{
			category: domain.CategoryMessage,
			typ:      domain.TypeMessageReasoning,
			role:     ptr(domain.RoleAssistant),
			text:     firstString(item, "text", "summary", "content"),
			meta:     meta,
		}, true
	}

	return mapping{}, false
}

// codexToolName derives a stable tool name; start and end of the same call
// must produce the same name for timeline pairing.
func codexToolName(itemType string, item map[string]any) *string {
	if itemType != codexMCPToolCall {
		return ptr(itemType)
	}
	server := firstString(item, "server", "server_name")
	tool := firstString(item, "tool", "tool_name", "name")
	switch {
	case server != nil && tool != nil:
		return ptr(strings.Join([]string{*server, *tool}, "."))
	case tool != nil:
		return tool
	}
	return ptr(itemType)
}

func codexToolInput(itemType string, item map[string]any) any {
	switch itemType {
	case codexCommandExec:
		return first(item, "command", "cmd", "input")
	case codexFileChange:
		return first(item, "changes", "files", "input")
	}
	return first(item, "arguments", "args", "input")
}

func codexToolOutput(itemType string, item map[string]any) any {
	switch itemType {
	case codexCommandExec:
		return first(item, "aggregated_output", "output", "stdout")
	case codexFileChange:
		return first(item, "changes", "output")
	}
	return first(item, "result", "output", "error")
}
