package normalize

import "github.com/emiliopalmerini/agentflow/internal/domain"

// Claude Code hook event names.
const (
	claudeSessionStart     = "SessionStart"
	claudeSessionEnd       = "SessionEnd"
	claudeStop             = "Stop"
	claudeUserPromptSubmit = "UserPromptSubmit"
	claudePreToolUse       = "PreToolUse"
	claudePostToolUse      = "PostToolUse"
	claudeError            = "Error"
	claudeNotification     = "Notification"
)

// ClaudeStopText returns the inline assistant text of a Stop event, if any.
// The ingestion layer uses it to decide whether a transcript backfill is
// needed.
func ClaudeStopText(raw map[string]any) *string {
	return firstString(raw, "result", "response", "last_assistant_message")
}

// ClaudeTranscriptPath returns the transcript file referenced by a hook event.
func ClaudeTranscriptPath(raw map[string]any) *string {
	return firstString(raw, "transcript_path", "transcriptPath")
}

// ClaudeHookName returns the hook event name of a raw Claude Code event.
func ClaudeHookName(raw map[string]any) string {
	return rawType(raw, "hook_event_name", "hookEventName", "event", "type")
}

// IsClaudeStop reports whether raw is a Claude Code Stop hook event.
func IsClaudeStop(raw map[string]any) bool {
	return ClaudeHookName(raw) == claudeStop
}

func mapClaude(raw map[string]any) mapping {
	tag := ClaudeHookName(raw)

	switch tag {
	case claudeSessionStart:
		return mapping{
			category: domain.CategorySession,
			typ:      domain.TypeSessionStart,
			meta:     copyKeys(nil, raw, "source", "model", "cwd", "permission_mode", "agent_type", "transcript_path"),
		}

	case claudeSessionEnd:
		return mapping{
			category: domain.CategorySession,
			typ:      domain.TypeSessionEnd,
			meta:     copyKeys(nil, raw, "reason", "cwd"),
		}

	case claudeStop:
		return mapping{
			category: domain.CategoryMessage,
			typ:      domain.TypeMessageAssistant,
			role:     ptr(domain.RoleAssistant),
			text:     ClaudeStopText(raw),
			meta:     copyKeys(nil, raw, "stop_hook_active"),
		}

	case claudeUserPromptSubmit:
		return mapping{
			category: domain.CategoryMessage,
			typ:      domain.TypeMessageUser,
			role:     ptr(domain.RoleUser),
			text:     firstString(raw, "prompt", "message", "text"),
		}

	case claudePreToolUse:
		return mapping{
			category:  domain.CategoryTool,
			typ:       domain.TypeToolStart,
			toolName:  toolNameOf(raw),
			toolInput: toolInputOf(raw),
			meta:      copyKeys(nil, raw, "tool_use_id"),
		}

	case claudePostToolUse:
		return mapping{
			category:   domain.CategoryTool,
			typ:        domain.TypeToolEnd,
			toolName:   toolNameOf(raw),
			toolInput:  toolInputOf(raw),
			toolOutput: Truncate(toolOutputOf(raw)),
			meta:       copyKeys(nil, raw, "tool_use_id"),
		}

	case claudeError:
		return mapping{
			category: domain.CategoryError,
			typ:      domain.TypeError,
			err:      errorTextOf(raw),
		}

	case claudeNotification:
		return mapping{
			category: domain.CategorySystem,
			typ:      domain.TypeNotification,
			text:     firstString(raw, "message", "text"),
			meta:     copyKeys(nil, raw, "title"),
		}
	}

	return unrecognized(tag, raw)
}
