package domain

import (
	"encoding/json"
	"fmt"
)

// HookEventBase contains fields common to all hook events from Claude Code.
type HookEventBase struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	PermissionMode string `json:"permission_mode"`
	HookEventName  string `json:"hook_event_name"`
}

// HookEvent is a Claude Code hook event as read from stdin: the typed common
// fields plus the untouched raw object that gets forwarded for normalization.
type HookEvent struct {
	HookEventBase
	Raw map[string]any
}

// ParseHookEvent parses raw hook JSON. Unknown hook names are not an error;
// only input that is not a JSON object, or lacks a session id, is rejected.
func ParseHookEvent(data []byte) (*HookEvent, error) {
	var base HookEventBase
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse hook event: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse hook event: %w", err)
	}

	if base.SessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}

	return &HookEvent{HookEventBase: base, Raw: raw}, nil
}

// Payload wraps the hook event for the ingestion boundary.
func (e *HookEvent) Payload(user, git map[string]any) Payload {
	return Payload{
		Source:    string(SourceClaudeCode),
		SessionID: e.SessionID,
		Event:     e.Raw,
		User:      user,
		Git:       git,
	}
}
