// Package otlp receives Claude Code's native OpenTelemetry log export and
// turns its events into ingestion payloads shaped like hook events.
package otlp

import (
	"fmt"
	"strings"

	collectorlogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	logsv1 "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/emiliopalmerini/agentflow/internal/domain"
)

// Claude Code log event names.
const (
	eventUserPrompt   = "claude_code.user_prompt"
	eventToolDecision = "claude_code.tool_decision"
	eventToolResult   = "claude_code.tool_result"
	eventAPIError     = "claude_code.api_error"
)

// Payloads converts the log records of req into payloads. Records of other
// events, or without a session id, are skipped and counted.
func Payloads(req *collectorlogs.ExportLogsServiceRequest) ([]domain.Payload, int) {
	var (
		payloads []domain.Payload
		skipped  int
	)
	for _, rl := range req.GetResourceLogs() {
		resource := attributes(rl.GetResource().GetAttributes())
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				p, ok := recordPayload(resource, lr)
				if !ok {
					skipped++
					continue
				}
				payloads = append(payloads, p)
			}
		}
	}
	return payloads, skipped
}

func recordPayload(resource map[string]any, lr *logsv1.LogRecord) (domain.Payload, bool) {
	attrs := attributes(lr.GetAttributes())
	lookup := func(key string) string {
		if s := stringAttr(attrs, key); s != "" {
			return s
		}
		return stringAttr(resource, key)
	}

	name := lookup("event.name")
	if name == "" {
		name = lr.GetBody().GetStringValue()
	}
	sessionID := lookup("session.id")
	if sessionID == "" {
		return domain.Payload{}, false
	}

	event := map[string]any{"session_id": sessionID}
	if ts := lookup("event.timestamp"); ts != "" {
		event["timestamp"] = ts
	} else if ns := recordTime(lr); ns > 0 {
		event["timestamp"] = float64(ns / 1e6)
	}

	tool := stringAttr(attrs, "tool_name")
	switch name {
	case eventUserPrompt:
		event["hook_event_name"] = "UserPromptSubmit"
		if prompt := stringAttr(attrs, "prompt"); prompt != "" {
			event["prompt"] = prompt
		}

	case eventToolDecision:
		decision := stringAttr(attrs, "decision")
		if decision == "accept" {
			event["hook_event_name"] = "PreToolUse"
			event["tool_name"] = tool
			break
		}
		event["hook_event_name"] = "Notification"
		event["message"] = strings.TrimSpace(fmt.Sprintf("%s %s", tool, decision))

	case eventToolResult:
		event["hook_event_name"] = "PostToolUse"
		event["tool_name"] = tool
		if stringAttr(attrs, "success") == "false" {
			msg := stringAttr(attrs, "error")
			if msg == "" {
				msg = "tool failed"
			}
			event["tool_response"] = msg
		}

	case eventAPIError:
		event["hook_event_name"] = "Error"
		event["error"] = stringAttr(attrs, "error")

	default:
		return domain.Payload{}, false
	}

	return domain.Payload{
		Source:    string(domain.SourceClaudeCode),
		SessionID: sessionID,
		Event:     event,
		User:      userInfo(lookup),
	}, true
}

func userInfo(lookup func(string) string) map[string]any {
	info := map[string]any{}
	if email := lookup("user.email"); email != "" {
		info["email"] = email
	}
	if account := lookup("user.account_uuid"); account != "" {
		info["accountId"] = account
	}
	if len(info) == 0 {
		return nil
	}
	return info
}

func recordTime(lr *logsv1.LogRecord) uint64 {
	if ns := lr.GetTimeUnixNano(); ns > 0 {
		return ns
	}
	return lr.GetObservedTimeUnixNano()
}

func attributes(kvs []*commonv1.KeyValue) map[string]any {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		switch v := kv.GetValue().GetValue().(type) {
		case *commonv1.AnyValue_StringValue:
			out[kv.GetKey()] = v.StringValue
		case *commonv1.AnyValue_IntValue:
			out[kv.GetKey()] = v.IntValue
		case *commonv1.AnyValue_DoubleValue:
			out[kv.GetKey()] = v.DoubleValue
		case *commonv1.AnyValue_BoolValue:
			out[kv.GetKey()] = v.BoolValue
		}
	}
	return out
}

// stringAttr renders any scalar attribute as a string. Claude Code sends most
// numbers and booleans as strings already.
func stringAttr(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
