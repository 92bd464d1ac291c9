package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Producers are not bound to a schema, so every extraction point tries a list
// of candidate keys in priority order and takes the first defined one.
// Defined means present and non-null; for strings it also means non-empty.

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) *string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if sub, ok := m[k].(map[string]any); ok {
			return sub
		}
	}
	return nil
}

// dig walks nested objects; any missing or non-object step yields nil.
func dig(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

func digString(m map[string]any, path ...string) *string {
	if s, ok := dig(m, path...).(string); ok && s != "" {
		return &s
	}
	return nil
}

func orString(candidates ...*string) *string {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

// Field aliases shared by every source.

func rawType(m map[string]any, keys ...string) string {
	if s := firstString(m, keys...); s != nil {
		return *s
	}
	return ""
}

func toolNameOf(m map[string]any) *string {
	return firstString(m, "tool_name", "toolName", "tool", "name")
}

func toolInputOf(m map[string]any) any {
	return first(m, "tool_input", "toolInput", "input", "args", "arguments")
}

func toolOutputOf(m map[string]any) any {
	return first(m, "tool_response", "toolResponse", "tool_output", "toolOutput", "output", "result")
}

// errorTextOf accepts either a plain string or an error object shaped like
// {message}, {data: {message}} or {name}.
func errorTextOf(m map[string]any) *string {
	for _, k := range []string{"error", "err", "message", "error_message", "errorMessage"} {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return &v
			}
		case map[string]any:
			if s := orString(firstString(v, "message"), digString(v, "data", "message"), firstString(v, "name")); s != nil {
				return s
			}
		}
	}
	return nil
}

// timestampOf returns epoch milliseconds from the first alias that parses,
// or from now when none does. Numbers below 1e12 are taken as seconds.
func timestampOf(m map[string]any, now func() time.Time) int64 {
	for _, k := range []string{"timestamp", "ts", "time", "created_at", "createdAt"} {
		if ms, ok := parseTimestamp(m[k]); ok {
			return ms
		}
	}
	return now().UnixMilli()
}

func parseTimestamp(v any) (int64, bool) {
	switch v := v.(type) {
	case float64:
		return epochMillis(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return epochMillis(f)
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UnixMilli(), true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return epochMillis(f)
		}
	}
	return 0, false
}

func epochMillis(f float64) (int64, bool) {
	if f <= 0 || f >= math.MaxInt64 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 1e12 {
		return int64(f * 1000), true
	}
	return int64(f), true
}
