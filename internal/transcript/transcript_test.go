package transcript

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTranscript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test transcript: %v", err)
	}
	return path
}

func TestLastAssistantText(t *testing.T) {
	path := writeTranscript(t, `{"type":"user","message":{"role":"user","content":[{"type":"text","text":"Hello"}]}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Let me search."},{"type":"tool_use","id":"t1","name":"Grep","input":{}}]}}
{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"found"}]}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Found it."},{"type":"text","text":"The bug is in main.go."}]}}
{"type":"user","message":{"role":"user","content":"thanks"}}
`)

	got := LastAssistantText(path)
	if got == nil {
		t.Fatal("expected text, got nil")
	}
	if want := "Found it.\nThe bug is in main.go."; *got != want {
		t.Errorf("got %q, want %q", *got, want)
	}
}

func TestLastAssistantText_SkipsToolOnlyEntries(t *testing.T) {
	path := writeTranscript(t, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Running tests."}]}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"go test"}}]}}
`)

	got := LastAssistantText(path)
	if got == nil || *got != "Running tests." {
		t.Errorf("got %v, want %q", got, "Running tests.")
	}
}

func TestLastAssistantText_SkipsMalformedLines(t *testing.T) {
	path := writeTranscript(t, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"ok"}]}}
not json at all
{"type":"assistant","message":{"role":"assistant","content":"plain string"}}
`)

	got := LastAssistantText(path)
	if got == nil || *got != "ok" {
		t.Errorf("got %v, want %q", got, "ok")
	}
}

func TestLastAssistantText_FailuresYieldNil(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"missing file", filepath.Join(t.TempDir(), "missing.jsonl")},
		{"directory", t.TempDir()},
		{"no assistant entries", writeTranscript(t, `{"type":"user","message":{"role":"user","content":"hi"}}`+"\n")},
		{"empty file", writeTranscript(t, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastAssistantText(tt.path); got != nil {
				t.Errorf("expected nil, got %q", *got)
			}
		})
	}
}

func TestReader(t *testing.T) {
	path := writeTranscript(t, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"done"}]}}`)

	got := NewReader().LastAssistantText(path)
	if got == nil || *got != "done" {
		t.Errorf("got %v, want %q", got, "done")
	}
}

func TestLastAssistantText_SkipsOversizedLines(t *testing.T) {
	huge := `{"type":"user","message":{"role":"user","content":"` + strings.Repeat("x", maxLineBytes) + `"}}`
	path := writeTranscript(t, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"before"}]}}
`+huge+`
{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"after"}]}}
`)

	got := LastAssistantText(path)
	if got == nil || *got != "after" {
		t.Errorf("got %v, want %q", got, "after")
	}
}

func TestEachLine(t *testing.T) {
	input := "short\n\n" + strings.Repeat("y", 40) + "\nlast\r\n" + strings.Repeat("z", 11) + "\nend"

	var got []string
	err := eachLine(bufio.NewReaderSize(strings.NewReader(input), 16), 10, func(line []byte) {
		got = append(got, string(line))
	})
	if err != nil {
		t.Fatalf("eachLine: %v", err)
	}

	want := []string{"short", "last", "end"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}
