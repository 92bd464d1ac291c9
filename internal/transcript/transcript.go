// Package transcript reads Claude Code session transcripts to recover the
// assistant reply that Stop hooks do not always carry inline.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// Entry is one line of a Claude Code JSONL transcript. Content stays raw
// because user entries may carry a plain string instead of blocks.
type Entry struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}

type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Reader implements the transcript backfill lookup against the local
// filesystem.
type Reader struct{}

// NewReader returns a filesystem transcript reader.
func NewReader() *Reader {
	return &Reader{}
}

// LastAssistantText implements ports.TranscriptReader.
func (Reader) LastAssistantText(path string) *string {
	return LastAssistantText(path)
}

// maxLineBytes bounds a single transcript line. Longer lines, such as
// entries with inline images, are skipped rather than failing the lookup.
const maxLineBytes = 10 * 1024 * 1024

// LastAssistantText returns the text of the most recent assistant entry in
// the transcript at path, joining its text blocks with newlines. Entries
// with no text blocks are skipped. Any read failure yields nil.
func LastAssistantText(path string) *string {
	if path == "" {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var last *string
	err = eachLine(bufio.NewReaderSize(file, 64*1024), maxLineBytes, func(line []byte) {
		if text, ok := assistantText(line); ok {
			last = &text
		}
	})
	if err != nil {
		return nil
	}
	return last
}

// eachLine calls fn with every non-empty line of at most limit bytes, without
// its line ending. The slice is only valid for the duration of the call.
func eachLine(r *bufio.Reader, limit int, fn func([]byte)) error {
	var (
		line      []byte
		oversized bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversized {
			line = append(line, chunk...)
			if len(bytes.TrimRight(line, "\r\n")) > limit {
				oversized = true
				line = line[:0]
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}

		if !oversized {
			if l := bytes.TrimRight(line, "\r\n"); len(l) > 0 {
				fn(l)
			}
		}
		line = line[:0]
		oversized = false

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func assistantText(line []byte) (string, bool) {
	var entry Entry
	if err := json.Unmarshal(line, &entry); err != nil {
		return "", false
	}
	if entry.Type != "assistant" || entry.Message == nil {
		return "", false
	}

	var blocks []Content
	if err := json.Unmarshal(entry.Message.Content, &blocks); err != nil {
		return "", false
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
