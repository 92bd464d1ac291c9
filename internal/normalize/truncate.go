package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf16"
)

// MaxToolOutputChars bounds the serialized size of a stored tool output.
const MaxToolOutputChars = 10000

// Truncate bounds large tool outputs. Nil passes through. Strings are measured
// as-is, anything else by its JSON encoding without HTML escaping; values
// within the limit are returned unchanged. Length is counted in UTF-16 code
// units, the unit web clients measure strings in. Oversized values become a
// string of the first MaxToolOutputChars units followed by a marker carrying
// the original length, so a truncated non-string loses its type.
func Truncate(v any) any {
	if v == nil {
		return nil
	}

	s, ok := v.(string)
	if !ok {
		s = encode(v)
	}

	n := utf16Len(s)
	if n <= MaxToolOutputChars {
		return v
	}

	return prefixUnits(s, MaxToolOutputChars) + fmt.Sprintf("... [truncated, %d chars total]", n)
}

func encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// prefixUnits returns the longest prefix of s within limit UTF-16 units. A
// surrogate pair straddling the limit is dropped whole.
func prefixUnits(s string, limit int) string {
	n := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if n+w > limit {
			return s[:i]
		}
		n += w
	}
	return s
}
