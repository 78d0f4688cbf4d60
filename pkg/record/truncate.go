package record

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// MinContentBytes is the smallest content budget a truncated entry fits
// in: the encoded empty string.
const MinContentBytes = len(`""`)

// serialize encodes v compactly without HTML escaping, matching how the
// entry is written to disk.
func serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// limitContent returns content unchanged when its serialization fits in
// maxBytes. Otherwise it returns a string holding the longest prefix of the
// text form whose JSON encoding fits in maxBytes, and true.
//
// The text form of a string is the string itself; any other value is cut
// from its compact JSON serialization. The prefix always ends on a rune
// boundary. Budgets below MinContentBytes are raised to it.
func limitContent(content any, maxBytes int) (any, bool) {
	if content == nil {
		return nil, false
	}
	maxBytes = max(maxBytes, MinContentBytes)

	encoded, err := serialize(content)
	if err != nil {
		return nil, true
	}
	if len(encoded) <= maxBytes {
		return content, false
	}

	text, ok := content.(string)
	if !ok {
		text = string(encoded)
	}
	return cutEncoded(text, maxBytes), true
}

// cutEncoded returns the longest rune-aligned prefix of s whose JSON string
// encoding, quotes included, is at most maxBytes long. Escape sizes are
// never underestimated.
func cutEncoded(s string, maxBytes int) string {
	budget := maxBytes - 2 // surrounding quotes
	if budget <= 0 {
		return ""
	}

	used := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		cost := encodedRuneLen(r, size)
		if used+cost > budget {
			return s[:i]
		}
		used += cost
		i += size
	}
	return s
}

func encodedRuneLen(r rune, size int) int {
	switch {
	case r == utf8.RuneError && size == 1:
		return len(`\ufffd`)
	case r == '"' || r == '\\' || r == '\n' || r == '\r' || r == '\t':
		return 2
	case r < 0x20 || r == '\u2028' || r == '\u2029':
		return len(`\u0000`)
	}
	return size
}
