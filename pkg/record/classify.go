package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Request types reported in log entries.
const (
	TypeChat       = "chat"
	TypeCompletion = "completion"
	TypeEmbedding  = "embedding"
	TypeImage      = "image"
	TypeResponse   = "response"
	TypeUnknown    = "unknown"
)

// Body is a request or response body decoded one level deep. Values keep
// their original encoding so logged content matches what the client sent.
type Body map[string]json.RawMessage

// DecodeBody decodes data as a JSON object. It returns nil when data is
// empty, not valid UTF-8, or not an object.
func DecodeBody(data []byte) Body {
	if len(data) == 0 || !utf8.Valid(data) {
		return nil
	}
	var body Body
	if err := json.Unmarshal(data, &body); err != nil {
		return nil
	}
	return body
}

// Bool reports whether key holds the JSON literal true.
func (b Body) Bool(key string) bool {
	raw, ok := b[key]
	if !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return v
}

// String returns the string value stored at key, or "".
func (b Body) String(key string) string {
	raw, ok := b[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Classify maps a request path to the type recorded in log entries.
// Requests without a JSON object body are always unknown.
func Classify(path string, body Body) string {
	if body == nil {
		return TypeUnknown
	}

	lowered := strings.ToLower(path)
	switch {
	case strings.Contains(lowered, "/chat/completions"):
		return TypeChat
	case strings.Contains(lowered, "/completions"):
		return TypeCompletion
	case strings.Contains(lowered, "/embeddings"):
		return TypeEmbedding
	case strings.Contains(lowered, "/images"):
		return TypeImage
	case strings.Contains(lowered, "/responses"):
		return TypeResponse
	}
	return TypeUnknown
}

// ExtractPrompt returns the part of a request body logged as input content.
func ExtractPrompt(path string, body Body) json.RawMessage {
	if body == nil {
		return nil
	}

	switch Classify(path, body) {
	case TypeChat:
		return body["messages"]
	case TypeResponse:
		return firstKey(body, "input", "messages")
	case TypeCompletion, TypeImage:
		return body["prompt"]
	case TypeEmbedding:
		return body["input"]
	}
	return firstKey(body, "messages", "input", "prompt")
}

// ExtractOutput returns the loggable content of a complete JSON response for
// request types that are not reconstructed as a completion message.
func ExtractOutput(path string, body Body) any {
	if body == nil {
		return nil
	}

	switch Classify(path, body) {
	case TypeEmbedding:
		var resp struct {
			Data []struct {
				Embedding []json.RawMessage `json:"embedding"`
			} `json:"data"`
		}
		if err := remarshal(body, &resp); err == nil && len(resp.Data) > 0 {
			return fmt.Sprintf("embedding with %d dimensions", len(resp.Data[0].Embedding))
		}
		return nil

	case TypeImage:
		var resp struct {
			Data []struct {
				URL           *string `json:"url"`
				RevisedPrompt *string `json:"revised_prompt"`
			} `json:"data"`
		}
		if err := remarshal(body, &resp); err == nil && len(resp.Data) > 0 {
			return map[string]*string{
				"url":            resp.Data[0].URL,
				"revised_prompt": resp.Data[0].RevisedPrompt,
			}
		}
		return nil
	}

	if raw := firstKey(body, "content", "text", "output", "result"); raw != nil {
		return raw
	}
	return nil
}

func firstKey(body Body, keys ...string) json.RawMessage {
	for _, k := range keys {
		if raw, ok := body[k]; ok {
			return raw
		}
	}
	return nil
}

func remarshal(body Body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
