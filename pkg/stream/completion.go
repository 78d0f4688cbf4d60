package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type completionBody struct {
	Choices []struct {
		Message *struct {
			Content   json.RawMessage `json:"content"`
			Refusal   *string         `json:"refusal"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string          `json:"name"`
					Arguments json.RawMessage `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		Text         *string `json:"text"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error json.RawMessage `json:"error"`
}

// DecodeCompletion reads a complete (non-streaming) chat or text completion
// body into a Message. Only the first choice is considered.
func DecodeCompletion(body []byte) (Message, error) {
	var resp completionBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return Message{}, fmt.Errorf("failed to decode completion body: %w", err)
	}

	var msg Message
	if m, ok := errorMessage(resp.Error); ok {
		msg.Err = &UpstreamEventError{Message: m}
	}

	if len(resp.Choices) == 0 {
		return msg, nil
	}

	choice := resp.Choices[0]
	msg.Ended = true
	if choice.FinishReason != nil {
		msg.FinishReason = *choice.FinishReason
	}
	if choice.Text != nil {
		msg.Content = *choice.Text
	}

	if m := choice.Message; m != nil {
		msg.Content = contentText(m.Content)
		if m.Refusal != nil {
			msg.Refusal = *m.Refusal
		}
		for i, tc := range m.ToolCalls {
			call := ToolCall{
				ID:        tc.ID,
				Type:      tc.Type,
				Name:      tc.Function.Name,
				Arguments: argumentsText(tc.Function.Arguments),
			}
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%d", i)
				call.Incomplete = true
			}
			if call.Type == "" {
				call.Type = "function"
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}

	return msg, nil
}

// contentText flattens message content, which is a string, null, or an
// array of typed parts.
func contentText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Text)
		}
		return b.String()
	}

	return string(raw)
}

// argumentsText returns tool call arguments as text. Some upstreams send an
// object instead of the encoded string.
func argumentsText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
