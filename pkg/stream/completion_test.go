package stream

import "testing"

func TestDecodeCompletion(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		content   string
		toolCalls []ToolCall
		finish    string
		wantErr   bool
	}{
		{
			name:    "chat text",
			body:    `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there!"},"finish_reason":"stop"}]}`,
			content: "Hi there!",
			finish:  "stop",
		},
		{
			name: "chat tool call with null content",
			body: `{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[{"id":"call_abc123","type":"function","function":{"name":"get_weather","arguments":"{\"location\": \"Tokyo\"}"}}]},"finish_reason":"tool_calls"}]}`,
			toolCalls: []ToolCall{{
				ID:        "call_abc123",
				Type:      "function",
				Name:      "get_weather",
				Arguments: `{"location": "Tokyo"}`,
			}},
			finish: "tool_calls",
		},
		{
			name:    "content parts",
			body:    `{"choices":[{"message":{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}}]}`,
			content: "ab",
		},
		{
			name:    "legacy completion",
			body:    `{"choices":[{"text":"done","finish_reason":"length"}]}`,
			content: "done",
			finish:  "length",
		},
		{
			name: "object arguments",
			body: `{"choices":[{"message":{"tool_calls":[{"id":"c1","function":{"name":"f","arguments":{"x":1}}}]}}]}`,
			toolCalls: []ToolCall{{
				ID:        "c1",
				Type:      "function",
				Name:      "f",
				Arguments: `{"x":1}`,
			}},
		},
		{
			name:    "not json",
			body:    `<html>bad gateway</html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeCompletion([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Content != tt.content {
				t.Errorf("expected content %q, got %q", tt.content, msg.Content)
			}
			if msg.FinishReason != tt.finish {
				t.Errorf("expected finish %q, got %q", tt.finish, msg.FinishReason)
			}
			if len(msg.ToolCalls) != len(tt.toolCalls) {
				t.Fatalf("expected %d tool calls, got %d", len(tt.toolCalls), len(msg.ToolCalls))
			}
			for i := range tt.toolCalls {
				if msg.ToolCalls[i] != tt.toolCalls[i] {
					t.Errorf("tool call %d: expected %+v, got %+v", i, tt.toolCalls[i], msg.ToolCalls[i])
				}
			}
		})
	}
}

func TestDecodeCompletion_ErrorBody(t *testing.T) {
	msg, err := DecodeCompletion([]byte(`{"error":{"message":"invalid model","type":"invalid_request_error"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Err == nil || msg.Err.Error() != "upstream error: invalid model" {
		t.Errorf("expected upstream error, got %v", msg.Err)
	}
}
