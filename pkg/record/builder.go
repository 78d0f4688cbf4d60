package record

import (
	"time"

	"promptlens-dev/promptlens/pkg/stream"
)

// Kind distinguishes input entries from output entries.
type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// TimestampFormat is the layout of the entry timestamp (RFC 3339, UTC, microseconds).
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

// Entry is one persisted log line. Exactly one of Input and Output is set.
type Entry struct {
	Timestamp string        `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
	Input     *InputRecord  `json:"input,omitempty"`
	Output    *OutputRecord `json:"output,omitempty"`
	Truncated bool          `json:"truncated"`
}

// Kind reports whether the entry records input or output.
func (e *Entry) Kind() Kind {
	if e.Output != nil {
		return KindOutput
	}
	return KindInput
}

// Type returns the request type recorded in the entry.
func (e *Entry) Type() string {
	if e.Output != nil {
		return e.Output.Type
	}
	if e.Input != nil {
		return e.Input.Type
	}
	return ""
}

// InputRecord is the prompt side of a call.
type InputRecord struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// OutputRecord is the assistant side of a call.
type OutputRecord struct {
	Role      string           `json:"role"`
	Type      string           `json:"type"`
	Content   any              `json:"content"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	Refusal   string           `json:"refusal,omitempty"`
}

// ToolCallRecord is a reconstructed tool call in OpenAI wire shape.
type ToolCallRecord struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function FunctionRecord `json:"function"`
}

// FunctionRecord holds the function name and its complete argument text.
type FunctionRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Request describes the client side of a call.
type Request struct {
	// Path is the request path used for classification.
	Path string

	// Body is the decoded request body; nil when it was not a JSON object.
	Body Body

	// RequestID correlates the entries of one call.
	RequestID string

	// Failed is set when forwarding to the upstream failed.
	Failed bool
}

// Output is the response side of a call, resolved to loggable content.
type Output struct {
	Content   any
	ToolCalls []stream.ToolCall
	Refusal   string

	// Truncated is set when the response was cut short or only partly decoded.
	Truncated bool
}

// OutputFromMessage converts a reconstructed message to an Output.
func OutputFromMessage(msg stream.Message) *Output {
	return &Output{
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
		Refusal:   msg.Refusal,
		Truncated: msg.Truncated,
	}
}

// OutputFromBody converts a complete JSON response of a non-completion
// request type to an Output.
func OutputFromBody(path string, body Body) *Output {
	return &Output{Content: ExtractOutput(path, body)}
}

// Builder turns calls into log entries.
type Builder struct {
	// MaxPromptBytes bounds the serialized content of each entry. It is at
	// least MinContentBytes.
	MaxPromptBytes int

	// IncludeRequestID adds the request id to every entry.
	IncludeRequestID bool

	// Now returns the entry timestamp; defaults to time.Now.
	Now func() time.Time
}

// NewBuilder creates a builder with the given content budget.
func NewBuilder(maxPromptBytes int, includeRequestID bool) *Builder {
	return &Builder{
		MaxPromptBytes:   maxPromptBytes,
		IncludeRequestID: includeRequestID,
		Now:              time.Now,
	}
}

// Build returns the entries for one call: none when the request body was not
// a JSON object, the input entry alone when out is nil, and input followed
// by output otherwise.
func (b *Builder) Build(req Request, out *Output) []Entry {
	if req.Body == nil {
		return nil
	}

	ts := b.timestamp()
	typ := Classify(req.Path, req.Body)

	var prompt any
	if raw := ExtractPrompt(req.Path, req.Body); raw != nil {
		prompt = raw
	}
	content, truncated := limitContent(prompt, b.MaxPromptBytes)

	entries := make([]Entry, 0, 2)
	entries = append(entries, Entry{
		Timestamp: ts,
		RequestID: b.requestID(req),
		Input: &InputRecord{
			Role:    "user",
			Type:    typ,
			Content: content,
		},
		Truncated: truncated || req.Failed,
	})

	if out == nil {
		return entries
	}

	content, truncated = limitContent(out.Content, b.MaxPromptBytes)
	output := &OutputRecord{
		Role:    "assistant",
		Type:    typ,
		Content: content,
		Refusal: out.Refusal,
	}
	incomplete := false
	for _, tc := range out.ToolCalls {
		incomplete = incomplete || tc.Incomplete
		output.ToolCalls = append(output.ToolCalls, ToolCallRecord{
			ID:   tc.ID,
			Type: tc.Type,
			Function: FunctionRecord{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}

	entries = append(entries, Entry{
		Timestamp: ts,
		RequestID: b.requestID(req),
		Output:    output,
		Truncated: truncated || out.Truncated || incomplete,
	})

	return entries
}

func (b *Builder) timestamp() string {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return now().UTC().Format(TimestampFormat)
}

func (b *Builder) requestID(req Request) string {
	if !b.IncludeRequestID {
		return ""
	}
	return req.RequestID
}

// Marshal encodes an entry the way the log writer does, without HTML escaping.
func Marshal(e Entry) ([]byte, error) {
	return serialize(e)
}
