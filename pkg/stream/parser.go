package stream

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	doneMarker = []byte("[DONE]")
	dataPrefix = []byte("data:")
)

// Parser decodes server-sent events into deltas. Input may be split across
// calls at any byte; incomplete events are kept until a later Feed or Flush.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	buf []byte
}

// NewParser creates an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the pending input and decodes every complete event.
//
// Events that fail to decode are reported as a joined error of
// *MalformedFrameError values; deltas from the other events in the same call
// are still returned and the parser stays usable.
func (p *Parser) Feed(chunk []byte) ([]Delta, error) {
	p.buf = append(p.buf, chunk...)
	return p.drain(false)
}

// Flush decodes an event left without its terminating blank line, which
// happens when the upstream closes mid-event.
func (p *Parser) Flush() ([]Delta, error) {
	return p.drain(true)
}

// Pending returns the number of buffered bytes not yet decoded.
func (p *Parser) Pending() int {
	return len(p.buf)
}

func (p *Parser) drain(flush bool) ([]Delta, error) {
	var (
		deltas []Delta
		errs   []error
	)

	for {
		event, rest, ok := nextEvent(p.buf, flush)
		if !ok {
			break
		}
		p.buf = rest

		ds, err := decodeEvent(event)
		deltas = append(deltas, ds...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(p.buf) == 0 {
		p.buf = nil
	}

	return deltas, errors.Join(errs...)
}

// nextEvent splits off the first event terminated by a blank line.
func nextEvent(buf []byte, flush bool) (event, rest []byte, ok bool) {
	lf := bytes.Index(buf, []byte("\n\n"))
	crlf := bytes.Index(buf, []byte("\r\n\r\n"))

	switch {
	case lf >= 0 && (crlf < 0 || lf < crlf):
		return buf[:lf], buf[lf+2:], true
	case crlf >= 0:
		return buf[:crlf], buf[crlf+4:], true
	}

	if flush {
		trimmed := bytes.TrimSpace(buf)
		if len(trimmed) > 0 {
			return trimmed, nil, true
		}
	}
	return nil, buf, false
}

// decodeEvent joins the data lines of one event and decodes the payload.
func decodeEvent(event []byte) ([]Delta, error) {
	var data [][]byte

	for _, line := range bytes.Split(event, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if !bytes.HasPrefix(line, dataPrefix) {
			// comments, event:, id:, retry:
			continue
		}
		value := bytes.TrimPrefix(line, dataPrefix)
		value = bytes.TrimPrefix(value, []byte(" "))
		data = append(data, value)
	}

	if len(data) == 0 {
		return nil, nil
	}

	payload := bytes.TrimSpace(bytes.Join(data, []byte("\n")))
	if len(payload) == 0 {
		return nil, nil
	}
	if bytes.Equal(payload, doneMarker) {
		return []Delta{{Kind: DeltaStreamEnd}}, nil
	}

	return decodePayload(payload)
}

type chunkPayload struct {
	Type    string          `json:"type"`
	Choices []chunkChoice   `json:"choices"`
	Error   json.RawMessage `json:"error"`

	// Responses API events carry their text in a top-level delta.
	Delta       json.RawMessage `json:"delta"`
	OutputIndex int             `json:"output_index"`
	Item        *responseItem   `json:"item"`
	Message     string          `json:"message"`
	Response    *struct {
		Status string `json:"status"`
	} `json:"response"`
}

type chunkChoice struct {
	Index        int          `json:"index"`
	Delta        *choiceDelta `json:"delta"`
	Text         *string      `json:"text"`
	FinishReason *string      `json:"finish_reason"`
}

type choiceDelta struct {
	Content   *string            `json:"content"`
	Refusal   *string            `json:"refusal"`
	ToolCalls []toolCallFragment `json:"tool_calls"`
}

type toolCallFragment struct {
	Index    *int   `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type responseItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Name   string `json:"name"`
}

func decodePayload(payload []byte) ([]Delta, error) {
	var chunk chunkPayload
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, newMalformedFrameError(payload, err)
	}

	if msg, ok := errorMessage(chunk.Error); ok {
		return []Delta{{Kind: DeltaError, Message: msg}}, nil
	}

	if chunk.Type != "" && len(chunk.Choices) == 0 {
		return decodeResponseEvent(&chunk, payload)
	}

	if len(chunk.Choices) == 0 {
		// usage-only and keep-alive chunks
		return nil, nil
	}

	choice := chunk.Choices[0]
	var deltas []Delta

	if choice.Text != nil && *choice.Text != "" {
		deltas = append(deltas, Delta{Kind: DeltaText, Text: *choice.Text})
	}

	if d := choice.Delta; d != nil {
		if d.Content != nil && *d.Content != "" {
			deltas = append(deltas, Delta{Kind: DeltaText, Text: *d.Content})
		}
		if d.Refusal != nil && *d.Refusal != "" {
			deltas = append(deltas, Delta{Kind: DeltaRefusal, Text: *d.Refusal})
		}
		for pos, tc := range d.ToolCalls {
			index := pos
			if tc.Index != nil {
				index = *tc.Index
			}
			if tc.ID != "" || tc.Type != "" || tc.Function.Name != "" {
				deltas = append(deltas, Delta{
					Kind:  DeltaToolCallStart,
					Index: index,
					ID:    tc.ID,
					Type:  tc.Type,
					Name:  tc.Function.Name,
				})
			}
			if tc.Function.Arguments != "" {
				deltas = append(deltas, Delta{
					Kind:      DeltaToolCallArguments,
					Index:     index,
					Arguments: tc.Function.Arguments,
				})
			}
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		reason := *choice.FinishReason
		if reason == "tool_calls" || reason == "function_call" {
			deltas = append(deltas, Delta{Kind: DeltaToolCallEnd, Index: AllCalls})
		}
		deltas = append(deltas, Delta{Kind: DeltaFinish, FinishReason: reason})
	}

	return deltas, nil
}

// decodeResponseEvent handles the typed events of the Responses API stream.
func decodeResponseEvent(chunk *chunkPayload, payload []byte) ([]Delta, error) {
	switch chunk.Type {
	case "response.output_text.delta", "response.refusal.delta", "response.function_call_arguments.delta":
		var text string
		if len(chunk.Delta) > 0 {
			if err := json.Unmarshal(chunk.Delta, &text); err != nil {
				return nil, newMalformedFrameError(payload, err)
			}
		}
		if text == "" {
			return nil, nil
		}
		switch chunk.Type {
		case "response.refusal.delta":
			return []Delta{{Kind: DeltaRefusal, Text: text}}, nil
		case "response.function_call_arguments.delta":
			return []Delta{{Kind: DeltaToolCallArguments, Index: chunk.OutputIndex, Arguments: text}}, nil
		default:
			return []Delta{{Kind: DeltaText, Text: text}}, nil
		}

	case "response.output_item.added":
		if chunk.Item == nil || chunk.Item.Type != "function_call" {
			return nil, nil
		}
		return []Delta{{
			Kind:  DeltaToolCallStart,
			Index: chunk.OutputIndex,
			ID:    chunk.Item.CallID,
			Type:  "function",
			Name:  chunk.Item.Name,
		}}, nil

	case "response.output_item.done":
		if chunk.Item == nil || chunk.Item.Type != "function_call" {
			return nil, nil
		}
		return []Delta{{Kind: DeltaToolCallEnd, Index: chunk.OutputIndex}}, nil

	case "response.completed", "response.incomplete":
		reason := "stop"
		if chunk.Response != nil && chunk.Response.Status != "" {
			reason = chunk.Response.Status
		}
		return []Delta{{Kind: DeltaFinish, FinishReason: reason}}, nil

	case "error", "response.failed":
		msg := chunk.Message
		if msg == "" {
			msg = chunk.Type
		}
		return []Delta{{Kind: DeltaError, Message: msg}}, nil
	}

	return nil, nil
}

// errorMessage extracts a message from an upstream error field, which is an
// object with a message, a bare string, or absent.
func errorMessage(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, true
	}

	return string(raw), true
}
