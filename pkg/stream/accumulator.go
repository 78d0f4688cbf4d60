package stream

import (
	"fmt"
	"sort"
	"strings"
)

// ToolCall is a tool call reconstructed from stream fragments.
type ToolCall struct {
	ID        string
	Type      string
	Name      string
	Arguments string

	// Incomplete is set when the stream never announced an id for the call
	// (the id is then synthesized from the index) or when the stream stopped
	// before the call was closed.
	Incomplete bool
}

// Message is the frozen result of accumulating one response.
type Message struct {
	Content      string
	Refusal      string
	ToolCalls    []ToolCall
	FinishReason string

	// Ended reports that the upstream sent an explicit end marker or finish reason.
	Ended bool

	// Truncated reports that the reconstruction is known to be incomplete.
	Truncated bool

	// Err is the first error that caused truncation, if any.
	Err error
}

type callState struct {
	id     string
	typ    string
	name   string
	args   strings.Builder
	closed bool
}

// Accumulator folds deltas into a Message. It is owned by exactly one
// relay for the lifetime of one request and does no locking.
type Accumulator struct {
	content strings.Builder
	refusal strings.Builder
	calls   map[int]*callState

	finishReason string
	ended        bool
	truncated    bool
	err          error

	frozen *Message
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[int]*callState)}
}

// Apply folds one delta into the accumulated state.
// It is a no-op once Finalize has been called.
func (a *Accumulator) Apply(d Delta) {
	if a.frozen != nil {
		return
	}

	switch d.Kind {
	case DeltaText:
		a.content.WriteString(d.Text)

	case DeltaRefusal:
		a.refusal.WriteString(d.Text)

	case DeltaToolCallStart:
		call := a.call(d.Index)
		if call.id == "" {
			call.id = d.ID
		}
		if call.typ == "" {
			call.typ = d.Type
		}
		if call.name == "" {
			call.name = d.Name
		}

	case DeltaToolCallArguments:
		a.call(d.Index).args.WriteString(d.Arguments)

	case DeltaToolCallEnd:
		if d.Index == AllCalls {
			for _, call := range a.calls {
				call.closed = true
			}
			return
		}
		a.call(d.Index).closed = true

	case DeltaFinish:
		a.finishReason = d.FinishReason
		a.ended = true

	case DeltaStreamEnd:
		a.ended = true

	case DeltaError:
		a.MarkTruncated(&UpstreamEventError{Message: d.Message})
	}
}

// Ended reports whether an end marker or finish reason has been applied.
func (a *Accumulator) Ended() bool {
	return a.ended
}

// MarkTruncated records that part of the response was lost or could not be
// decoded. The first error is kept.
func (a *Accumulator) MarkTruncated(err error) {
	if a.frozen != nil {
		return
	}
	a.truncated = true
	if a.err == nil {
		a.err = err
	}
}

// Finalize freezes the accumulated state and returns the message.
// Repeated calls return the same message.
func (a *Accumulator) Finalize() Message {
	if a.frozen != nil {
		return *a.frozen
	}

	msg := Message{
		Content:      a.content.String(),
		Refusal:      a.refusal.String(),
		FinishReason: a.finishReason,
		Ended:        a.ended,
		Truncated:    a.truncated,
		Err:          a.err,
	}

	if len(a.calls) > 0 {
		indexes := make([]int, 0, len(a.calls))
		for i := range a.calls {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)

		msg.ToolCalls = make([]ToolCall, 0, len(indexes))
		for _, i := range indexes {
			call := a.calls[i]
			tc := ToolCall{
				ID:        call.id,
				Type:      call.typ,
				Name:      call.name,
				Arguments: call.args.String(),
			}
			if tc.ID == "" {
				tc.ID = fmt.Sprintf("call_%d", i)
				tc.Incomplete = true
			}
			if !call.closed && !a.ended {
				tc.Incomplete = true
			}
			if tc.Type == "" {
				tc.Type = "function"
			}
			msg.ToolCalls = append(msg.ToolCalls, tc)
		}
	}

	a.frozen = &msg
	a.calls = nil
	return msg
}

func (a *Accumulator) call(index int) *callState {
	call, ok := a.calls[index]
	if !ok {
		call = &callState{}
		a.calls[index] = call
	}
	return call
}
