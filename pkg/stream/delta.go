package stream

// DeltaKind identifies the variant carried by a Delta.
type DeltaKind int

const (
	// DeltaText is a fragment of assistant text.
	DeltaText DeltaKind = iota

	// DeltaRefusal is a fragment of a refusal message.
	DeltaRefusal

	// DeltaToolCallStart announces the id, type or function name of a tool call.
	DeltaToolCallStart

	// DeltaToolCallArguments is a fragment of a tool call's argument text.
	DeltaToolCallArguments

	// DeltaToolCallEnd closes a tool call. Index -1 closes every open call.
	DeltaToolCallEnd

	// DeltaFinish carries the upstream finish_reason.
	DeltaFinish

	// DeltaStreamEnd is the explicit end-of-stream marker ("data: [DONE]").
	DeltaStreamEnd

	// DeltaError is an error event sent by the upstream inside the stream.
	DeltaError
)

// String returns the kind name used in diagnostics.
func (k DeltaKind) String() string {
	switch k {
	case DeltaText:
		return "text"
	case DeltaRefusal:
		return "refusal"
	case DeltaToolCallStart:
		return "tool_call_start"
	case DeltaToolCallArguments:
		return "tool_call_arguments"
	case DeltaToolCallEnd:
		return "tool_call_end"
	case DeltaFinish:
		return "finish"
	case DeltaStreamEnd:
		return "stream_end"
	case DeltaError:
		return "error"
	default:
		return "unknown"
	}
}

// AllCalls is the tool call index that addresses every open call.
const AllCalls = -1

// Delta is one decoded increment of a streamed response.
// Only the fields relevant to Kind are populated.
type Delta struct {
	Kind DeltaKind

	// Text holds the fragment for DeltaText and DeltaRefusal.
	Text string

	// Index is the tool call index announced by the stream.
	Index int

	// ID, Type and Name are set on DeltaToolCallStart when present.
	ID   string
	Type string
	Name string

	// Arguments is the fragment for DeltaToolCallArguments.
	Arguments string

	// FinishReason is set on DeltaFinish.
	FinishReason string

	// Message is the upstream error message for DeltaError.
	Message string
}
