package stream

import (
	"errors"
	"testing"
)

func feedAll(t *testing.T, events ...string) Message {
	t.Helper()

	p := NewParser()
	acc := NewAccumulator()
	for _, e := range events {
		deltas, err := p.Feed([]byte(sseEvent(e)))
		if err != nil {
			acc.MarkTruncated(err)
		}
		for _, d := range deltas {
			acc.Apply(d)
		}
	}
	return acc.Finalize()
}

func TestAccumulator_TextInArrivalOrder(t *testing.T) {
	msg := feedAll(t, helloChunk, thereChunk, stopChunk, "[DONE]")

	if msg.Content != "Hi there!" {
		t.Errorf("expected content %q, got %q", "Hi there!", msg.Content)
	}
	if len(msg.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %+v", msg.ToolCalls)
	}
	if msg.FinishReason != "stop" {
		t.Errorf("expected finish reason stop, got %q", msg.FinishReason)
	}
	if !msg.Ended || msg.Truncated {
		t.Errorf("expected ended and not truncated, got ended=%v truncated=%v", msg.Ended, msg.Truncated)
	}
}

// TestAccumulator_ToolCallArgumentsAcrossFragments verifies fragments are concatenated, not parsed.
func TestAccumulator_ToolCallArgumentsAcrossFragments(t *testing.T) {
	msg := feedAll(t, toolStart, toolArgs1, toolArgs2, toolArgs3, toolFinished, "[DONE]")

	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}

	want := ToolCall{
		ID:        "call_abc123",
		Type:      "function",
		Name:      "get_weather",
		Arguments: `{"location": "Tokyo"}`,
	}
	if msg.ToolCalls[0] != want {
		t.Errorf("expected %+v, got %+v", want, msg.ToolCalls[0])
	}
}

func TestAccumulator_ToolCallsOrderedByIndex(t *testing.T) {
	acc := NewAccumulator()
	acc.Apply(Delta{Kind: DeltaToolCallStart, Index: 1, ID: "call_b", Type: "function", Name: "second"})
	acc.Apply(Delta{Kind: DeltaToolCallStart, Index: 0, ID: "call_a", Type: "function", Name: "first"})
	acc.Apply(Delta{Kind: DeltaToolCallArguments, Index: 1, Arguments: "{}"})
	acc.Apply(Delta{Kind: DeltaToolCallArguments, Index: 0, Arguments: `{"a":1}`})
	// A later fragment must not overwrite the established id or name.
	acc.Apply(Delta{Kind: DeltaToolCallStart, Index: 0, ID: "call_other", Name: "renamed"})
	acc.Apply(Delta{Kind: DeltaToolCallEnd, Index: AllCalls})

	msg := acc.Finalize()
	if len(msg.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(msg.ToolCalls))
	}
	if msg.ToolCalls[0].ID != "call_a" || msg.ToolCalls[0].Name != "first" {
		t.Errorf("unexpected first call %+v", msg.ToolCalls[0])
	}
	if msg.ToolCalls[1].ID != "call_b" || msg.ToolCalls[1].Arguments != "{}" {
		t.Errorf("unexpected second call %+v", msg.ToolCalls[1])
	}
	for _, tc := range msg.ToolCalls {
		if tc.Incomplete {
			t.Errorf("call %s unexpectedly incomplete", tc.ID)
		}
	}
}

// TestAccumulator_SynthesizesMissingID verifies that a call without an id is kept and flagged.
func TestAccumulator_SynthesizesMissingID(t *testing.T) {
	acc := NewAccumulator()
	acc.Apply(Delta{Kind: DeltaToolCallArguments, Index: 2, Arguments: `{"q":`})
	acc.Apply(Delta{Kind: DeltaStreamEnd})

	msg := acc.Finalize()
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "call_2" || tc.Type != "function" || !tc.Incomplete {
		t.Errorf("unexpected synthesized call %+v", tc)
	}
	if tc.Arguments != `{"q":` {
		t.Errorf("expected partial arguments kept, got %q", tc.Arguments)
	}
}

func TestAccumulator_OpenCallAtTruncationIsIncomplete(t *testing.T) {
	msg := feedAll(t, toolStart, toolArgs1)
	if len(msg.ToolCalls) != 1 || !msg.ToolCalls[0].Incomplete {
		t.Errorf("expected one incomplete call, got %+v", msg.ToolCalls)
	}
}

func TestAccumulator_MalformedFrameMarksTruncated(t *testing.T) {
	msg := feedAll(t, helloChunk, `not json`, thereChunk)

	if msg.Content != "Hi there!" {
		t.Errorf("expected content %q, got %q", "Hi there!", msg.Content)
	}
	if !msg.Truncated {
		t.Error("expected truncated message")
	}
	if !errors.Is(msg.Err, ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame, got %v", msg.Err)
	}
}

func TestAccumulator_UpstreamErrorEvent(t *testing.T) {
	msg := feedAll(t, helloChunk, `{"error":{"message":"boom"}}`)

	var ue *UpstreamEventError
	if !errors.As(msg.Err, &ue) || ue.Message != "boom" {
		t.Errorf("expected upstream event error boom, got %v", msg.Err)
	}
	if !msg.Truncated {
		t.Error("expected truncated message")
	}
}

func TestAccumulator_FinalizeFreezes(t *testing.T) {
	acc := NewAccumulator()
	acc.Apply(Delta{Kind: DeltaText, Text: "Let me check"})
	first := acc.Finalize()

	acc.Apply(Delta{Kind: DeltaText, Text: " more"})
	acc.MarkTruncated(errors.New("late"))
	second := acc.Finalize()

	if second.Content != "Let me check" || second.Truncated {
		t.Errorf("expected frozen message, got %+v", second)
	}
	if first.Content != second.Content {
		t.Errorf("expected identical messages, got %q and %q", first.Content, second.Content)
	}
}
