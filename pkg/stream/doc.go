// Package stream decodes OpenAI-compatible server-sent event streams and folds
// them back into a single assistant message.
//
// Two pieces cooperate:
//
//   - Parser turns raw bytes, delivered in arbitrary network-sized pieces, into
//     Delta values. It buffers incomplete events between calls.
//   - Accumulator applies deltas in arrival order and produces a frozen Message
//     holding the concatenated text and the tool calls merged by index.
//
// # Basic Usage
//
//	p := stream.NewParser()
//	acc := stream.NewAccumulator()
//
//	for chunk := range chunks {
//	    deltas, err := p.Feed(chunk)
//	    if err != nil {
//	        acc.MarkTruncated(err)
//	    }
//	    for _, d := range deltas {
//	        acc.Apply(d)
//	    }
//	}
//	msg := acc.Finalize()
//
// Tool call arguments are kept as opaque text until the message is finalized.
// Consumers parse the finished argument string themselves.
//
// Non-streaming responses skip the accumulator entirely; DecodeCompletion
// reads a complete chat completion body straight into a Message.
package stream
