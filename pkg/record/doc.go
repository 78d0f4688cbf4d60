// Package record builds the JSON log entries persisted for each proxied call.
//
// A call produces an input entry holding the prompt exactly as the client
// submitted it (the whole conversation for chat requests) and, when a response
// arrived, an output entry holding the reconstructed assistant message:
//
//	{"timestamp":"...","input":{"role":"user","type":"chat","content":[...]},"truncated":false}
//	{"timestamp":"...","output":{"role":"assistant","type":"chat","content":"Hi there!"},"truncated":false}
//
// Content larger than the configured byte budget is replaced by a JSON string
// holding a prefix of its serialization, cut on a UTF-8 boundary, and the entry
// is flagged truncated. The flag is also set when the call itself was cut short.
package record
