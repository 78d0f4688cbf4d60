// Package proxy forwards client requests to an OpenAI-compatible upstream
// and logs what was asked and answered.
//
// Handler serves every method and path. For each request it:
//
//  1. reads the body (bounded by server.max_body_bytes) and decodes it as JSON
//  2. sends it upstream with hop-by-hop headers removed
//  3. relays the response byte for byte, parsing event streams on the side
//  4. appends an input entry and an output entry to the JSONL log
//
// State transitions (received, forwarding, streaming or completing, logged,
// done, and errored) are written to the debug log with the request id.
//
// # Errors
//
// When no upstream response exists, the client receives an OpenAI error
// envelope from HandleError:
//
//	connection failure  502 bad_gateway
//	timeout             504 gateway_timeout
//	oversized body      413 request_too_large
//
// The input entry is still logged, with "truncated": true. Errors after the
// response started only end the relayed body; the output entry keeps what
// was forwarded and is marked truncated.
//
// # Headers
//
// Client headers are forwarded as sent, duplicates included, except Host,
// Content-Length, Accept-Encoding and hop-by-hop headers. Configured
// upstream.headers fill in headers the client did not send. Response headers
// are copied without hop-by-hop headers and Content-Length.
package proxy
