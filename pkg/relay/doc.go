// Package relay forwards an upstream HTTP response to the client while
// reconstructing the assistant message from it.
//
// For server-sent event streams every chunk read from the upstream is
// written and flushed to the client first and then handed to a parser
// goroutine through an unbounded queue, so a slow or failing parse never
// delays forwarding. The bytes the client receives are exactly the bytes the
// upstream sent, in order, with no buffering beyond one read.
//
// Other responses are read in full, written with a single write and
// returned raw for the caller to interpret.
package relay
