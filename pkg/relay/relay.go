package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"promptlens-dev/promptlens/pkg/stream"
)

// DefaultChunkSize is the size of a single upstream read when streaming.
const DefaultChunkSize = 4096

// Options configures a Relay.
type Options struct {
	// ChunkSize is the upstream read size in streaming mode (default: 4096).
	ChunkSize int

	// IdleTimeout aborts the relay when no upstream bytes arrive for this
	// long. Zero disables it.
	IdleTimeout time.Duration

	// CopyHeaders copies upstream response headers to the client.
	// The default copies all of them.
	CopyHeaders func(dst, src http.Header)

	// OnMalformed is called from the parser goroutine for every event that
	// failed to decode.
	OnMalformed func(err error)

	// Logger receives diagnostics (default: slog.Default()).
	Logger *slog.Logger
}

// Result describes a completed relay.
type Result struct {
	// Status is the upstream status code forwarded to the client.
	Status int

	// Streamed reports whether the response was relayed as an event stream.
	Streamed bool

	// BytesIn counts bytes read from the upstream, BytesOut bytes written to
	// the client. They are equal unless the client went away mid-write.
	BytesIn  int64
	BytesOut int64

	// Message is the message reconstructed from a stream. It is zero for
	// responses that were not streamed.
	Message stream.Message

	// Raw is the complete body of a response that was not streamed. For a
	// stream it holds the raw events when none of them carried content and
	// all of them decoded, and is nil otherwise.
	Raw []byte

	// Malformed counts stream events that could not be decoded.
	Malformed int

	// ClientGone reports that forwarding stopped because the client left.
	ClientGone bool
}

// Relay copies upstream responses to clients.
type Relay struct {
	opts Options
}

// New creates a relay.
func New(opts Options) *Relay {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.CopyHeaders == nil {
		opts.CopyHeaders = copyAll
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "relay")
	}
	return &Relay{opts: opts}
}

// IsEventStream reports whether a response carries server-sent events.
func IsEventStream(h http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mediaType == "text/event-stream"
}

// Forward writes resp to w and closes resp.Body. Event streams are relayed
// chunk by chunk and parsed; anything else is relayed in one write.
//
// The returned error is nil, ErrClientGone, or wraps ErrUpstreamInterrupted
// or ErrUpstreamTimeout. A stream that reaches EOF without [DONE] or a
// finish reason counts as interrupted. The Result is meaningful in every
// case; for streams its Message is marked truncated whenever the error is
// non-nil.
func (r *Relay) Forward(ctx context.Context, resp *http.Response, w http.ResponseWriter) (Result, error) {
	defer resp.Body.Close()

	res := Result{Status: resp.StatusCode, Streamed: IsEventStream(resp.Header)}

	r.opts.CopyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	body := newIdleReader(resp.Body, r.opts.IdleTimeout, func() { resp.Body.Close() })
	defer body.stop()

	if res.Streamed {
		err := r.forwardStream(ctx, body, w, &res)
		return res, err
	}
	err := r.forwardOnce(ctx, body, w, &res)
	return res, err
}

func (r *Relay) forwardStream(ctx context.Context, body *idleReader, w http.ResponseWriter, res *Result) error {
	rc := http.NewResponseController(w)
	flush := func() error {
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	// Headers go out before the first upstream byte.
	if err := flush(); err != nil {
		res.ClientGone = true
	}

	queue := newChunkQueue()
	acc := stream.NewAccumulator()
	var malformed atomic.Int64
	var unparsed []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		unparsed = r.parse(queue, acc, &malformed)
	}()

	var forwardErr error
	buf := make([]byte, r.opts.ChunkSize)
	for !res.ClientGone {
		n, readErr := body.Read(buf)
		if n > 0 {
			res.BytesIn += int64(n)

			written, writeErr := w.Write(buf[:n])
			res.BytesOut += int64(written)
			if writeErr == nil {
				writeErr = flush()
			}
			if writeErr != nil {
				res.ClientGone = true
				break
			}

			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			queue.push(chunk)
		}

		if readErr != nil {
			if readErr != io.EOF {
				forwardErr = r.classify(ctx, body, readErr, res)
			}
			break
		}
		if ctx.Err() != nil {
			res.ClientGone = true
		}
	}

	queue.close()
	<-done

	switch {
	case res.ClientGone:
		forwardErr = ErrClientGone
	case forwardErr == nil && !acc.Ended():
		// A close-delimited body that stops before [DONE] or a finish
		// reason reads as a clean EOF.
		forwardErr = fmt.Errorf("%w: stream closed without an end marker", ErrUpstreamInterrupted)
	}
	if forwardErr != nil {
		acc.MarkTruncated(forwardErr)
	}

	res.Message = acc.Finalize()
	res.Malformed = int(malformed.Load())
	res.Raw = unparsed
	return forwardErr
}

// parse drains the queue into acc. It runs on its own goroutine and owns
// the parser and accumulator until the queue is closed and empty.
//
// It returns the raw stream when no event carried content and none failed
// to decode, and nil otherwise.
func (r *Relay) parse(queue *chunkQueue, acc *stream.Accumulator, malformed *atomic.Int64) []byte {
	parser := stream.NewParser()

	var raw bytes.Buffer
	recognized := false
	apply := func(deltas []stream.Delta, err error) {
		for _, d := range deltas {
			if carriesContent(d.Kind) {
				recognized = true
			}
			acc.Apply(d)
		}
		if err != nil {
			count := 1
			if joined, ok := err.(interface{ Unwrap() []error }); ok {
				count = len(joined.Unwrap())
			}
			malformed.Add(int64(count))
			acc.MarkTruncated(err)
			if r.opts.OnMalformed != nil {
				r.opts.OnMalformed(err)
			}
			r.opts.Logger.Debug("malformed stream frame", "error", err)
		}
	}

	for {
		chunk, ok := queue.pop()
		if !ok {
			break
		}
		if !recognized {
			raw.Write(chunk)
		}
		apply(parser.Feed(chunk))
		if recognized {
			raw.Reset()
		}
	}
	apply(parser.Flush())

	if recognized || malformed.Load() > 0 || raw.Len() == 0 {
		return nil
	}
	return raw.Bytes()
}

func carriesContent(k stream.DeltaKind) bool {
	switch k {
	case stream.DeltaText, stream.DeltaRefusal, stream.DeltaToolCallStart, stream.DeltaToolCallArguments:
		return true
	}
	return false
}

func (r *Relay) forwardOnce(ctx context.Context, body *idleReader, w http.ResponseWriter, res *Result) error {
	raw, readErr := io.ReadAll(body)
	res.BytesIn = int64(len(raw))
	res.Raw = raw

	var forwardErr error
	if readErr != nil {
		forwardErr = r.classify(ctx, body, readErr, res)
	}

	if len(raw) > 0 && !res.ClientGone {
		n, err := w.Write(raw)
		res.BytesOut = int64(n)
		if err != nil {
			res.ClientGone = true
		}
	}

	if res.ClientGone {
		return ErrClientGone
	}
	return forwardErr
}

// classify maps an upstream read error. Errors caused by the client
// leaving (ctx cancelled) set ClientGone instead.
func (r *Relay) classify(ctx context.Context, body *idleReader, err error, res *Result) error {
	switch {
	case body.timedOut():
		return fmt.Errorf("%w: no data for %s", ErrUpstreamTimeout, r.opts.IdleTimeout)
	case ctx.Err() != nil:
		res.ClientGone = true
		return ErrClientGone
	case errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamInterrupted, err)
}

func copyAll(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
