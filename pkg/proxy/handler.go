package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"promptlens-dev/promptlens/pkg/jsonl"
	"promptlens-dev/promptlens/pkg/record"
	"promptlens-dev/promptlens/pkg/relay"
	"promptlens-dev/promptlens/pkg/stream"
	"promptlens-dev/promptlens/pkg/telemetry/logging"
	"promptlens-dev/promptlens/pkg/telemetry/metrics"
)

// Relay modes reported in metrics and diagnostics.
const (
	ModeStream = "stream"
	ModeOnce   = "once"
)

// Request outcomes reported in the requests_total status label.
const (
	StatusOK                  = "ok"
	StatusBadRequest          = "bad_request"
	StatusUpstreamUnavailable = "upstream_unavailable"
	StatusUpstreamTimeout     = "upstream_timeout"
	StatusInterrupted         = "interrupted"
	StatusClientGone          = "client_gone"
)

// errReadBody marks a client body that could not be read.
var errReadBody = errors.New("failed to read request body")

// LogWriter persists log entries. *jsonl.Writer implements it.
type LogWriter interface {
	Append(ctx context.Context, entries ...any) (jsonl.AppendResult, error)
}

// Options configures a Handler.
type Options struct {
	// Upstream receives every forwarded request. Required.
	Upstream *Upstream

	// Writer receives the log entries of each call. Required.
	Writer LogWriter

	// Builder turns calls into entries. Required.
	Builder *record.Builder

	// Metrics is optional; a nil collector records nothing.
	Metrics *metrics.Collector

	// Logger receives diagnostics (default: slog.Default()).
	Logger *slog.Logger

	// MaxBodyBytes bounds request bodies. Zero means unlimited.
	MaxBodyBytes int64

	// ChunkSize is the upstream read size while streaming.
	ChunkSize int
}

// Handler forwards every request to the upstream and logs the call.
type Handler struct {
	upstream     *Upstream
	writer       LogWriter
	builder      *record.Builder
	metrics      *metrics.Collector
	logger       *slog.Logger
	maxBodyBytes int64
	relay        *relay.Relay
}

// NewHandler creates a proxy handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Upstream == nil {
		return nil, errors.New("proxy: upstream is required")
	}
	if opts.Writer == nil {
		return nil, errors.New("proxy: log writer is required")
	}
	if opts.Builder == nil {
		return nil, errors.New("proxy: record builder is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "proxy")
	}

	h := &Handler{
		upstream:     opts.Upstream,
		writer:       opts.Writer,
		builder:      opts.Builder,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		maxBodyBytes: opts.MaxBodyBytes,
	}
	h.relay = relay.New(relay.Options{
		ChunkSize:   opts.ChunkSize,
		IdleTimeout: opts.Upstream.IdleTimeout(),
		CopyHeaders: CopyResponseHeaders,
		Logger:      opts.Logger,
	})
	return h, nil
}

// ServeHTTP implements http.Handler for every method and path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := &call{
		h:     h,
		ctx:   r.Context(),
		start: time.Now(),
		mode:  ModeOnce,
		typ:   record.TypeUnknown,
	}
	c.enter(stateReceived, "method", r.Method, "path", r.URL.Path)

	body, err := h.readBody(w, r)
	if err != nil {
		c.enter(stateErrored, "error", err)
		WriteErrorResponse(w, HandleError(err))
		c.done(StatusBadRequest)
		return
	}

	req := record.Request{
		Path:      r.URL.Path,
		Body:      record.DecodeBody(body),
		RequestID: logging.GetRequestID(c.ctx),
	}
	c.typ = record.Classify(req.Path, req.Body)
	requested := req.Body.Bool("stream")
	if requested {
		c.mode = ModeStream
	}

	c.enter(stateForwarding, "type", c.typ, "stream", requested, "bytes", len(body))
	resp, err := h.upstream.Do(c.ctx, r.Method, r.URL.EscapedPath(), r.URL.RawQuery, r.Header, body)
	if err != nil {
		c.upstreamFailed(w, req, err)
		return
	}

	if relay.IsEventStream(resp.Header) {
		c.mode = ModeStream
		c.enter(stateStreaming, "status", resp.StatusCode)
	} else {
		c.mode = ModeOnce
		c.enter(stateCompleting, "status", resp.StatusCode)
	}
	if requested && c.mode != ModeStream {
		h.logger.DebugContext(c.ctx, "stream requested but upstream answered once",
			"content_type", resp.Header.Get("Content-Type"),
		)
	}

	res, fwdErr := h.relay.Forward(c.ctx, resp, w)
	h.metrics.RecordRelay(c.mode, res.BytesIn, res.BytesOut)
	h.metrics.RecordMalformedFrames(res.Malformed)

	out := h.output(req.Path, c.typ, res)
	status := StatusOK
	if fwdErr != nil {
		out.Truncated = true
		status = forwardStatus(fwdErr)
		switch status {
		case StatusUpstreamTimeout:
			h.metrics.RecordUpstreamError(UpstreamTimeout)
		case StatusInterrupted:
			h.metrics.RecordUpstreamError(UpstreamInterrupted)
		}
		c.enter(stateErrored, "error", fwdErr, "bytes_out", res.BytesOut)
	}

	c.log(req, out)
	c.done(status)
}

// readBody reads the full request body, bounded by MaxBodyBytes.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	src := r.Body
	if h.maxBodyBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errReadBody, err)
	}
	return body, nil
}

// output resolves the loggable response of a relayed call.
func (h *Handler) output(path, typ string, res relay.Result) *record.Output {
	if res.Streamed {
		out := record.OutputFromMessage(res.Message)
		if len(res.Raw) > 0 && !(typ == record.TypeChat && res.Message.Ended) {
			// No event carried content; keep the stream text itself.
			out.Content = string(res.Raw)
		}
		return out
	}

	body := record.DecodeBody(res.Raw)
	if body == nil {
		if len(res.Raw) == 0 {
			return &record.Output{}
		}
		return &record.Output{Content: string(res.Raw)}
	}

	if typ != record.TypeChat && typ != record.TypeCompletion {
		return record.OutputFromBody(path, body)
	}

	msg, err := stream.DecodeCompletion(res.Raw)
	if err != nil {
		h.logger.Debug("failed to decode completion body", "error", err)
		return &record.Output{Content: string(res.Raw), Truncated: true}
	}
	out := record.OutputFromMessage(msg)
	if !msg.Ended {
		// Error bodies and other shapes without choices.
		out.Content = nil
		if e, ok := body["error"]; ok {
			out.Content = e
		}
	}
	return out
}

// call carries the state of one request through the handler.
type call struct {
	h     *Handler
	ctx   context.Context
	start time.Time
	state state
	mode  string
	typ   string
}

type state string

const (
	stateReceived   state = "received"
	stateForwarding state = "forwarding"
	stateStreaming  state = "streaming"
	stateCompleting state = "completing"
	stateErrored    state = "errored"
	stateLogged     state = "logged"
	stateDone       state = "done"
)

func (c *call) enter(s state, attrs ...any) {
	prev := c.state
	c.state = s
	args := append([]any{"from", string(prev), "to", string(s)}, attrs...)
	c.h.logger.DebugContext(c.ctx, "request state", args...)
}

func (c *call) upstreamFailed(w http.ResponseWriter, req record.Request, err error) {
	status := StatusUpstreamUnavailable
	kind := UpstreamUnavailable
	if errors.Is(err, ErrUpstreamTimeout) {
		status = StatusUpstreamTimeout
		kind = UpstreamTimeout
	}

	clientGone := c.ctx.Err() != nil
	if clientGone {
		status = StatusClientGone
	} else {
		c.h.metrics.RecordUpstreamError(kind)
		c.h.logger.WarnContext(c.ctx, "upstream request failed", "error", err)
		WriteErrorResponse(w, HandleError(err))
	}
	c.enter(stateErrored, "error", err)

	req.Failed = true
	c.log(req, nil)
	c.done(status)
}

// log writes the entries of the call on a context detached from the client.
func (c *call) log(req record.Request, out *record.Output) {
	entries := c.h.builder.Build(req, out)
	if len(entries) == 0 {
		c.h.logger.DebugContext(c.ctx, "request body is not a JSON object, nothing logged")
		c.enter(stateLogged, "entries", 0)
		return
	}

	items := make([]any, len(entries))
	kinds := make([]string, 0, len(entries))
	var truncated []string
	for i := range entries {
		items[i] = entries[i]
		kind := string(entries[i].Kind())
		kinds = append(kinds, kind)
		if entries[i].Truncated {
			truncated = append(truncated, kind)
		}
	}

	res, err := c.h.writer.Append(context.WithoutCancel(c.ctx), items...)
	c.h.metrics.RecordAppend(err, kinds, truncated)
	if err != nil {
		c.h.logger.ErrorContext(c.ctx, "failed to append log entries",
			"entries", len(entries),
			"error", err,
		)
		return
	}
	c.enter(stateLogged, "entries", len(entries), "segment", res.Segment, "bytes", res.Bytes)
}

func (c *call) done(status string) {
	c.h.metrics.RecordRequest(c.typ, c.mode, status, time.Since(c.start))
	c.enter(stateDone, "status", status)
}

func forwardStatus(err error) string {
	switch {
	case errors.Is(err, relay.ErrClientGone):
		return StatusClientGone
	case errors.Is(err, relay.ErrUpstreamTimeout):
		return StatusUpstreamTimeout
	default:
		return StatusInterrupted
	}
}
