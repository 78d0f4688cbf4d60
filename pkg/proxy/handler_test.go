package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"promptlens-dev/promptlens/pkg/config"
	"promptlens-dev/promptlens/pkg/jsonl"
	"promptlens-dev/promptlens/pkg/proxy/types"
	"promptlens-dev/promptlens/pkg/record"
)

var fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type testProxy struct {
	handler *Handler
	writer  *jsonl.Writer
	dir     string
}

func newTestProxy(t *testing.T, upstreamURL string, timeoutS float64) *testProxy {
	t.Helper()

	up, err := NewUpstream(config.UpstreamConfig{
		BaseURL:   upstreamURL,
		TimeoutS:  timeoutS,
		VerifySSL: true,
	})
	if err != nil {
		t.Fatalf("NewUpstream() error = %v", err)
	}
	t.Cleanup(up.Close)

	dir := t.TempDir()
	writer, err := jsonl.Open(jsonl.Config{Dir: dir})
	if err != nil {
		t.Fatalf("jsonl.Open() error = %v", err)
	}
	t.Cleanup(func() { writer.Close() })

	builder := record.NewBuilder(256*1024, false)
	builder.Now = func() time.Time { return fixedTime }

	h, err := NewHandler(Options{Upstream: up, Writer: writer, Builder: builder})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return &testProxy{handler: h, writer: writer, dir: dir}
}

func (p *testProxy) lines(t *testing.T) []string {
	t.Helper()
	f, err := os.Open(filepath.Join(p.dir, jsonl.DefaultFilename))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func (p *testProxy) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	p.handler.ServeHTTP(rec, req)
	return rec
}

const helloRequest = `{"model":"gpt-4o","messages":[{"role":"user","content":"Hello"}]}`

func TestHandler_SingleTurnChat(t *testing.T) {
	reply := `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there!"},"finish_reason":"stop"}]}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "yes")
		_, _ = w.Write([]byte(reply))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	rec := p.do(http.MethodPost, "/v1/chat/completions", helloRequest)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != reply {
		t.Errorf("client body = %q, want upstream bytes", rec.Body.String())
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Error("upstream response header not copied")
	}

	lines := p.lines(t)
	want := []string{
		`{"timestamp":"2024-01-02T03:04:05.000000Z","input":{"role":"user","type":"chat","content":[{"role":"user","content":"Hello"}]},"truncated":false}`,
		`{"timestamp":"2024-01-02T03:04:05.000000Z","output":{"role":"assistant","type":"chat","content":"Hi there!"},"truncated":false}`,
	}
	if len(lines) != len(want) {
		t.Fatalf("log has %d lines, want %d:\n%s", len(lines), len(want), strings.Join(lines, "\n"))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d =\n%s\nwant\n%s", i, lines[i], want[i])
		}
	}
}

func TestHandler_StreamingToolCall(t *testing.T) {
	frames := []string{
		`data: {"choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}` + "\n\n",
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}` + "\n\n",
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Paris\"}"}}]}}]}` + "\n\n",
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}` + "\n\n",
		"data: [DONE]\n\n",
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			_, _ = w.Write([]byte(f))
			_ = http.NewResponseController(w).Flush()
		}
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	rec := p.do(http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"Weather in Paris?"}]}`)

	if got, want := rec.Body.String(), strings.Join(frames, ""); got != want {
		t.Errorf("client body = %q, want %q", got, want)
	}

	lines := p.lines(t)
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2", len(lines))
	}

	var out struct {
		Output struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"output"`
		Truncated bool `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &out); err != nil {
		t.Fatalf("output line is not JSON: %v", err)
	}
	if out.Truncated {
		t.Error("complete stream logged as truncated")
	}
	if len(out.Output.ToolCalls) != 1 {
		t.Fatalf("tool_calls = %+v", out.Output.ToolCalls)
	}
	tc := out.Output.ToolCalls[0]
	if tc.ID != "call_1" || tc.Type != "function" || tc.Function.Name != "get_weather" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("arguments = %q", tc.Function.Arguments)
	}
}

func TestHandler_UpstreamDropMidStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"Let me"}}]}` + "\n\n"))
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":" check"}}]}` + "\n\n"))
		_ = http.NewResponseController(w).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	rec := p.do(http.MethodPost, "/v1/chat/completions",
		`{"stream":true,"messages":[{"role":"user","content":"Check it"}]}`)

	want := `data: {"choices":[{"delta":{"content":"Let me"}}]}` + "\n\n" +
		`data: {"choices":[{"delta":{"content":" check"}}]}` + "\n\n"
	if rec.Body.String() != want {
		t.Errorf("client body = %q, want %q", rec.Body.String(), want)
	}

	lines := p.lines(t)
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2", len(lines))
	}
	wantOut := `{"timestamp":"2024-01-02T03:04:05.000000Z","output":{"role":"assistant","type":"chat","content":"Let me check"},"truncated":true}`
	if lines[1] != wantOut {
		t.Errorf("output line =\n%s\nwant\n%s", lines[1], wantOut)
	}
}

func TestHandler_StreamClosedWithoutEndMarker(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"Let me check"}}]}` + "\n\n"))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	p.do(http.MethodPost, "/v1/chat/completions",
		`{"stream":true,"messages":[{"role":"user","content":"Check it"}]}`)

	lines := p.lines(t)
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2", len(lines))
	}
	wantOut := `{"timestamp":"2024-01-02T03:04:05.000000Z","output":{"role":"assistant","type":"chat","content":"Let me check"},"truncated":true}`
	if lines[1] != wantOut {
		t.Errorf("output line =\n%s\nwant\n%s", lines[1], wantOut)
	}
}

// cancelOnWrite cancels the request context after the first body write,
// as a disconnecting client does.
type cancelOnWrite struct {
	*httptest.ResponseRecorder
	cancel context.CancelFunc
}

func (c *cancelOnWrite) Write(p []byte) (int, error) {
	n, err := c.ResponseRecorder.Write(p)
	c.cancel()
	return n, err
}

func TestHandler_ClientDisconnectMidStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"Let me"}}]}` + "\n\n"))
		_ = http.NewResponseController(w).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":" check"}}]}` + "\n\n"))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"stream":true,"messages":[{"role":"user","content":"Check it"}]}`)).WithContext(ctx)
	w := &cancelOnWrite{ResponseRecorder: httptest.NewRecorder(), cancel: cancel}
	p.handler.ServeHTTP(w, req)

	lines := p.lines(t)
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2", len(lines))
	}
	wantOut := `{"timestamp":"2024-01-02T03:04:05.000000Z","output":{"role":"assistant","type":"chat","content":"Let me"},"truncated":true}`
	if lines[1] != wantOut {
		t.Errorf("output line =\n%s\nwant\n%s", lines[1], wantOut)
	}
}

func TestHandler_UnrecognizedStreamKeepsText(t *testing.T) {
	stream := "event: status\ndata: {\"status\":\"queued\"}\n\ndata: [DONE]\n\n"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(stream))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	p.do(http.MethodPost, "/v1/audio/speech", `{"input":"Say hi","stream":true}`)

	lines := p.lines(t)
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2", len(lines))
	}
	var entry struct {
		Output struct {
			Content string `json:"content"`
		} `json:"output"`
		Truncated bool `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("output line is not JSON: %v", err)
	}
	if entry.Output.Content != stream || entry.Truncated {
		t.Errorf("output = %+v, want the stream text untruncated", entry)
	}
}

func TestHandler_UpstreamUnavailable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	p := newTestProxy(t, url, 5)
	rec := p.do(http.MethodPost, "/v1/chat/completions", helloRequest)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body.Error.Type != types.ErrorTypeBadGateway || body.Error.Message != "Upstream request failed" {
		t.Errorf("error = %+v", body.Error)
	}

	lines := p.lines(t)
	want := `{"timestamp":"2024-01-02T03:04:05.000000Z","input":{"role":"user","type":"chat","content":[{"role":"user","content":"Hello"}]},"truncated":true}`
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("log = %q, want only the truncated input entry", lines)
	}
}

func TestHandler_UpstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()
	defer close(release)

	p := newTestProxy(t, upstream.URL, 0.1)
	rec := p.do(http.MethodPost, "/v1/chat/completions", helloRequest)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if lines := p.lines(t); len(lines) != 1 || !strings.HasSuffix(lines[0], `"truncated":true}`) {
		t.Errorf("log = %q", lines)
	}
}

func TestHandler_NonJSONRequestNotLogged(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"}]}`))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	rec := p.do(http.MethodGet, "/v1/models", "")

	if rec.Code != http.StatusOK || rec.Body.String() != `{"data":[{"id":"gpt-4o"}]}` {
		t.Errorf("response = %d %q", rec.Code, rec.Body.String())
	}
	if lines := p.lines(t); len(lines) != 0 {
		t.Errorf("log = %q, want no entries", lines)
	}
}

func TestHandler_UpstreamErrorBody(t *testing.T) {
	errBody := `{"error":{"message":"Invalid API key","type":"invalid_request_error"}}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(errBody))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	rec := p.do(http.MethodPost, "/v1/chat/completions", helloRequest)

	if rec.Code != http.StatusUnauthorized || rec.Body.String() != errBody {
		t.Errorf("response = %d %q, want the upstream error relayed", rec.Code, rec.Body.String())
	}

	lines := p.lines(t)
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2", len(lines))
	}
	want := `{"timestamp":"2024-01-02T03:04:05.000000Z","output":{"role":"assistant","type":"chat","content":{"message":"Invalid API key","type":"invalid_request_error"}},"truncated":false}`
	if lines[1] != want {
		t.Errorf("output line =\n%s\nwant\n%s", lines[1], want)
	}
}

func TestHandler_OversizedBody(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	p.handler.maxBodyBytes = 16
	rec := p.do(http.MethodPost, "/v1/chat/completions", helloRequest)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if called {
		t.Error("oversized request was forwarded")
	}
}

func TestHandler_Embedding(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL, 5)
	p.do(http.MethodPost, "/v1/embeddings", `{"model":"e","input":"hello"}`)

	lines := p.lines(t)
	want := []string{
		`{"timestamp":"2024-01-02T03:04:05.000000Z","input":{"role":"user","type":"embedding","content":"hello"},"truncated":false}`,
		`{"timestamp":"2024-01-02T03:04:05.000000Z","output":{"role":"assistant","type":"embedding","content":"embedding with 3 dimensions"},"truncated":false}`,
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("log =\n%s\nwant\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}
}

func TestNewHandler_Required(t *testing.T) {
	if _, err := NewHandler(Options{}); err == nil {
		t.Error("NewHandler() without upstream succeeded")
	}
}
