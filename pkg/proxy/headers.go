package proxy

import (
	"net/http"
	"net/textproto"
	"strings"
)

// hopHeaders are connection-scoped and never forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// requestOnlyHeaders are recomputed by the transport for the upstream hop.
// Accept-Encoding is dropped so the upstream answers uncompressed and the
// relayed stream stays parseable.
var requestOnlyHeaders = []string{
	"Host",
	"Content-Length",
	"Accept-Encoding",
}

// connectionTokens returns the header names listed in Connection.
func connectionTokens(h http.Header) []string {
	var tokens []string
	for _, v := range h.Values("Connection") {
		for _, f := range strings.Split(v, ",") {
			if f = textproto.TrimString(f); f != "" {
				tokens = append(tokens, f)
			}
		}
	}
	return tokens
}

// UpstreamRequestHeaders returns the headers to send upstream for a client
// request: everything the client sent, duplicates included, minus hop-by-hop
// and transport-managed headers. Configured headers are added only where the
// client did not send the same header.
func UpstreamRequestHeaders(client http.Header, configured map[string]string) http.Header {
	out := client.Clone()
	if out == nil {
		out = http.Header{}
	}

	for _, name := range connectionTokens(client) {
		out.Del(name)
	}
	for _, name := range hopHeaders {
		out.Del(name)
	}
	for _, name := range requestOnlyHeaders {
		out.Del(name)
	}

	for name, value := range configured {
		if _, ok := out[http.CanonicalHeaderKey(name)]; !ok {
			out.Set(name, value)
		}
	}

	// An empty value stops net/http from adding its own User-Agent.
	if _, ok := out["User-Agent"]; !ok {
		out["User-Agent"] = []string{""}
	}
	return out
}

// CopyResponseHeaders copies upstream response headers to the client,
// skipping hop-by-hop headers and Content-Length.
func CopyResponseHeaders(dst, src http.Header) {
	skip := make(map[string]bool, len(hopHeaders)+1)
	for _, name := range hopHeaders {
		skip[name] = true
	}
	for _, name := range connectionTokens(src) {
		skip[http.CanonicalHeaderKey(name)] = true
	}
	skip["Content-Length"] = true

	for name, values := range src {
		if skip[name] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}
