// Package server runs the PromptLens HTTP listener.
//
// The router (go-chi) serves two admin endpoints itself and hands every
// other request, whatever its method, to the proxy handler:
//
//	/_promptlens/health   liveness and log writer checks
//	/_promptlens/metrics  Prometheus exposition
//	/*                    forwarded upstream
//
// Every route passes through recovery, request id and access logging
// middleware.
//
// # Lifecycle
//
//	srv, err := server.New(server.Options{Server: cfg.Server, Metrics: cfg.Telemetry.Metrics, Proxy: h})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // returns after ctx is cancelled and shutdown completes
//
// Shutdown stops accepting connections and waits for in-flight requests,
// including open streams, up to server.shutdown_timeout before closing them.
// Signal handling lives in the CLI.
package server
