package middleware

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// StartTimeKey stores the request start time for latency calculation.
// Request ids live in the logging package so diagnostics pick them up.
const StartTimeKey contextKey = "start_time"
