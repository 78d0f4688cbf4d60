// Package health serves the PromptLens health endpoint.
//
// Components register checks by name; the endpoint runs them concurrently,
// each bounded by the checker timeout, and reports 503 when any fails:
//
//	checker := health.New(version, 2*time.Second)
//	checker.RegisterCheck("log", func(ctx context.Context) error {
//	    _, err := os.Stat(writer.Path())
//	    return err
//	})
//	router.Get("/_promptlens/health", checker.Handler())
package health
