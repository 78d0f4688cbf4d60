// PromptLens is a transparent OpenAI-compatible HTTP proxy that records
// prompts and model responses, streamed or not, as JSON lines.
//
// Usage:
//
//	# Run in front of an upstream endpoint
//	promptlens --llm-endpoint http://127.0.0.1:4000 --port 8080
//
//	# Use a config file
//	promptlens --config ./promptlens.toml
//
//	# Custom log directory
//	promptlens --llm-endpoint http://localhost:4000 --log-dir ./logs
//
//	# Show the logged entries of one request (requires logging.index.enabled)
//	promptlens entries --request-id 3f2a...
//
//	# Rebuild the entry index from existing log segments
//	promptlens index rebuild
//
//	# Show version information
//	promptlens version
package main

func main() {
	Execute()
}
