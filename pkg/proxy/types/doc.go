// Package types defines the error envelope written by the PromptLens proxy.
//
// PromptLens never parses requests into typed structs; bodies are relayed as
// bytes. The only body it authors is the OpenAI-compatible error returned
// when the upstream is unreachable or the request cannot be read:
//
//	{
//	  "error": {
//	    "message": "Upstream request failed",
//	    "type": "bad_gateway",
//	    "code": "upstream_unavailable"
//	  }
//	}
package types
