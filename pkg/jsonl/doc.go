// Package jsonl implements the append-only, size-bounded log that PromptLens
// writes its entries to.
//
// Each entry is encoded as one JSON object followed by a newline. The entries
// given to a single Append call are written with one write under the writer's
// gate, so they are contiguous and always land in the same segment. When
// appending a batch would push a non-empty active file past the size limit,
// the active file is renamed to a timestamped segment first:
//
//	promptlens.jsonl                      active
//	promptlens-20250304-050607.jsonl      rotated
//	promptlens-20250304-050607-1.jsonl    rotated within the same second
//
// A batch larger than the limit is still written whole into a fresh file.
//
// The Pruner removes old rotated segments on a cron schedule. The active file
// is never pruned.
package jsonl
