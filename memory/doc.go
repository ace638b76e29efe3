// Package memory implements an experiential memory engine for autonomous
// trading agents.
//
// The engine stores past decision "situations" together with the
// recommendation that was made and, once known, the realized outcome.
// Retrieval ranks stored cases by a blended score of semantic similarity,
// recency decay, and realized returns, so the agent decision layer can
// inject the most relevant prior experience into its prompts.
//
// Text is fingerprinted locally with deterministic feature hashing
// (memory/embedder/hashed) - no external model, no training state, and
// identical input always produces identical vectors. When a stored record
// has no usable embedding the ranker falls back to a difflib-style text
// similarity ratio, so retrieval degrades gracefully instead of failing.
//
// Architecture:
//   - Store: durable record storage (SQLite-backed, memory/store/sqlite)
//   - Embedder: text-to-vector conversion (memory/embedder/hashed)
//   - Ranker: similarity + recency + returns scoring
//   - Manager: facade the agent decision layer calls
//
// The memory subsystem is explicitly non-critical: every per-call failure
// inside the Manager is logged and converted to a safe default (empty
// results, no-op, zeroed stats). An agent's decision flow must never abort
// because its memory was unavailable.
package memory
