package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// Manager is the facade the agent decision layer calls. It orchestrates
// Embedder + Store + Ranker and owns the failure-containment policy: all
// per-call runtime errors are logged and converted to safe defaults, never
// propagated. The Manager holds no record state between calls.
type Manager struct {
	store    Store
	embedder Embedder
	ranker   *Ranker
	cfg      *Config
}

// AddOptions carries the optional fields of an Add call.
type AddOptions struct {
	// Result and Returns may be set when the outcome is already known at
	// insert time; normally they arrive later via RecordOutcome.
	Result  string
	Returns *float64

	Metadata *Metadata
}

// NewManager creates a Manager. A nil config means DefaultConfig().
// Configuration problems surface here as *ConfigError; after construction
// no call ever returns an error.
func NewManager(store Store, embedder Embedder, cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		store:    store,
		embedder: embedder,
		ranker:   NewRanker(cfg),
		cfg:      cfg,
	}, nil
}

// Config returns the manager's validated configuration.
func (m *Manager) Config() *Config { return m.cfg }

// Add stores a new experience and returns its id, or 0 when the write
// failed (the failure is logged, never raised). The embedding is built
// from situation, recommendation, result, and serialized features, so
// outcome text sharpens future retrieval once it is known.
func (m *Manager) Add(ctx context.Context, situation, recommendation string, opts *AddOptions) int64 {
	if opts == nil {
		opts = &AddOptions{}
	}

	rec := &Record{
		Situation:      situation,
		Recommendation: recommendation,
		Result:         opts.Result,
		Returns:        opts.Returns,
	}

	var featuresJSON string
	if meta := opts.Metadata; meta != nil {
		rec.Market = strings.TrimSpace(meta.Market)
		rec.Symbol = strings.TrimSpace(meta.Symbol)
		rec.Timeframe = strings.TrimSpace(meta.Timeframe)
		rec.Features = meta.Features
		featuresJSON = encodeFeatures(meta.Features)
	}

	if m.cfg.EnableVector {
		text := buildEmbedText(situation, recommendation, opts.Result, featuresJSON)
		vec, err := m.embedder.Embed(ctx, text)
		if err != nil {
			log.Printf("[MEMORY] Embedding failed, storing without vector: %v", err)
		} else {
			rec.Embedding = EncodeVector(vec)
		}
	}

	id, err := m.store.Insert(ctx, rec)
	if err != nil {
		log.Printf("[MEMORY] Add failed: %v", err)
		return 0
	}
	return id
}

// Retrieve returns up to n stored experiences ranked against the given
// situation, best match first. n <= 0 resolves to the configured default.
// Any internal failure yields an empty result, not an error; an empty
// store is simply an empty result.
func (m *Manager) Retrieve(ctx context.Context, situation string, n int, meta *Metadata) []ScoredRecord {
	if n <= 0 {
		n = m.cfg.DefaultMatches
	}

	var queryVec []float32
	if m.cfg.EnableVector {
		var featuresJSON string
		if meta != nil {
			featuresJSON = encodeFeatures(meta.Features)
		}
		queryText := buildEmbedText(situation, "", "", featuresJSON)
		vec, err := m.embedder.Embed(ctx, queryText)
		if err != nil {
			log.Printf("[MEMORY] Query embedding failed, falling back to text similarity: %v", err)
		} else {
			queryVec = vec
		}
	}

	candidates, err := m.store.Candidates(ctx, m.cfg.CandidateLimit)
	if err != nil {
		log.Printf("[MEMORY] Retrieve failed: %v", err)
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	return m.ranker.Rank(situation, queryVec, meta, candidates, n)
}

// RecordOutcome writes the verified outcome of a past recommendation.
// This is the sole write path outcome verification uses. Unknown ids and
// store failures are logged and absorbed.
func (m *Manager) RecordOutcome(ctx context.Context, id int64, result string, returns *float64) {
	if err := m.store.UpdateOutcome(ctx, id, result, returns); err != nil {
		log.Printf("[MEMORY] RecordOutcome failed for id=%d: %v", id, err)
	}
}

// Statistics returns the aggregate over all stored records, or a zeroed
// aggregate when the store is unavailable.
func (m *Manager) Statistics(ctx context.Context) *Stats {
	stats, err := m.store.Statistics(ctx)
	if err != nil {
		log.Printf("[MEMORY] Statistics failed: %v", err)
		return &Stats{}
	}
	return stats
}

// FormatForPrompt renders retrieved records as a numbered list ready for
// prompt injection. Purely presentational; ordering is taken as given.
func (m *Manager) FormatForPrompt(records []ScoredRecord) string {
	if len(records) == 0 {
		return "No prior experience available."
	}

	lines := []string{"Prior experience (most relevant first):"}
	for i, sr := range records {
		rec := sr.Record
		recommendation := rec.Recommendation
		if recommendation == "" {
			recommendation = "N/A"
		}

		var bits []string
		if !rec.CreatedAt.IsZero() {
			bits = append(bits, "at "+rec.CreatedAt.Format(time.RFC3339))
		}
		if rec.Returns != nil {
			bits = append(bits, "returns="+strconv.FormatFloat(*rec.Returns, 'g', -1, 64)+"%")
		}
		line := fmt.Sprintf("%d. %s", i+1, recommendation)
		if len(bits) > 0 {
			line += " (" + strings.Join(bits, ", ") + ")"
		}
		if rec.Result != "" {
			line += "\n   outcome: " + rec.Result
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// buildEmbedText assembles the text that gets embedded for a record or a
// query. The labeled layout keeps the write-path and read-path token
// streams aligned, which is what makes near-identical situations score
// near 1.0.
func buildEmbedText(situation, recommendation, result, featuresJSON string) string {
	return strings.Join([]string{
		"situation: " + situation,
		"recommendation: " + recommendation,
		"result: " + result,
		"features: " + featuresJSON,
	}, "\n")
}

// encodeFeatures serializes opaque feature metadata. Unserializable
// values degrade to absent features rather than failing the call.
func encodeFeatures(features map[string]any) string {
	if features == nil {
		return ""
	}
	data, err := json.Marshal(features)
	if err != nil {
		log.Printf("[MEMORY] Features not serializable, dropping: %v", err)
		return ""
	}
	return string(data)
}
