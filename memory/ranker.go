package memory

import (
	"math"
	"sort"
	"strings"
	"time"
)

// timeframePenalty is subtracted from the composite score when the query
// names a timeframe and the candidate carries a different non-empty one.
const timeframePenalty = 0.15

// minHalfLifeDays floors the recency half-life to keep the decay exponent
// finite for degenerate configurations.
const minHalfLifeDays = 0.1

// Ranker orders candidate records by a weighted blend of similarity,
// recency decay, and realized returns.
type Ranker struct {
	cfg *Config

	// now is a hook for tests; production rankers use time.Now.
	now func() time.Time
}

// NewRanker creates a Ranker using the given validated configuration.
func NewRanker(cfg *Config) *Ranker {
	return &Ranker{cfg: cfg, now: time.Now}
}

// Rank scores every candidate and returns up to n results, highest score
// first. queryVec is the embedded query (nil when vector mode is off);
// candidates whose stored blob does not decode to a usable vector fall
// back to text similarity against queryText. Ties order by id descending,
// which preserves the candidates' newest-first arrival order.
func (r *Ranker) Rank(queryText string, queryVec []float32, meta *Metadata, candidates []*Record, n int) []ScoredRecord {
	queryLower := strings.ToLower(queryText)
	queryTF := ""
	if meta != nil {
		queryTF = strings.TrimSpace(meta.Timeframe)
	}
	now := r.now().UTC()

	scored := make([]ScoredRecord, 0, len(candidates))
	for _, rec := range candidates {
		sim := r.similarity(queryLower, queryVec, rec)
		recency := r.recencyScore(rec.CreatedAt, now)
		ret := returnsScore(rec.Returns)

		score := r.cfg.WeightSim*sim + r.cfg.WeightRecency*recency + r.cfg.WeightReturns*ret

		if queryTF != "" {
			candTF := strings.TrimSpace(rec.Timeframe)
			if candTF != "" && candTF != queryTF {
				score -= timeframePenalty
			}
		}

		scored = append(scored, ScoredRecord{
			Record:     rec,
			Score:      score,
			Similarity: sim,
			Recency:    recency,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.ID > scored[j].Record.ID
	})

	if n < 0 {
		n = 0
	}
	if n > len(scored) {
		n = len(scored)
	}
	return scored[:n]
}

// similarity returns cosine similarity when a usable stored vector exists,
// and the text ratio fallback otherwise. Malformed blobs decode to empty
// and take the fallback path rather than erroring.
func (r *Ranker) similarity(queryLower string, queryVec []float32, rec *Record) float64 {
	if r.cfg.EnableVector && len(queryVec) > 0 {
		if vec := DecodeVector(rec.Embedding); len(vec) > 0 {
			return CosineSimilarity(queryVec, vec)
		}
	}
	return matchRatio(queryLower, strings.ToLower(rec.Situation))
}

// recencyScore is exponential half-life decay over the record's age:
// 1.0 at zero age, 0.5 at one half-life. Missing timestamps score 0.
func (r *Ranker) recencyScore(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	hl := r.cfg.HalfLifeDays
	if hl < minHalfLifeDays {
		hl = minHalfLifeDays
	}
	return math.Exp(-math.Ln2 * ageDays / hl)
}

// returnsScore squashes a percentage return into (-1, 1) via tanh(r/10),
// so outsized wins or losses saturate instead of dominating the ranking.
// Unverified records score 0.
func returnsScore(returns *float64) float64 {
	if returns == nil {
		return 0
	}
	return math.Tanh(*returns / 10)
}
