package memory

import (
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
)

// Config holds the engine configuration. It is validated once at
// construction; nothing is re-read per call.
//
// Zero values for the numeric options mean "use the default", so a
// partially filled Config behaves sensibly. Start from DefaultConfig()
// when overriding individual fields.
type Config struct {
	// EmbeddingDim is the embedding vector dimension. Must match across
	// all records compared together; changing it on an existing store
	// degrades old records to text-similarity ranking.
	// Default: 256.
	EmbeddingDim int `toml:"embedding_dim"`

	// EnableVector toggles vector mode. When off, records are stored
	// without embeddings and retrieval ranks by text similarity.
	// Default: true.
	EnableVector bool `toml:"enable_vector"`

	// CandidateLimit bounds how many most-recent records are considered
	// per retrieval. A hard cap on ranking cost, not a relevance filter.
	// Default: 500.
	CandidateLimit int `toml:"candidate_limit"`

	// HalfLifeDays is the recency decay half-life. Floored at 0.1 when
	// scoring. Default: 30.
	HalfLifeDays float64 `toml:"half_life_days"`

	// Ranking weights, applied as given (they need not sum to 1).
	// Defaults: 0.75 / 0.20 / 0.05.
	WeightSim     float64 `toml:"w_sim"`
	WeightRecency float64 `toml:"w_recency"`
	WeightReturns float64 `toml:"w_returns"`

	// DefaultMatches is the result count used when Retrieve is called
	// with n <= 0. Default: 5.
	DefaultMatches int `toml:"default_matches"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingDim:   256,
		EnableVector:   true,
		CandidateLimit: 500,
		HalfLifeDays:   30,
		WeightSim:      0.75,
		WeightRecency:  0.20,
		WeightReturns:  0.05,
		DefaultMatches: 5,
	}
}

// Validate checks the configuration and fills unset numeric options with
// their defaults. Non-finite weights are rejected; non-positive dimension,
// limit, half-life, and match count fall back to defaults rather than
// erroring, matching the behavior of absent settings.
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = def.EmbeddingDim
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = def.CandidateLimit
	}
	if c.HalfLifeDays <= 0 {
		c.HalfLifeDays = def.HalfLifeDays
	}
	if c.DefaultMatches <= 0 {
		c.DefaultMatches = def.DefaultMatches
	}

	for _, w := range []struct {
		name string
		val  float64
	}{
		{"w_sim", c.WeightSim},
		{"w_recency", c.WeightRecency},
		{"w_returns", c.WeightReturns},
	} {
		if math.IsNaN(w.val) || math.IsInf(w.val, 0) {
			return &ConfigError{Field: w.name, Reason: "must be a finite number"}
		}
	}

	return nil
}

// LoadConfig reads a TOML configuration file over the defaults and
// validates the result. Options not present in the file keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
