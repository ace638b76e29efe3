package memory

import (
	"context"
	"time"
)

// Record is one stored experience: the situation an agent faced, the
// recommendation it made, and (once verified) the observed outcome.
//
// ID is assigned by the Store on insert, monotonically increasing, and
// never reused or mutated. Situation and Recommendation are immutable
// after creation; only the outcome fields (Result, Returns, UpdatedAt)
// change, via UpdateOutcome.
type Record struct {
	ID             int64
	Situation      string
	Recommendation string

	// Result describes the observed outcome. Empty until the case has
	// been verified. May be refined by later outcome updates.
	Result string

	// Returns is the realized percentage outcome. Nil until verified.
	Returns *float64

	// Optional categorical tags, trimmed; empty means absent.
	Market    string
	Symbol    string
	Timeframe string

	// Features holds arbitrary structured metadata. The store serializes
	// it opaquely (JSON); the core never interprets it.
	Features map[string]any

	// Embedding is the raw little-endian float32 blob as stored. Present
	// iff vector mode was enabled when the record was written. Kept
	// un-decoded until ranking time.
	Embedding []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata carries optional structured context for Add and Retrieve calls.
// Callers that have no metadata pass nil.
type Metadata struct {
	Market    string
	Symbol    string
	Timeframe string

	// Features is stored verbatim on Add and folded into the query
	// embedding text on Retrieve.
	Features map[string]any
}

// Stats aggregates over all stored records.
type Stats struct {
	// Count is the total number of stored records.
	Count int64

	// AverageReturns averages Returns over verified records only.
	AverageReturns float64

	// PositiveCount is the number of records with Returns > 0.
	PositiveCount int64

	// SuccessRate is PositiveCount/Count*100, or 0 when the store is
	// empty. Rounded to two decimals.
	SuccessRate float64
}

// ScoredRecord is a retrieval result: a record plus its composite ranking
// score and the score components useful for inspection.
type ScoredRecord struct {
	Record *Record

	// Score is the weighted composite (similarity + recency + returns,
	// minus any timeframe mismatch penalty).
	Score float64

	// Similarity is the raw similarity component in [0,1] (cosine in
	// vector mode, text ratio otherwise).
	Similarity float64

	// Recency is the raw recency decay component in [0,1].
	Recency float64
}

// Store is the durable record storage backend.
// Implementations: sqlite.RecordStore (memory/store/sqlite).
//
// Store methods return typed errors (*StoreError); converting failures to
// safe defaults is the Manager's job, not the Store's.
type Store interface {
	// Insert persists a new record, setting CreatedAt = UpdatedAt = now,
	// and returns the assigned id.
	Insert(ctx context.Context, rec *Record) (int64, error)

	// Candidates returns at most limit records, most recently created
	// first, with embedding bytes raw and un-decoded. The limit is a hard
	// cap on ranking cost, not a relevance filter.
	Candidates(ctx context.Context, limit int) ([]*Record, error)

	// UpdateOutcome sets result/returns on an existing record and
	// refreshes UpdatedAt. An unknown id is logged and ignored; store
	// state is left unchanged.
	UpdateOutcome(ctx context.Context, id int64, result string, returns *float64) error

	// Statistics aggregates over all records.
	Statistics(ctx context.Context) (*Stats, error)

	// Close releases the underlying database handle.
	Close() error
}

// Embedder converts text to a fixed-dimension vector.
// Implementations: hashed.Embedder (memory/embedder/hashed, the default
// local scheme), mock.Embedder (testing).
type Embedder interface {
	// Embed converts text to an L2-normalized embedding vector of
	// Dimensions() length. Empty text yields an all-zero vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
