// Package sqlite provides the durable, SQLite-backed record store.
//
// One logical table holds all memory records. The store owns schema
// evolution: pre-existing databases gain any missing optional columns
// before the indexes that reference them are created, so an old database
// file keeps working across upgrades without a rebuild.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tradekit/agentmemory/memory"
)

// RecordStore is a SQLite-backed implementation of memory.Store.
type RecordStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// migration lists the optional columns added after the table's first
// schema version, in the order they are applied. Indexes referencing any
// of these must be created strictly after this migration runs.
var migrations = []struct {
	column string
	ddl    string
}{
	{"market", "TEXT"},
	{"symbol", "TEXT"},
	{"timeframe", "TEXT"},
	{"features_json", "TEXT"},
	{"embedding", "BLOB"},
}

// New opens (or creates) the database at path and initializes the schema.
// Schema or connection failures surface as *memory.StoreError.
func New(path string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &memory.StoreError{Op: "open", Err: err}
	}

	// WAL keeps concurrent readers from blocking behind the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &memory.StoreError{Op: "set WAL mode", Err: err}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &RecordStore{db: db}, nil
}

// initSchema creates the table, migrates missing columns on pre-existing
// tables, and only then creates the indexes (which reference migrated
// columns).
func initSchema(db *sql.DB) error {
	createSQL := `CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		situation TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		result TEXT,
		returns REAL,
		market TEXT,
		symbol TEXT,
		timeframe TEXT,
		features_json TEXT,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(createSQL); err != nil {
		return &memory.StoreError{Op: "create table", Err: err}
	}

	existing, err := tableColumns(db, "memories")
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if existing[m.column] {
			continue
		}
		if _, err := db.Exec("ALTER TABLE memories ADD COLUMN " + m.column + " " + m.ddl); err != nil {
			return &memory.StoreError{Op: "add column " + m.column, Err: err}
		}
		log.Printf("[SQLITE] Migrated: added column %s", m.column)
	}

	indexSQL := []string{
		"CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_memories_market_symbol ON memories(market, symbol)",
	}
	for _, stmt := range indexSQL {
		if _, err := db.Exec(stmt); err != nil {
			return &memory.StoreError{Op: "create index", Err: err}
		}
	}

	return nil
}

// tableColumns returns the set of column names currently on a table.
func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, &memory.StoreError{Op: "table info", Err: err}
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, &memory.StoreError{Op: "table info", Err: err}
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Insert persists a new record and returns the assigned id. CreatedAt and
// UpdatedAt are set to now (UTC) and written back onto rec.
func (s *RecordStore) Insert(ctx context.Context, rec *memory.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Second)
	ts := now.Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (situation, recommendation, result, returns, market, symbol, timeframe, features_json, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Situation, rec.Recommendation,
		nullIfEmpty(rec.Result), rec.Returns,
		nullIfEmpty(rec.Market), nullIfEmpty(rec.Symbol), nullIfEmpty(rec.Timeframe),
		nullIfEmpty(encodeFeatures(rec.Features)), rec.Embedding,
		ts, ts,
	)
	if err != nil {
		return 0, &memory.StoreError{Op: "insert", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &memory.StoreError{Op: "insert id", Err: err}
	}

	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return id, nil
}

const selectColumns = `id, situation, recommendation, result, returns, market, symbol, timeframe, features_json, embedding, created_at, updated_at`

// Candidates returns at most limit records, newest first. Embedding blobs
// come back raw; decoding is the ranker's concern. Ties on created_at
// order by id descending so enumeration stays deterministic.
func (s *RecordStore) Candidates(ctx context.Context, limit int) ([]*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM memories ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, &memory.StoreError{Op: "candidates", Err: err}
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Unverified returns at most limit records that have no recorded result
// yet, oldest first so long-pending cases are revisited first. Feeds the
// background outcome verifier.
func (s *RecordStore) Unverified(ctx context.Context, limit int) ([]*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM memories WHERE result IS NULL OR result = '' ORDER BY created_at ASC, id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, &memory.StoreError{Op: "unverified", Err: err}
	}
	defer rows.Close()

	return scanRecords(rows)
}

// UpdateOutcome sets result/returns on a record and refreshes updated_at.
// An unknown id is logged and ignored; the store is left unchanged.
func (s *RecordStore) UpdateOutcome(ctx context.Context, id int64, result string, returns *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET result = ?, returns = ?, updated_at = ? WHERE id = ?`,
		result, returns, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return &memory.StoreError{Op: "update outcome", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("[SQLITE] UpdateOutcome: id=%d not found, ignoring", id)
	}
	return nil
}

// Statistics aggregates over all records.
func (s *RecordStore) Statistics(ctx context.Context) (*memory.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		count    int64
		avg      float64
		positive int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(returns), 0), COALESCE(SUM(returns > 0), 0) FROM memories`,
	).Scan(&count, &avg, &positive)
	if err != nil {
		return nil, &memory.StoreError{Op: "statistics", Err: err}
	}

	stats := &memory.Stats{
		Count:          count,
		AverageReturns: round2(avg),
		PositiveCount:  positive,
	}
	if count > 0 {
		stats.SuccessRate = round2(float64(positive) / float64(count) * 100)
	}
	return stats, nil
}

// Close closes the database handle.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// scanRecords reads rows into Record slices.
func scanRecords(rows *sql.Rows) ([]*memory.Record, error) {
	var records []*memory.Record
	for rows.Next() {
		rec := &memory.Record{}
		var (
			result, market, symbol, timeframe, featuresJSON sql.NullString
			returns                                         sql.NullFloat64
			createdAt, updatedAt                            sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Situation, &rec.Recommendation,
			&result, &returns, &market, &symbol, &timeframe, &featuresJSON,
			&rec.Embedding, &createdAt, &updatedAt); err != nil {
			return nil, &memory.StoreError{Op: "scan", Err: err}
		}

		rec.Result = result.String
		if returns.Valid {
			v := returns.Float64
			rec.Returns = &v
		}
		rec.Market = market.String
		rec.Symbol = symbol.String
		rec.Timeframe = timeframe.String
		if featuresJSON.Valid && featuresJSON.String != "" {
			// Opaque payload: a decode failure means absent features,
			// never a failed read.
			_ = json.Unmarshal([]byte(featuresJSON.String), &rec.Features)
		}
		rec.CreatedAt = parseTimestamp(createdAt.String)
		rec.UpdatedAt = parseTimestamp(updatedAt.String)

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &memory.StoreError{Op: "scan", Err: err}
	}
	return records, nil
}

// parseTimestamp accepts both the RFC3339 strings this store writes and
// the bare CURRENT_TIMESTAMP format a legacy database may contain.
// Unparseable input yields the zero time, which ranks with zero recency.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// round2 rounds to two decimals, matching the precision the statistics
// surface has always reported.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// nullIfEmpty maps an empty string to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// encodeFeatures serializes the opaque features map, dropping it when it
// cannot be represented as JSON.
func encodeFeatures(features map[string]any) string {
	if features == nil {
		return ""
	}
	data, err := json.Marshal(features)
	if err != nil {
		return ""
	}
	return string(data)
}
