package llmcall

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS llm_calls (
	id            TEXT PRIMARY KEY,
	timestamp     TIMESTAMP NOT NULL,
	latency_ms    INTEGER NOT NULL DEFAULT 0,
	stage         TEXT NOT NULL,
	document_id   TEXT NOT NULL DEFAULT '',
	request_id    TEXT NOT NULL DEFAULT '',
	provider      TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL DEFAULT '',
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens  INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL DEFAULT 0,
	error_type    TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_llm_calls_document ON llm_calls(document_id, timestamp);
`

// Store persists call records in sqlite.
type Store struct {
	db *sql.DB
}

// NewStore creates the store and its table on the given database.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating llm_calls table: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert writes one call record.
func (s *Store) Insert(ctx context.Context, c *Call) error {
	if c == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_calls (id, timestamp, latency_ms, stage, document_id, request_id,
			provider, model, input_tokens, output_tokens, total_tokens, cost_usd,
			success, error_type, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Timestamp, c.LatencyMs, c.Stage, c.DocumentID, c.RequestID,
		c.Provider, c.Model, c.InputTokens, c.OutputTokens, c.TotalTokens, c.CostUSD,
		boolToInt(c.Success), c.ErrorType, c.Error)
	if err != nil {
		return fmt.Errorf("inserting llm call record: %w", err)
	}
	return nil
}

// QueryFilter narrows List results.
type QueryFilter struct {
	DocumentID string
	Stage      string
	Model      string
	After      *time.Time
	Success    *bool
	Limit      int
}

// List returns call records newest first.
func (s *Store) List(ctx context.Context, f QueryFilter) ([]Call, error) {
	var conds []string
	var args []any
	if f.DocumentID != "" {
		conds = append(conds, "document_id = ?")
		args = append(args, f.DocumentID)
	}
	if f.Stage != "" {
		conds = append(conds, "stage = ?")
		args = append(args, f.Stage)
	}
	if f.Model != "" {
		conds = append(conds, "model = ?")
		args = append(args, f.Model)
	}
	if f.After != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, *f.After)
	}
	if f.Success != nil {
		conds = append(conds, "success = ?")
		args = append(args, boolToInt(*f.Success))
	}

	query := `SELECT id, timestamp, latency_ms, stage, document_id, request_id,
		provider, model, input_tokens, output_tokens, total_tokens, cost_usd,
		success, error_type, error FROM llm_calls`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing llm calls: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var c Call
		var success int
		if err := rows.Scan(&c.ID, &c.Timestamp, &c.LatencyMs, &c.Stage, &c.DocumentID,
			&c.RequestID, &c.Provider, &c.Model, &c.InputTokens, &c.OutputTokens,
			&c.TotalTokens, &c.CostUSD, &success, &c.ErrorType, &c.Error); err != nil {
			return nil, err
		}
		c.Success = success != 0
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Summary aggregates usage over a set of calls.
type Summary struct {
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// DocumentSummary aggregates cost and latency for one document.
func (s *Store) DocumentSummary(ctx context.Context, documentID string) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cost_usd), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM llm_calls WHERE document_id = ?`, documentID).
		Scan(&sum.Calls, &sum.Failures, &sum.TotalTokens, &sum.TotalCostUSD, &sum.AvgLatencyMs)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing calls for document %s: %w", documentID, err)
	}
	return sum, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
