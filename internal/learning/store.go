// Package learning persists user corrections and turns their history into
// per-field extraction hints.
package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS corrections (
	id              TEXT PRIMARY KEY,
	document_id     TEXT NOT NULL,
	template_id     TEXT NOT NULL DEFAULT '',
	field_id        TEXT NOT NULL,
	field_name      TEXT NOT NULL DEFAULT '',
	original_value  TEXT,
	corrected_value TEXT NOT NULL,
	context         TEXT,
	actor_id        TEXT NOT NULL DEFAULT '',
	applied         INTEGER NOT NULL DEFAULT 0,
	applied_at      TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	UNIQUE(document_id, field_id, corrected_value)
);
CREATE INDEX IF NOT EXISTS idx_corrections_field ON corrections(field_id, created_at);

CREATE TABLE IF NOT EXISTS field_hints (
	id          TEXT PRIMARY KEY,
	template_id TEXT NOT NULL DEFAULT '',
	field_id    TEXT NOT NULL,
	hint_type   TEXT NOT NULL,
	payload     TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	UNIQUE(field_id, hint_type)
);
CREATE INDEX IF NOT EXISTS idx_field_hints_template ON field_hints(template_id);

CREATE TABLE IF NOT EXISTS field_learning (
	field_id         TEXT PRIMARY KEY,
	template_id      TEXT NOT NULL DEFAULT '',
	correction_count INTEGER NOT NULL DEFAULT 0,
	inferred_type    TEXT NOT NULL DEFAULT '',
	last_learned_at  TIMESTAMP
);
`

// Correction is one confirmed user fix for one field of one document.
type Correction struct {
	ID             string     `json:"id"`
	DocumentID     string     `json:"document_id"`
	TemplateID     string     `json:"template_id,omitempty"`
	FieldID        string     `json:"field_id"`
	FieldName      string     `json:"field_name,omitempty"`
	OriginalValue  string     `json:"original_value,omitempty"`
	CorrectedValue string     `json:"corrected_value"`
	Context        string     `json:"context,omitempty"`
	ActorID        string     `json:"actor_id,omitempty"`
	Applied        bool       `json:"applied"`
	AppliedAt      *time.Time `json:"applied_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Hint is one stored hint row for a field.
type Hint struct {
	ID         string          `json:"id"`
	TemplateID string          `json:"template_id,omitempty"`
	FieldID    string          `json:"field_id"`
	HintType   string          `json:"hint_type"`
	Payload    json.RawMessage `json:"payload"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// LearningState is the per-field learning bookkeeping row.
type LearningState struct {
	FieldID         string     `json:"field_id"`
	TemplateID      string     `json:"template_id,omitempty"`
	CorrectionCount int        `json:"correction_count"`
	InferredType    string     `json:"inferred_type,omitempty"`
	LastLearnedAt   *time.Time `json:"last_learned_at,omitempty"`
}

// Store persists corrections, hints, and learning state in sqlite.
type Store struct {
	db *sql.DB
}

// NewStore creates the store and its tables on the given database.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating learning tables: %w", err)
	}
	return &Store{db: db}, nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withWriteRetry retries a write a few times when sqlite reports lock
// contention. Other errors fail immediately.
func withWriteRetry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
	)
}

// RecordCorrection upserts a correction. The same (document, field,
// corrected value) triple updates the existing row instead of creating a
// duplicate. It reports whether a new row was created.
func (s *Store) RecordCorrection(ctx context.Context, c Correction) (bool, error) {
	if c.DocumentID == "" || c.FieldID == "" {
		return false, fmt.Errorf("correction requires document_id and field_id")
	}
	if strings.TrimSpace(c.CorrectedValue) == "" {
		return false, fmt.Errorf("correction requires a corrected value")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	var inserted bool
	err := withWriteRetry(ctx, func() error {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM corrections WHERE document_id = ? AND field_id = ? AND corrected_value = ?)`,
			c.DocumentID, c.FieldID, c.CorrectedValue).Scan(&exists)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO corrections (id, document_id, template_id, field_id, field_name, original_value, corrected_value, context, actor_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(document_id, field_id, corrected_value) DO UPDATE SET
				original_value = excluded.original_value,
				field_name     = excluded.field_name,
				context        = excluded.context,
				actor_id       = excluded.actor_id,
				created_at     = excluded.created_at`,
			c.ID, c.DocumentID, c.TemplateID, c.FieldID, c.FieldName,
			c.OriginalValue, c.CorrectedValue, c.Context, c.ActorID, c.CreatedAt)
		inserted = !exists
		return err
	})
	if err != nil {
		return false, fmt.Errorf("recording correction: %w", err)
	}
	return inserted, nil
}

// MarkApplied flags a field's unapplied corrections as consumed. It returns
// how many rows were marked.
func (s *Store) MarkApplied(ctx context.Context, fieldID string) (int64, error) {
	var marked int64
	err := withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE corrections SET applied = 1, applied_at = ? WHERE field_id = ? AND applied = 0`,
			time.Now().UTC(), fieldID)
		if err != nil {
			return err
		}
		marked, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("marking corrections applied for field %s: %w", fieldID, err)
	}
	return marked, nil
}

// CorrectedValues returns the field's most recent corrected values, newest
// first, capped at limit.
func (s *Store) CorrectedValues(ctx context.Context, fieldID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT corrected_value FROM corrections WHERE field_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		fieldID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading corrections for field %s: %w", fieldID, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// CorrectionCount returns how many corrections a field has accumulated.
func (s *Store) CorrectionCount(ctx context.Context, fieldID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM corrections WHERE field_id = ?`, fieldID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting corrections for field %s: %w", fieldID, err)
	}
	return n, nil
}

// UpsertHint writes a hint row, replacing any previous hint of the same
// type for the field. Re-running with identical input is a no-op apart from
// the timestamp.
func (s *Store) UpsertHint(ctx context.Context, h Hint) error {
	if h.FieldID == "" || h.HintType == "" {
		return fmt.Errorf("hint requires field_id and hint_type")
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = time.Now().UTC()
	}

	err := withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO field_hints (id, template_id, field_id, hint_type, payload, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(field_id, hint_type) DO UPDATE SET
				template_id = excluded.template_id,
				payload     = excluded.payload,
				updated_at  = excluded.updated_at`,
			h.ID, h.TemplateID, h.FieldID, h.HintType, string(h.Payload), h.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("upserting hint for field %s: %w", h.FieldID, err)
	}
	return nil
}

// HintForField returns the hint of the given type, or nil when none exists.
func (s *Store) HintForField(ctx context.Context, fieldID, hintType string) (*Hint, error) {
	var h Hint
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, template_id, field_id, hint_type, payload, updated_at
		 FROM field_hints WHERE field_id = ? AND hint_type = ?`,
		fieldID, hintType).Scan(&h.ID, &h.TemplateID, &h.FieldID, &h.HintType, &payload, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading hint for field %s: %w", fieldID, err)
	}
	h.Payload = json.RawMessage(payload)
	return &h, nil
}

// HintsForTemplate returns all hint rows stored for a template.
func (s *Store) HintsForTemplate(ctx context.Context, templateID string) ([]Hint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_id, field_id, hint_type, payload, updated_at
		 FROM field_hints WHERE template_id = ? ORDER BY field_id, hint_type`,
		templateID)
	if err != nil {
		return nil, fmt.Errorf("loading hints for template %s: %w", templateID, err)
	}
	defer rows.Close()

	var hints []Hint
	for rows.Next() {
		var h Hint
		var payload string
		if err := rows.Scan(&h.ID, &h.TemplateID, &h.FieldID, &h.HintType, &payload, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.Payload = json.RawMessage(payload)
		hints = append(hints, h)
	}
	return hints, rows.Err()
}

// SaveLearningState upserts the per-field learning bookkeeping row.
func (s *Store) SaveLearningState(ctx context.Context, st LearningState) error {
	err := withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO field_learning (field_id, template_id, correction_count, inferred_type, last_learned_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(field_id) DO UPDATE SET
				template_id      = excluded.template_id,
				correction_count = excluded.correction_count,
				inferred_type    = excluded.inferred_type,
				last_learned_at  = excluded.last_learned_at`,
			st.FieldID, st.TemplateID, st.CorrectionCount, st.InferredType, st.LastLearnedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving learning state for field %s: %w", st.FieldID, err)
	}
	return nil
}

// LearningStateFor returns the bookkeeping row for a field, or nil.
func (s *Store) LearningStateFor(ctx context.Context, fieldID string) (*LearningState, error) {
	var st LearningState
	err := s.db.QueryRowContext(ctx,
		`SELECT field_id, template_id, correction_count, inferred_type, last_learned_at
		 FROM field_learning WHERE field_id = ?`,
		fieldID).Scan(&st.FieldID, &st.TemplateID, &st.CorrectionCount, &st.InferredType, &st.LastLearnedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading learning state for field %s: %w", fieldID, err)
	}
	return &st, nil
}
