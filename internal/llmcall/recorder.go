package llmcall

import (
	"context"
	"log/slog"

	"github.com/fieldlens/fieldlens/internal/providers"
)

// Recorder writes call records as extraction stages complete. Recording is
// best effort; a failed write is logged and never fails the pipeline.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger.With("component", "llmcall")}
}

// Record captures one model call.
func (r *Recorder) Record(ctx context.Context, stage, documentID string, result *providers.ChatResult) {
	if r == nil || r.store == nil {
		return
	}
	call := FromChatResult(stage, documentID, result)
	if call == nil {
		return
	}
	if err := r.store.Insert(ctx, call); err != nil {
		r.logger.Warn("failed to record llm call",
			"stage", stage, "document", documentID, "error", err)
	}
}
