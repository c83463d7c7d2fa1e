package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"examdeck/pkg/ankiconnect"
)

// SyncService pushes rendered notes to an AnkiConnect target. Any
// failure dumps the full batch to a local recovery file so no work is
// lost.
type SyncService struct {
	client       *ankiconnect.Client
	recoveryFile string
	logger       *slog.Logger
}

func NewSyncService(client *ankiconnect.Client, recoveryFile string, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{client: client, recoveryFile: recoveryFile, logger: logger}
}

// Push checks target liveness first and only then submits the whole
// batch in one request. On any failure the batch is dumped to the
// recovery file and the target's error is reported; the push is
// all-or-nothing. Success returns the per-note result list unchanged.
func (s *SyncService) Push(ctx context.Context, notes []ankiconnect.Note) ([]*int64, error) {
	if len(notes) == 0 {
		return nil, nil
	}

	if _, err := s.client.Version(ctx); err != nil {
		s.dump(notes)
		return nil, fmt.Errorf("anki target not reachable: %w", err)
	}

	ids, err := s.client.AddNotes(ctx, notes)
	if err != nil {
		s.dump(notes)
		return nil, fmt.Errorf("push notes: %w", err)
	}
	return ids, nil
}

// ExportOnly writes the notes as a JSON array to path, the same format
// the recovery dump uses, for manual re-import.
func (s *SyncService) ExportOnly(notes []ankiconnect.Note, path string) error {
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write notes to %s: %w", path, err)
	}
	return nil
}

// dump is best-effort: a failure here is logged and must not mask the
// sync error being reported to the caller.
func (s *SyncService) dump(notes []ankiconnect.Note) {
	path := s.recoveryFile
	if path == "" {
		path = fmt.Sprintf("anki-recovery-%s.json", uuid.NewString())
	}
	if err := s.ExportOnly(notes, path); err != nil {
		s.logger.Error("write recovery file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Warn("notes dumped to recovery file",
		slog.String("path", path),
		slog.Int("count", len(notes)))
}
