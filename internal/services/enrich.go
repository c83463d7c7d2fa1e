package services

import (
	"context"
	"fmt"
	"log/slog"

	"examdeck/internal/models"
)

// EnrichStats summarizes one enrichment run.
type EnrichStats struct {
	Processed int
	Skipped   int
	Failed    int
}

// EnrichmentService drives the enrich-and-persist loop over extracted
// questions. Strictly sequential: one AI call and one upsert at a time.
type EnrichmentService struct {
	provider AIProvider
	store    *QuestionService
	logger   *slog.Logger
}

func NewEnrichmentService(provider AIProvider, store *QuestionService, logger *slog.Logger) *EnrichmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichmentService{provider: provider, store: store, logger: logger}
}

// Run enriches questions in the given order. Already-enriched questions
// are skipped without touching the provider; limit bounds successful
// enrichments only (0 means unbounded) and is checked before each item.
// A provider failure is logged and the item stays eligible for the next
// run; a persistence failure aborts the run.
func (s *EnrichmentService) Run(ctx context.Context, questions []*models.Question, limit int) (EnrichStats, error) {
	var stats EnrichStats

	for _, q := range questions {
		if limit > 0 && stats.Processed >= limit {
			break
		}

		enriched, err := s.store.HasAIResult(ctx, q.Header)
		if err != nil {
			return stats, fmt.Errorf("check %q: %w", q.Header, err)
		}
		if enriched {
			stats.Skipped++
			continue
		}

		reply, err := s.provider.Run(ctx, q.Raw)
		if err != nil {
			stats.Failed++
			s.logger.Error("enrichment failed",
				slog.String("header", q.Header),
				slog.String("error", err.Error()))
			continue
		}

		q.AIRaw = reply
		q.AIResult = DecodeAIResult(reply)
		if q.AIResult == nil {
			s.logger.Warn("reply did not decode, keeping raw text",
				slog.String("header", q.Header))
		}

		// Persist before moving on so a crash loses at most this item.
		if err := s.store.Upsert(ctx, q); err != nil {
			return stats, fmt.Errorf("persist %q: %w", q.Header, err)
		}
		stats.Processed++
	}

	return stats, nil
}
