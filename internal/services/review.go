package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"examdeck/internal/models"
)

var (
	// ErrNoDueCards indicates that there are no cards ready to review.
	ErrNoDueCards = errors.New("no due cards")
)

// ReviewService schedules local spaced-repetition review of enriched
// questions with FSRS, for when no Anki instance is around.
type ReviewService struct {
	db     *sql.DB
	params fsrs.Parameters
}

func NewReviewService(db *sql.DB) *ReviewService {
	return &ReviewService{db: db, params: fsrs.DefaultParam()}
}

// Seed creates review cards for enriched questions that have none yet,
// due immediately. Returns how many cards were created.
func (s *ReviewService) Seed(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO review_cards (header, due, state, created_at, updated_at)
		SELECT q.header, ?, ?, ?, ?
		FROM questions q
		WHERE `+enrichedPredicate+`
		  AND NOT EXISTS (SELECT 1 FROM review_cards r WHERE r.header = q.header);
	`, now, int(fsrs.New), now, now)
	if err != nil {
		return 0, fmt.Errorf("seed review cards: %w", err)
	}
	created, _ := res.RowsAffected()
	return int(created), nil
}

// NextCard returns the next card to review: the earliest due card, or
// failing that the oldest never-scheduled one.
func (s *ReviewService) NextCard(ctx context.Context) (*models.ReviewCard, error) {
	now := time.Now().UTC()

	card, err := s.fetchCard(ctx, `
		SELECT header, due, stability, difficulty, elapsed_days, scheduled_days,
		       reps, lapses, state, last_review, created_at, updated_at
		FROM review_cards
		WHERE due IS NOT NULL AND due <= ?
		ORDER BY due ASC
		LIMIT 1;
	`, now)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	card, err = s.fetchCard(ctx, `
		SELECT header, due, stability, difficulty, elapsed_days, scheduled_days,
		       reps, lapses, state, last_review, created_at, updated_at
		FROM review_cards
		WHERE due IS NULL
		ORDER BY created_at ASC
		LIMIT 1;
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDueCards
		}
		return nil, err
	}
	return card, nil
}

func (s *ReviewService) fetchCard(ctx context.Context, query string, args ...any) (*models.ReviewCard, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	card := &models.ReviewCard{}
	if err := row.Scan(
		&card.Header,
		&card.Due,
		&card.Stability,
		&card.Difficulty,
		&card.ElapsedDays,
		&card.ScheduledDays,
		&card.Reps,
		&card.Lapses,
		&card.State,
		&card.LastReview,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return card, nil
}

// ReviewCard applies the user's rating and reschedules the card.
func (s *ReviewService) ReviewCard(ctx context.Context, header string, rating fsrs.Rating) (*models.ReviewCard, error) {
	card, err := s.fetchCard(ctx, `
		SELECT header, due, stability, difficulty, elapsed_days, scheduled_days,
		       reps, lapses, state, last_review, created_at, updated_at
		FROM review_cards
		WHERE header = ?;
	`, header)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("review card %q not found", header)
		}
		return nil, fmt.Errorf("load review card %q: %w", header, err)
	}

	now := time.Now().UTC()
	scheduling := s.params.Repeat(card.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		return nil, fmt.Errorf("rating %d not supported", rating)
	}
	card.ApplyFSRSCard(info.Card)
	card.UpdatedAt = now

	if _, err := s.db.ExecContext(ctx, `
		UPDATE review_cards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?,
		    scheduled_days = ?, reps = ?, lapses = ?, state = ?,
		    last_review = ?, updated_at = ?
		WHERE header = ?;
	`,
		nullTimeArg(card.Due),
		card.Stability,
		card.Difficulty,
		card.ElapsedDays,
		card.ScheduledDays,
		card.Reps,
		card.Lapses,
		card.State,
		nullTimeArg(card.LastReview),
		card.UpdatedAt,
		card.Header,
	); err != nil {
		return nil, fmt.Errorf("update review card %q: %w", header, err)
	}
	return card, nil
}

// DueCount returns how many cards are due now.
func (s *ReviewService) DueCount(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_cards WHERE due IS NOT NULL AND due <= ?;
	`, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("count due cards: %w", err)
	}
	return count, nil
}

func nullTimeArg(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
