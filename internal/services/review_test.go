package services_test

import (
	"context"
	"errors"
	"testing"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"examdeck/internal/models"
	"examdeck/internal/services"
)

func seedEnriched(t *testing.T, store *services.QuestionService, headers ...string) {
	t.Helper()
	ctx := context.Background()
	for _, header := range headers {
		q := &models.Question{Header: header, Raw: "Body\n", AIRaw: "reply"}
		if err := store.Upsert(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReviewSeedOnlyEnriched(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	store := services.NewQuestionService(conn)
	review := services.NewReviewService(conn)

	seedEnriched(t, store, "Topic 1 Question #1", "Topic 1 Question #2")
	plain := &models.Question{Header: "Topic 1 Question #3", Raw: "Body\n"}
	if err := store.Upsert(ctx, plain); err != nil {
		t.Fatal(err)
	}

	created, err := review.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2 (unenriched question excluded)", created)
	}

	// Seeding again creates nothing new.
	created, err = review.Seed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Errorf("re-seed created %d cards, want 0", created)
	}

	due, err := review.DueCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if due != 2 {
		t.Errorf("due = %d, want 2 (new cards due immediately)", due)
	}
}

func TestReviewNextCardEmpty(t *testing.T) {
	review := services.NewReviewService(openTestDB(t))
	_, err := review.NextCard(context.Background())
	if !errors.Is(err, services.ErrNoDueCards) {
		t.Fatalf("expected ErrNoDueCards, got %v", err)
	}
}

func TestReviewCardReschedules(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	store := services.NewQuestionService(conn)
	review := services.NewReviewService(conn)

	seedEnriched(t, store, "Topic 1 Question #1")
	if _, err := review.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	card, err := review.NextCard(ctx)
	if err != nil {
		t.Fatalf("next card: %v", err)
	}
	if card.Header != "Topic 1 Question #1" {
		t.Fatalf("unexpected card %q", card.Header)
	}

	updated, err := review.ReviewCard(ctx, card.Header, fsrs.Good)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if updated.Reps < 1 {
		t.Errorf("reps = %d, want at least 1", updated.Reps)
	}
	if !updated.Due.Valid || !updated.Due.Time.After(card.Due.Time) {
		t.Errorf("due not pushed into the future: %+v", updated.Due)
	}
	if !updated.LastReview.Valid {
		t.Error("last review timestamp not recorded")
	}

	// The rescheduled card is no longer due.
	due, err := review.DueCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if due != 0 {
		t.Errorf("due = %d after a Good review, want 0", due)
	}
}

func TestReviewAgainKeepsCardDueSoon(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	store := services.NewQuestionService(conn)
	review := services.NewReviewService(conn)

	seedEnriched(t, store, "Topic 1 Question #1")
	if _, err := review.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	card, err := review.NextCard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	updated, err := review.ReviewCard(ctx, card.Header, fsrs.Again)
	if err != nil {
		t.Fatal(err)
	}
	// An Again keeps the card in learning with an intra-day interval.
	if updated.ScheduledDays != 0 {
		t.Errorf("scheduled days = %d after Again, want 0", updated.ScheduledDays)
	}
}

func TestReviewUnknownCard(t *testing.T) {
	review := services.NewReviewService(openTestDB(t))
	if _, err := review.ReviewCard(context.Background(), "Topic 0 Question #0", fsrs.Good); err == nil {
		t.Fatal("expected error for unknown card")
	}
}
