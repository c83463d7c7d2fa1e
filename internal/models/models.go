package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// Question is one scraped exam question, keyed by the verbatim
// "Topic N Question #M" marker line that introduced it.
type Question struct {
	Header    string
	Raw       string
	AIRaw     string
	AIResult  *AIResult
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AIResult holds the structured content decoded from a model reply.
// Every field is independently optional; a partially decodable reply
// still yields a usable result.
type AIResult struct {
	Question          string            `json:"question,omitempty"`
	Options           map[string]string `json:"options,omitempty"`
	CorrectAnswer     string            `json:"correctAnswer,omitempty"`
	CorrectAnswerText string            `json:"correctAnswerText,omitempty"`
	Topic             string            `json:"topic,omitempty"`
	Explanation       string            `json:"explanation,omitempty"`
	Notes             []string          `json:"notes,omitempty"`
}

// Empty reports whether no field decoded at all.
func (r *AIResult) Empty() bool {
	return r == nil || (r.Question == "" && len(r.Options) == 0 &&
		r.CorrectAnswer == "" && r.CorrectAnswerText == "" &&
		r.Topic == "" && r.Explanation == "" && len(r.Notes) == 0)
}

// HasAIResult mirrors the store's skip predicate for in-memory records:
// the question counts as enriched once a reply was recorded or a
// restated question decoded.
func (q *Question) HasAIResult() bool {
	if q.AIRaw != "" {
		return true
	}
	return q.AIResult != nil && q.AIResult.Question != ""
}

// ReviewCard carries FSRS scheduling state for local review of one
// enriched question.
type ReviewCard struct {
	Header        string
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *ReviewCard) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   uint64(max(c.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.ScheduledDays, 0)),
		Reps:          uint64(max(c.Reps, 0)),
		Lapses:        uint64(max(c.Lapses, 0)),
		State:         fsrs.State(max(c.State, 0)),
	}
	if c.Due.Valid {
		card.Due = c.Due.Time
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	return card
}

func (c *ReviewCard) ApplyFSRSCard(f fsrs.Card) {
	c.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.ElapsedDays = int(f.ElapsedDays)
	c.ScheduledDays = int(f.ScheduledDays)
	c.Reps = int(f.Reps)
	c.Lapses = int(f.Lapses)
	c.State = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}

func max[T ~int | ~int32 | ~int64](a, b T) T {
	if a > b {
		return a
	}
	return b
}
