package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"examdeck/internal/models"
)

// ErrQuestionNotFound indicates that no record exists for a header.
var ErrQuestionNotFound = errors.New("question not found")

// enrichedPredicate is the single source of truth for "has an AI result":
// a reply was recorded or a restated question decoded.
const enrichedPredicate = `(ai_raw != '' OR ai_question != '')`

// QuestionService is the durable header-keyed store of question records.
type QuestionService struct {
	db *sql.DB
}

func NewQuestionService(db *sql.DB) *QuestionService {
	return &QuestionService{db: db}
}

// HasAIResult reports whether the stored record for header counts as
// already enriched. A missing record is simply false.
func (s *QuestionService) HasAIResult(ctx context.Context, header string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM questions
		WHERE header = ? AND `+enrichedPredicate+`;
	`, header).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check ai result for %q: %w", header, err)
	}
	return n > 0, nil
}

// Upsert inserts or replaces the record keyed by header. All fields are
// overwritten unconditionally; updated_at is bumped, created_at is kept
// from the first insert.
func (s *QuestionService) Upsert(ctx context.Context, q *models.Question) error {
	now := time.Now().UTC()

	var aiQuestion, aiOptions, aiCorrect, aiCorrectText, aiTopic, aiExplanation, aiNotes string
	if result := q.AIResult; result != nil {
		aiQuestion = result.Question
		aiCorrect = result.CorrectAnswer
		aiCorrectText = result.CorrectAnswerText
		aiTopic = result.Topic
		aiExplanation = result.Explanation
		if len(result.Options) > 0 {
			data, err := json.Marshal(result.Options)
			if err != nil {
				return fmt.Errorf("serialize options for %q: %w", q.Header, err)
			}
			aiOptions = string(data)
		}
		if len(result.Notes) > 0 {
			data, err := json.Marshal(result.Notes)
			if err != nil {
				return fmt.Errorf("serialize notes for %q: %w", q.Header, err)
			}
			aiNotes = string(data)
		}
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO questions (header, raw, ai_raw, ai_question, ai_options,
			ai_correct_answer, ai_correct_answer_text, ai_topic,
			ai_explanation, ai_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(header) DO UPDATE SET
			raw                    = excluded.raw,
			ai_raw                 = excluded.ai_raw,
			ai_question            = excluded.ai_question,
			ai_options             = excluded.ai_options,
			ai_correct_answer      = excluded.ai_correct_answer,
			ai_correct_answer_text = excluded.ai_correct_answer_text,
			ai_topic               = excluded.ai_topic,
			ai_explanation         = excluded.ai_explanation,
			ai_notes               = excluded.ai_notes,
			updated_at             = excluded.updated_at;
	`, q.Header, q.Raw, q.AIRaw, aiQuestion, aiOptions, aiCorrect,
		aiCorrectText, aiTopic, aiExplanation, aiNotes, now, now); err != nil {
		return fmt.Errorf("upsert question %q: %w", q.Header, err)
	}

	q.UpdatedAt = now
	return nil
}

// Get returns the stored record for header, or ErrQuestionNotFound.
func (s *QuestionService) Get(ctx context.Context, header string) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT header, raw, ai_raw, ai_question, ai_options, ai_correct_answer,
		       ai_correct_answer_text, ai_topic, ai_explanation, ai_notes,
		       created_at, updated_at
		FROM questions WHERE header = ?;
	`, header)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question %q: %w", header, err)
	}
	return q, nil
}

// List returns all stored records, optionally filtered to those that
// count as enriched. Ordered by header for stable CLI output; callers
// must not rely on the order.
func (s *QuestionService) List(ctx context.Context, onlyWithAI bool) ([]*models.Question, error) {
	query := `
		SELECT header, raw, ai_raw, ai_question, ai_options, ai_correct_answer,
		       ai_correct_answer_text, ai_topic, ai_explanation, ai_notes,
		       created_at, updated_at
		FROM questions`
	if onlyWithAI {
		query += ` WHERE ` + enrichedPredicate
	}
	query += ` ORDER BY header;`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

// Counts returns the total and enriched record counts.
func (s *QuestionService) Counts(ctx context.Context) (total, enriched int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions;`).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("count questions: %w", err)
	}
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE `+enrichedPredicate+`;`).Scan(&enriched); err != nil {
		return 0, 0, fmt.Errorf("count enriched questions: %w", err)
	}
	return total, enriched, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	q := &models.Question{}
	result := &models.AIResult{}
	var optionsJSON, notesJSON string
	if err := row.Scan(
		&q.Header,
		&q.Raw,
		&q.AIRaw,
		&result.Question,
		&optionsJSON,
		&result.CorrectAnswer,
		&result.CorrectAnswerText,
		&result.Topic,
		&result.Explanation,
		&notesJSON,
		&q.CreatedAt,
		&q.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if optionsJSON != "" {
		// A corrupt embedded document loses only the options, not the row.
		_ = json.Unmarshal([]byte(optionsJSON), &result.Options)
	}
	if notesJSON != "" {
		_ = json.Unmarshal([]byte(notesJSON), &result.Notes)
	}
	if !result.Empty() {
		q.AIResult = result
	}
	return q, nil
}
