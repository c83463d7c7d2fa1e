package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
// Safe to call on every start; migrations are idempotent.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=1", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS questions (
			header TEXT PRIMARY KEY,
			raw TEXT NOT NULL DEFAULT '',
			ai_raw TEXT NOT NULL DEFAULT '',
			ai_question TEXT NOT NULL DEFAULT '',
			ai_options TEXT NOT NULL DEFAULT '',
			ai_correct_answer TEXT NOT NULL DEFAULT '',
			ai_correct_answer_text TEXT NOT NULL DEFAULT '',
			ai_topic TEXT NOT NULL DEFAULT '',
			ai_explanation TEXT NOT NULL DEFAULT '',
			ai_notes TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS review_cards (
			header TEXT PRIMARY KEY,
			due DATETIME,
			stability REAL NOT NULL DEFAULT 0,
			difficulty REAL NOT NULL DEFAULT 0,
			elapsed_days INTEGER NOT NULL DEFAULT 0,
			scheduled_days INTEGER NOT NULL DEFAULT 0,
			reps INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			state INTEGER NOT NULL DEFAULT 0,
			last_review DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(header) REFERENCES questions(header) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_questions_enriched ON questions(ai_raw, ai_question);`,
		`CREATE INDEX IF NOT EXISTS idx_review_cards_due ON review_cards(due);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}
