package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/urfave/cli/v3"

	"examdeck/internal/config"
	"examdeck/internal/db"
	"examdeck/internal/models"
	"examdeck/internal/services"
	"examdeck/pkg/ankiconnect"
)

func main() {
	cmd := &cli.Command{
		Name:  "examdeck",
		Usage: "Enrich scraped exam questions with AI-generated study content and push them to Anki",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("EXAMDECK_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			extractCommand(),
			enrichCommand(),
			pushCommand(),
			exportCommand(),
			reviewCommand(),
			statsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type app struct {
	cfg   *config.Config
	conn  *sql.DB
	store *services.QuestionService
}

func newApp(cmd *cli.Command) (*app, error) {
	cfg := config.NewDefault()
	if err := config.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &app{
		cfg:   cfg,
		conn:  conn,
		store: services.NewQuestionService(conn),
	}, nil
}

func (a *app) close() {
	_ = a.conn.Close()
}

func (a *app) extract(ctx context.Context, paths []string) ([]*models.Question, error) {
	if len(paths) == 0 {
		return nil, errors.New("at least one input file is required")
	}
	extractor := services.NewExtractorService(services.NewPDFService())
	return extractor.FromFiles(paths)
}

func (a *app) renderer() *services.NoteRenderer {
	return services.NewNoteRenderer(services.RenderOptions{
		DeckName:  a.cfg.Anki.DeckName,
		ModelName: a.cfg.Anki.ModelName,
		Tags:      a.cfg.Anki.Tags,
	})
}

func (a *app) renderStored(ctx context.Context) ([]ankiconnect.Note, error) {
	questions, err := a.store.List(ctx, true)
	if err != nil {
		return nil, err
	}
	renderer := a.renderer()
	var notes []ankiconnect.Note
	for _, q := range questions {
		if note := renderer.Render(q); note != nil {
			notes = append(notes, *note)
		}
	}
	return notes, nil
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Parse scraped text or PDF dumps and store the raw questions",
		ArgsUsage: "<file>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			questions, err := a.extract(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			for _, q := range questions {
				// Keep any enrichment a previous run already persisted.
				if stored, err := a.store.Get(ctx, q.Header); err == nil {
					q.AIRaw = stored.AIRaw
					q.AIResult = stored.AIResult
				} else if !errors.Is(err, services.ErrQuestionNotFound) {
					return err
				}
				if err := a.store.Upsert(ctx, q); err != nil {
					return err
				}
			}
			fmt.Printf("stored %d questions\n", len(questions))
			return nil
		},
	}
}

func enrichCommand() *cli.Command {
	return &cli.Command{
		Name:      "enrich",
		Usage:     "Parse input files and enrich unprocessed questions with AI content",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of questions to enrich this run (0 = unbounded)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			questions, err := a.extract(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}

			limit := int(cmd.Int("limit"))
			if limit == 0 {
				limit = a.cfg.Enrich.Limit
			}

			provider := services.NewOpenAIProvider(a.cfg.OpenAI)
			pipeline := services.NewEnrichmentService(provider, a.store, slog.Default())
			stats, err := pipeline.Run(ctx, questions, limit)
			fmt.Printf("processed %d, skipped %d, failed %d\n",
				stats.Processed, stats.Skipped, stats.Failed)
			return err
		},
	}
}

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Render stored enriched questions and push them to AnkiConnect",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			notes, err := a.renderStored(ctx)
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				fmt.Println("nothing to push")
				return nil
			}

			client := ankiconnect.NewClient(ankiconnect.Config{
				URL:     a.cfg.Anki.URL,
				Timeout: a.cfg.Anki.Timeout,
			})
			sync := services.NewSyncService(client, a.cfg.Anki.RecoveryFile, slog.Default())
			ids, err := sync.Push(ctx, notes)
			if err != nil {
				return err
			}

			added := 0
			for _, id := range ids {
				if id != nil {
					added++
				}
			}
			fmt.Printf("pushed %d notes, %d added, %d refused\n",
				len(notes), added, len(notes)-added)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Render stored enriched questions to a JSON notes file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file",
				Value:   "notes.json",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			notes, err := a.renderStored(ctx)
			if err != nil {
				return err
			}
			sync := services.NewSyncService(nil, "", slog.Default())
			if err := sync.ExportOnly(notes, cmd.String("out")); err != nil {
				return err
			}
			fmt.Printf("exported %d notes to %s\n", len(notes), cmd.String("out"))
			return nil
		},
	}
}

func reviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Review enriched questions locally with spaced repetition",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			reviews := services.NewReviewService(a.conn)
			created, err := reviews.Seed(ctx)
			if err != nil {
				return err
			}
			if created > 0 {
				fmt.Printf("added %d new cards\n", created)
			}

			return reviewLoop(ctx, a, reviews)
		},
	}
}

func reviewLoop(ctx context.Context, a *app, reviews *services.ReviewService) error {
	input := bufio.NewScanner(os.Stdin)
	for {
		card, err := reviews.NextCard(ctx)
		if err != nil {
			if errors.Is(err, services.ErrNoDueCards) {
				fmt.Println("all caught up")
				return nil
			}
			return err
		}

		q, err := a.store.Get(ctx, card.Header)
		if err != nil {
			return err
		}

		printQuestion(q)
		fmt.Print("\n[enter] to reveal, q to quit: ")
		if !input.Scan() || strings.TrimSpace(input.Text()) == "q" {
			return nil
		}
		printAnswer(q)

		rating, quit := promptRating(input)
		if quit {
			return nil
		}
		if _, err := reviews.ReviewCard(ctx, card.Header, rating); err != nil {
			return err
		}
		fmt.Println()
	}
}

func promptRating(input *bufio.Scanner) (fsrs.Rating, bool) {
	for {
		fmt.Print("rate: 1=again 2=hard 3=good 4=easy, q=quit: ")
		if !input.Scan() {
			return 0, true
		}
		switch strings.TrimSpace(input.Text()) {
		case "1":
			return fsrs.Again, false
		case "2":
			return fsrs.Hard, false
		case "3":
			return fsrs.Good, false
		case "4":
			return fsrs.Easy, false
		case "q":
			return 0, true
		}
	}
}

func printQuestion(q *models.Question) {
	fmt.Printf("--- %s ---\n", q.Header)
	if q.AIResult != nil && q.AIResult.Question != "" {
		fmt.Println(q.AIResult.Question)
	} else {
		fmt.Println(strings.TrimSpace(q.Raw))
	}
	if q.AIResult != nil {
		for _, letter := range sortedLetters(q.AIResult.Options) {
			fmt.Printf("  %s. %s\n", strings.ToUpper(letter), q.AIResult.Options[letter])
		}
	}
}

func printAnswer(q *models.Question) {
	result := q.AIResult
	if result == nil {
		fmt.Println(q.AIRaw)
		return
	}
	if result.CorrectAnswer != "" {
		fmt.Printf("correct: %s", result.CorrectAnswer)
		if result.CorrectAnswerText != "" {
			fmt.Printf(" (%s)", result.CorrectAnswerText)
		}
		fmt.Println()
	}
	if result.Explanation != "" {
		fmt.Println(result.Explanation)
	}
}

func sortedLetters(options map[string]string) []string {
	letters := make([]string, 0, len(options))
	for letter := range options {
		letters = append(letters, letter)
	}
	sort.Slice(letters, func(i, j int) bool {
		return strings.ToUpper(letters[i]) < strings.ToUpper(letters[j])
	})
	return letters
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show store and review counters",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			total, enriched, err := a.store.Counts(ctx)
			if err != nil {
				return err
			}
			due, err := services.NewReviewService(a.conn).DueCount(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("questions: %d\nenriched:  %d\ndue cards: %d\n", total, enriched, due)
			return nil
		},
	}
}
