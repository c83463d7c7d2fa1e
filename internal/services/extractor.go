package services

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"examdeck/internal/models"
)

// headerPattern marks the start of a new question. The scrape emits one
// such line per question; everything until the next marker is body text.
var headerPattern = regexp.MustCompile(`Topic \d+ Question #\d+`)

// ExtractorService turns raw scraped text into question records.
type ExtractorService struct {
	pdf *PDFService
}

func NewExtractorService(pdf *PDFService) *ExtractorService {
	return &ExtractorService{pdf: pdf}
}

// FromLines scans an ordered line sequence and produces one question per
// marker line. Body lines accumulate verbatim with a trailing newline;
// lines before the first marker are discarded.
func (s *ExtractorService) FromLines(lines []string) []*models.Question {
	var questions []*models.Question
	var current *models.Question

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if headerPattern.MatchString(line) {
			current = &models.Question{Header: line}
			questions = append(questions, current)
			continue
		}
		if current != nil {
			current.Raw += line + "\n"
		}
	}
	return questions
}

// FromReader scans r line by line.
func (s *ExtractorService) FromReader(r io.Reader) ([]*models.Question, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return s.FromLines(lines), nil
}

// FromFiles processes the given sources in order and concatenates their
// questions into one sequence. PDF dumps are converted to plain text
// first; anything else is read as text. Duplicate headers across files
// are kept here; the store's unique-key upsert deduplicates later.
func (s *ExtractorService) FromFiles(paths []string) ([]*models.Question, error) {
	var questions []*models.Question
	for _, path := range paths {
		var text string
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			if s.pdf == nil {
				return nil, fmt.Errorf("pdf source %s: no pdf reader configured", path)
			}
			extracted, err := s.pdf.ExtractText(path)
			if err != nil {
				return nil, fmt.Errorf("extract pdf %s: %w", path, err)
			}
			text = extracted
		} else {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			text = string(data)
		}
		questions = append(questions, s.FromLines(strings.Split(text, "\n"))...)
	}
	return questions, nil
}
