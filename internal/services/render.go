package services

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"examdeck/internal/models"
	"examdeck/pkg/ankiconnect"
)

// DefaultTag is attached to every rendered note.
const DefaultTag = "examdeck"

// discussionGlyph is the private-use icon the scrape source prints in
// front of discussion-thread lines.
const discussionGlyph = "\uf147"

// noisePrefixes and noiseMarkers identify the community-discussion tail
// appended after the question body by the scrape. The first matching
// line truncates the front content.
var (
	noisePrefixes = []string{
		"correct answer:",
		"references:",
		"select and place:",
		"http://",
		"https://",
	}
	noiseMarkers = []string{
		"highly voted",
		"upvoted",
		"most recent",
	}
)

// RenderOptions carries the note identity supplied by configuration.
type RenderOptions struct {
	DeckName  string
	ModelName string
	Tags      []string
}

// NoteRenderer converts enriched questions into front/back flashcards.
type NoteRenderer struct {
	opts RenderOptions
}

func NewNoteRenderer(opts RenderOptions) *NoteRenderer {
	return &NoteRenderer{opts: opts}
}

// Render builds the note for one question, or nil when the question has
// neither a decoded result nor any raw AI text to show.
func (r *NoteRenderer) Render(q *models.Question) *ankiconnect.Note {
	if q.AIResult.Empty() && strings.TrimSpace(q.AIRaw) == "" {
		return nil
	}

	tags := make([]string, 0, len(r.opts.Tags)+1)
	tags = append(tags, DefaultTag)
	tags = append(tags, r.opts.Tags...)

	return &ankiconnect.Note{
		DeckName:  r.opts.DeckName,
		ModelName: r.opts.ModelName,
		Fields: ankiconnect.Fields{
			Front: r.renderFront(q),
			Back:  r.renderBack(q),
		},
		Tags: tags,
	}
}

func (r *NoteRenderer) renderFront(q *models.Question) string {
	lines := cleanRawLines(q.Raw)
	escaped := make([]string, len(lines))
	for i, line := range lines {
		escaped[i] = html.EscapeString(line)
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(escaped, "<br>\n"))

	if q.AIResult != nil && len(q.AIResult.Options) > 0 {
		sb.WriteString("<br><br>\n")
		sb.WriteString(renderOptions(q.AIResult.Options, nil))
	}

	sb.WriteString(caption(q.Header))
	return sb.String()
}

func (r *NoteRenderer) renderBack(q *models.Question) string {
	var sections []string
	result := q.AIResult

	if result != nil {
		if result.Question != "" {
			sections = append(sections, "<b>"+escapeMultiline(result.Question)+"</b>")
		}
		if len(result.Options) > 0 {
			sections = append(sections, renderOptions(result.Options, correctSet(result.CorrectAnswer)))
		}
		if result.CorrectAnswer != "" {
			answer := "Correct answer: <b>" + html.EscapeString(result.CorrectAnswer) + "</b>"
			if result.CorrectAnswerText != "" {
				answer += "<br>\n" + escapeMultiline(result.CorrectAnswerText)
			}
			sections = append(sections, answer)
		} else if result.CorrectAnswerText != "" {
			sections = append(sections, escapeMultiline(result.CorrectAnswerText))
		}
		if result.Explanation != "" {
			sections = append(sections, escapeMultiline(result.Explanation))
		}
		if result.Topic != "" {
			sections = append(sections, "<i>"+html.EscapeString(result.Topic)+"</i>")
		}
		if len(result.Notes) > 0 {
			var sb strings.Builder
			sb.WriteString("<ul>\n")
			for _, note := range result.Notes {
				sb.WriteString("<li>" + escapeMultiline(note) + "</li>\n")
			}
			sb.WriteString("</ul>")
			sections = append(sections, sb.String())
		}
	}

	// Nothing decoded: show the verbatim reply so the information is
	// never silently lost.
	if result.Empty() {
		sections = append(sections, "<pre>"+html.EscapeString(q.AIRaw)+"</pre>")
	}

	return strings.Join(sections, "<br><br>\n") + caption(q.Header)
}

// cleanRawLines drops leading blank lines and truncates the body at the
// first discussion-noise line, trimming what remains.
func cleanRawLines(raw string) []string {
	lines := strings.Split(raw, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	lines = lines[start:]

	var out []string
	for _, line := range lines {
		if isNoiseLine(line) {
			break
		}
		out = append(out, strings.TrimSpace(line))
	}

	// Trailing blanks add nothing once the tail is cut.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func isNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, marker := range noiseMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.HasPrefix(trimmed, discussionGlyph)
}

// renderOptions lists options in ascending letter order regardless of
// the map's internal order, marking letters present in the correct set.
func renderOptions(options map[string]string, correct map[string]bool) string {
	letters := make([]string, 0, len(options))
	for letter := range options {
		letters = append(letters, letter)
	}
	sort.Slice(letters, func(i, j int) bool {
		return strings.ToUpper(letters[i]) < strings.ToUpper(letters[j])
	})

	var sb strings.Builder
	for i, letter := range letters {
		if i > 0 {
			sb.WriteString("<br>\n")
		}
		item := fmt.Sprintf("%s. %s",
			html.EscapeString(strings.ToUpper(letter)),
			html.EscapeString(options[letter]))
		if correct[strings.ToUpper(strings.TrimSpace(letter))] {
			item = "<b>" + item + " ✓</b>"
		}
		sb.WriteString(item)
	}
	return sb.String()
}

// correctSet splits a comma-separated answer like "A, C" into a
// case-folded letter set.
func correctSet(correctAnswer string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(correctAnswer, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			set[part] = true
		}
	}
	return set
}

func caption(header string) string {
	return "<br><br>\n<small>" + html.EscapeString(header) + "</small>"
}

func escapeMultiline(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>\n")
}
