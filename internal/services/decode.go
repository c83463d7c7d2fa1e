package services

import (
	"encoding/json"
	"strings"

	"examdeck/internal/models"
)

// DecodeAIResult tolerantly extracts structured content from a model
// reply. It never fails hard: an empty, prose-only, or malformed reply
// yields nil, and a field of the wrong type is treated as absent.
func DecodeAIResult(text string) *models.AIResult {
	cleaned := extractFenced(text)
	if cleaned == "" {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil
	}
	if doc == nil {
		return nil
	}

	result := &models.AIResult{}
	if s, ok := doc["question"].(string); ok {
		result.Question = s
	}
	if m, ok := doc["options"].(map[string]any); ok {
		options := make(map[string]string)
		for key, value := range m {
			if s, ok := value.(string); ok {
				options[key] = s
			}
		}
		if len(options) > 0 {
			result.Options = options
		}
	}
	if s, ok := doc["correctAnswer"].(string); ok {
		result.CorrectAnswer = s
	}
	if s, ok := doc["correctAnswerText"].(string); ok {
		result.CorrectAnswerText = s
	}
	if s, ok := doc["topic"].(string); ok {
		result.Topic = s
	}
	if s, ok := doc["explanation"].(string); ok {
		result.Explanation = s
	}
	if arr, ok := doc["notes"].([]any); ok {
		var notes []string
		for _, value := range arr {
			if s, ok := value.(string); ok {
				notes = append(notes, s)
			}
		}
		result.Notes = notes
	}
	return result
}

// extractFenced isolates machine-readable content from surrounding
// prose. A ```json fence wins over a generic fence; without any fence
// the whole trimmed text is used. A missing closing fence takes
// everything after the opener.
func extractFenced(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	if idx := indexJSONFence(trimmed); idx != -1 {
		rest := trimmed[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	if idx := strings.Index(trimmed, "```"); idx != -1 {
		rest := trimmed[idx+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	return trimmed
}

// indexJSONFence returns the byte offset of the first ```json opener,
// matching the tag case-insensitively, or -1. Offsets must come from the
// string itself: an offset into a ToLower copy diverges once any rune
// changes byte width under case conversion.
func indexJSONFence(s string) int {
	for start := 0; ; {
		idx := strings.Index(s[start:], "```")
		if idx == -1 {
			return -1
		}
		idx += start
		tail := s[idx+3:]
		if len(tail) >= len("json") && strings.EqualFold(tail[:len("json")], "json") {
			return idx
		}
		start = idx + 3
	}
}
