package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"lecture-quiz/internal/models"
)

// Generator turns transcript text into quiz questions. Output that cannot be
// parsed is reported wrapping models.ErrInvalidQuiz; provider failures are
// classified with the failure package.
type Generator interface {
	Generate(ctx context.Context, text string, cfg PromptConfig) (models.Quiz, error)
}

type PromptConfig struct {
	QuestionCount      int
	OptionsPerQuestion int
	// Language of the questions; empty means the transcript's language.
	Language string
	// MaxTranscriptChars truncates very long transcripts before prompting.
	MaxTranscriptChars int
}

func (c PromptConfig) withDefaults() PromptConfig {
	if c.QuestionCount <= 0 {
		c.QuestionCount = 10
	}
	if c.OptionsPerQuestion < 2 {
		c.OptionsPerQuestion = 4
	}
	if c.MaxTranscriptChars <= 0 {
		c.MaxTranscriptChars = 100_000
	}
	return c
}

// BuildPrompt returns the system and user prompts for one generation call.
func BuildPrompt(transcript string, cfg PromptConfig) (string, string) {
	cfg = cfg.withDefaults()

	systemPrompt := `You write multiple choice quizzes for university lectures.
Use only facts stated in the transcript. Do not invent information.
Every question has exactly one correct answer.
Return valid JSON only, with no extra text.`

	transcript = truncate(transcript, cfg.MaxTranscriptChars)

	language := "the same language as the transcript"
	if cfg.Language != "" {
		language = cfg.Language
	}

	userPrompt := fmt.Sprintf(`Generate %d multiple choice questions from this lecture transcript.

Transcript:
"""
%s
"""

Rules:
- Each question has exactly %d answer options.
- Exactly one option per question has "is_correct": true.
- Write questions and options in %s.

Return JSON in exactly this format:

{
  "questions": [
    {
      "prompt": "question text",
      "options": [
        {"text": "option A", "is_correct": false},
        {"text": "option B", "is_correct": true}
      ]
    }
  ]
}`, cfg.QuestionCount, transcript, cfg.OptionsPerQuestion, language)

	return systemPrompt, userPrompt
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type rawOption struct {
	Text      string `json:"text"`
	IsCorrect *bool  `json:"is_correct"`
	Correct   *bool  `json:"correct"`
}

type rawQuestion struct {
	Prompt   string      `json:"prompt"`
	Question string      `json:"question"`
	Options  []rawOption `json:"options"`
	Answers  []rawOption `json:"answers"`
}

type rawPayload struct {
	Questions []rawQuestion `json:"questions"`
}

// ParsePayload decodes model output into quiz questions. It accepts JSON
// wrapped in a markdown code fence and a few common field spellings, and
// does not validate the result.
func ParsePayload(content string) ([]models.Question, error) {
	var payload rawPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		extracted := extractJSONFromMarkdown(content)
		if err := json.Unmarshal([]byte(extracted), &payload); err != nil {
			return nil, fmt.Errorf("%w: response is not JSON: %v", models.ErrInvalidQuiz, err)
		}
	}

	questions := make([]models.Question, 0, len(payload.Questions))
	for _, rq := range payload.Questions {
		q := models.Question{Prompt: strings.TrimSpace(rq.Prompt)}
		if q.Prompt == "" {
			q.Prompt = strings.TrimSpace(rq.Question)
		}
		opts := rq.Options
		if len(opts) == 0 {
			opts = rq.Answers
		}
		for _, ro := range opts {
			correct := false
			if ro.IsCorrect != nil {
				correct = *ro.IsCorrect
			} else if ro.Correct != nil {
				correct = *ro.Correct
			}
			q.Options = append(q.Options, models.AnswerOption{Text: strings.TrimSpace(ro.Text), IsCorrect: correct})
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// extractJSONFromMarkdown strips a surrounding ``` or ```json fence, and
// otherwise falls back to the outermost {...} span.
func extractJSONFromMarkdown(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		return strings.TrimSpace(content)
	}
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		return strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
