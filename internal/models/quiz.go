package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Transcript struct {
	JobID        string   `dynamodbav:"job_id" json:"job_id"`
	Text         string   `dynamodbav:"text" json:"text"`
	LanguageCode string   `dynamodbav:"language_code" json:"language_code,omitempty"`
	Confidence   *float64 `dynamodbav:"confidence,omitempty" json:"confidence,omitempty"`
}

type AnswerOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	Prompt  string         `json:"prompt"`
	Options []AnswerOption `json:"options"`
}

type QuizSource struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type Quiz struct {
	JobID        string     `json:"job_id"`
	Source       QuizSource `json:"source"`
	LanguageCode string     `json:"language_code,omitempty"`
	Questions    []Question `json:"questions"`
	GeneratedAt  int64      `json:"generated_at"`
}

// ErrInvalidQuiz marks structurally unusable generator output.
var ErrInvalidQuiz = errors.New("invalid quiz")

// Validate checks the quiz has at least one question, every question has a
// prompt, at least two options and exactly one correct option.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidQuiz)
	}
	for i, question := range q.Questions {
		if strings.TrimSpace(question.Prompt) == "" {
			return fmt.Errorf("%w: question %d has empty prompt", ErrInvalidQuiz, i+1)
		}
		if len(question.Options) < 2 {
			return fmt.Errorf("%w: question %d has %d options", ErrInvalidQuiz, i+1, len(question.Options))
		}
		correct := 0
		for _, opt := range question.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: question %d has %d correct options", ErrInvalidQuiz, i+1, correct)
		}
	}
	return nil
}

func EncodeQuiz(q Quiz) ([]byte, error) {
	return json.MarshalIndent(q, "", "  ")
}

func DecodeQuiz(b []byte) (Quiz, error) {
	var q Quiz
	if err := json.Unmarshal(b, &q); err != nil {
		return Quiz{}, err
	}
	return q, nil
}
