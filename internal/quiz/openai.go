package quiz

import (
	"context"
	"fmt"
	"log"

	"lecture-quiz/internal/failure"
	"lecture-quiz/internal/models"

	"github.com/sashabaranov/go-openai"
)

type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator requests a quiz from the OpenAI chat completions API in
// JSON mode.
type OpenAIGenerator struct {
	api   chatAPI
	model string
}

func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{api: openai.NewClient(apiKey), model: model}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, text string, cfg PromptConfig) (models.Quiz, error) {
	systemPrompt, userPrompt := BuildPrompt(text, cfg)

	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.Quiz{}, failure.FromOpenAI(ctx, "openai.CreateChatCompletion", err)
	}

	log.Println("quiz: openai usage",
		"model=", g.model,
		"prompt_tokens=", resp.Usage.PromptTokens,
		"completion_tokens=", resp.Usage.CompletionTokens,
	)

	if len(resp.Choices) == 0 {
		return models.Quiz{}, fmt.Errorf("%w: OpenAI returned no choices", models.ErrInvalidQuiz)
	}

	questions, err := ParsePayload(resp.Choices[0].Message.Content)
	if err != nil {
		return models.Quiz{}, err
	}
	return models.Quiz{Questions: questions}, nil
}
