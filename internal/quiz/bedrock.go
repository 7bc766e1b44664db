package quiz

import (
	"context"
	"fmt"
	"log"
	"strings"

	"lecture-quiz/internal/failure"
	"lecture-quiz/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type converseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockGenerator asks a Bedrock-hosted model for a quiz via the Converse API.
type BedrockGenerator struct {
	api       converseAPI
	modelID   string
	maxTokens int32
}

func NewBedrockGenerator(cfg aws.Config, modelID string) *BedrockGenerator {
	return newBedrockGenerator(bedrockruntime.NewFromConfig(cfg), modelID)
}

func newBedrockGenerator(api converseAPI, modelID string) *BedrockGenerator {
	return &BedrockGenerator{api: api, modelID: modelID, maxTokens: 4096}
}

func (g *BedrockGenerator) Generate(ctx context.Context, text string, cfg PromptConfig) (models.Quiz, error) {
	systemPrompt, userPrompt := BuildPrompt(text, cfg)

	out, err := g.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: userPrompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(g.maxTokens),
			Temperature: aws.Float32(0.3),
		},
	})
	if err != nil {
		return models.Quiz{}, failure.FromAWS(ctx, "bedrock.Converse", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return models.Quiz{}, failure.Permanent("bedrock.Converse", fmt.Errorf("unexpected output type %T", out.Output))
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(t.Value)
		}
	}
	if out.Usage != nil {
		log.Println("quiz: bedrock usage",
			"model=", g.modelID,
			"input_tokens=", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens=", aws.ToInt32(out.Usage.OutputTokens),
		)
	}

	questions, err := ParsePayload(sb.String())
	if err != nil {
		return models.Quiz{}, err
	}
	return models.Quiz{Questions: questions}, nil
}
