package quiz

import (
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ProviderConfig selects and configures a quiz generator.
type ProviderConfig struct {
	Provider     string
	BedrockModel string
	OpenAIKey    string
	OpenAIModel  string
}

// NewGenerator creates a generator from configuration; Bedrock is the default.
func NewGenerator(awsCfg aws.Config, cfg ProviderConfig) (Generator, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = "bedrock"
		log.Println("quiz: QUIZ_PROVIDER not set, defaulting to bedrock")
	}

	switch name {
	case "bedrock":
		if cfg.BedrockModel == "" {
			return nil, fmt.Errorf("BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		return NewBedrockGenerator(awsCfg, cfg.BedrockModel), nil
	case "openai":
		return NewOpenAIGenerator(cfg.OpenAIKey, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unsupported quiz provider: %s. Supported: bedrock, openai", name)
	}
}
