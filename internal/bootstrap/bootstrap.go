// Package bootstrap builds the pipeline and its collaborators from
// configuration. Every binary goes through it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"lecture-quiz/internal/cache"
	"lecture-quiz/internal/config"
	"lecture-quiz/internal/email"
	"lecture-quiz/internal/pipeline"
	"lecture-quiz/internal/quiz"
	"lecture-quiz/internal/results"
	"lecture-quiz/internal/store"
	"lecture-quiz/internal/transcribe"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Runtime holds the wired pipeline for one process.
type Runtime struct {
	Config       *config.Config
	AWS          aws.Config
	Store        store.JobStore
	Orchestrator *pipeline.Orchestrator

	closers []func() error
}

func LoadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// NewStore opens the configured job store, wrapped with the Redis
// completion cache when REDIS_ADDR is set.
func NewStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (store.JobStore, func() error, error) {
	var (
		base store.JobStore
		err  error
	)
	switch cfg.JobStore {
	case "dynamo":
		base, err = store.NewDynamoStore(awsCfg, cfg.DynamoTable, cfg.DynamoEndpoint)
	case "postgres":
		base, err = store.NewPostgresStore(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	case "memory":
		log.Println("bootstrap: using in-memory job store; state is lost on exit")
		base = store.NewMemoryStore()
	default:
		err = fmt.Errorf("unsupported job store %q", cfg.JobStore)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("init %s store: %w", cfg.JobStore, err)
	}

	if cfg.RedisAddr == "" {
		return base, func() error { return nil }, nil
	}
	rc, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis cache: %w", err)
	}
	return store.NewCachedStore(base, rc), rc.Close, nil
}

// PipelineConfig maps process configuration onto orchestrator policy.
func PipelineConfig(cfg *config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.AllowedSuffixes = cfg.AllowedSuffixes
	pc.LeaseTimeout = cfg.LeaseTimeout
	pc.PollInitial = cfg.PollInitial
	pc.PollMax = cfg.PollMax
	pc.PollDeadline = cfg.PollDeadline
	pc.TranscribeAttempts = cfg.TranscribeAttempts
	pc.GenerateTimeout = cfg.GenerateTimeout
	pc.GenerateAttempts = cfg.GenerateAttempts
	pc.WriteAttempts = cfg.WriteAttempts
	pc.TransientRetries = cfg.TransientRetries
	pc.DeadlineMargin = cfg.DeadlineMargin
	pc.ResultBucket = cfg.ResultBucket
	pc.ResultPrefix = cfg.ResultPrefix
	pc.LanguageCode = cfg.TranscribeLanguage
	pc.Prompt = quiz.PromptConfig{
		QuestionCount:      cfg.QuestionCount,
		OptionsPerQuestion: cfg.OptionsPerQuestion,
		Language:           cfg.QuizLanguage,
	}
	return pc
}

func newWriter(ctx context.Context, cfg *config.Config, s3Writer *results.S3Writer) (results.Writer, error) {
	if cfg.ResultSink != "minio" {
		return s3Writer, nil
	}
	client, err := results.NewMinIOClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
	if err != nil {
		return nil, err
	}
	if cfg.ResultBucket != "" {
		if err := results.EnsureBucket(ctx, client, cfg.ResultBucket); err != nil {
			return nil, err
		}
	}
	return results.NewMinIOWriter(client, cfg.ResultBucket), nil
}

// New wires the full pipeline.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	awsCfg, err := LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st, closeStore, err := NewStore(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, AWS: awsCfg, Store: st, closers: []func() error{closeStore}}

	s3Client := results.NewS3Client(awsCfg, cfg.S3Endpoint)
	tc := transcribe.NewAWSClient(awsCfg, s3Client, cfg.TranscribeOutputBucket, cfg.TranscribeOutputPrefix)

	gen, err := quiz.NewGenerator(awsCfg, quiz.ProviderConfig{
		Provider:     cfg.QuizProvider,
		BedrockModel: cfg.BedrockModelID,
		OpenAIKey:    cfg.OpenAIKey,
		OpenAIModel:  cfg.OpenAIModel,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	writer, err := newWriter(ctx, cfg, results.NewS3Writer(s3Client))
	if err != nil {
		rt.Close()
		return nil, err
	}

	var opts []pipeline.Option
	if cfg.NotifyEmail != "" {
		sender, err := email.NewSESSender(awsCfg, cfg.SESFromEmail)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithNotifier(email.NewNotifier(sender, cfg.NotifyEmail)))
	}

	rt.Orchestrator = pipeline.New(st, tc, gen, writer, PipelineConfig(cfg), opts...)

	log.Println("bootstrap: pipeline ready",
		"job_store=", cfg.JobStore,
		"quiz_provider=", cfg.QuizProvider,
		"result_sink=", cfg.ResultSink,
		"notify=", cfg.NotifyEmail != "",
	)
	return rt, nil
}

func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
