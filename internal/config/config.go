package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AWSRegion string

	// Job state
	JobStore         string
	DynamoTable      string
	DynamoEndpoint   string
	PostgresDSN      string
	PostgresMaxConns int
	RedisAddr        string
	RedisPassword    string

	// Transcription
	TranscribeOutputBucket string
	TranscribeOutputPrefix string
	TranscribeLanguage     string

	// Quiz generation
	QuizProvider       string
	BedrockModelID     string
	OpenAIKey          string
	OpenAIModel        string
	QuestionCount      int
	OptionsPerQuestion int
	QuizLanguage       string

	// Results
	ResultSink     string
	ResultBucket   string
	ResultPrefix   string
	S3Endpoint     string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	// Pipeline policy
	AllowedSuffixes    []string
	LeaseTimeout       time.Duration
	PollInitial        time.Duration
	PollMax            time.Duration
	PollDeadline       time.Duration
	TranscribeAttempts int
	GenerateTimeout    time.Duration
	GenerateAttempts   int
	WriteAttempts      int
	TransientRetries   int
	DeadlineMargin     time.Duration
	// InvocationTimeout bounds one upload outside Lambda, where the runtime
	// supplies no deadline.
	InvocationTimeout time.Duration

	// Notifications
	SESFromEmail string
	NotifyEmail  string

	// Kafka
	KafkaBrokers        []string
	KafkaTopicUploads   string
	KafkaTopicRetry     string
	KafkaGroupID        string
	KafkaSchedulerGroup string
	WorkerID            string
	MaxDeliveries       int

	// HTTP API
	APIAddr     string
	CORSOrigins []string
}

// Load reads configuration from the environment. Call godotenv.Load first
// to pick up a local .env file.
func Load() (*Config, error) {
	var errs []string
	p := &parser{errs: &errs}

	cfg := &Config{
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),

		JobStore:         strings.ToLower(getEnv("JOB_STORE", "dynamo")),
		DynamoTable:      getEnv("DYNAMO_TABLE", "lecture-quiz-jobs"),
		DynamoEndpoint:   os.Getenv("DYNAMO_ENDPOINT"),
		PostgresDSN:      os.Getenv("DATABASE_URL"),
		PostgresMaxConns: p.getInt("POSTGRES_MAX_CONNS", 10),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),

		TranscribeOutputBucket: os.Getenv("TRANSCRIBE_OUTPUT_BUCKET"),
		TranscribeOutputPrefix: getEnv("TRANSCRIBE_OUTPUT_PREFIX", "transcripts/"),
		TranscribeLanguage:     getEnv("TRANSCRIBE_LANGUAGE", "en-US"),

		QuizProvider:       strings.ToLower(getEnv("QUIZ_PROVIDER", "bedrock")),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        os.Getenv("OPENAI_MODEL"),
		QuestionCount:      p.getInt("QUIZ_QUESTION_COUNT", 10),
		OptionsPerQuestion: p.getInt("QUIZ_OPTIONS_PER_QUESTION", 4),
		QuizLanguage:       os.Getenv("QUIZ_LANGUAGE"),

		ResultSink:     strings.ToLower(getEnv("RESULT_SINK", "s3")),
		ResultBucket:   os.Getenv("RESULT_BUCKET"),
		ResultPrefix:   os.Getenv("RESULT_PREFIX"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:    p.getBool("MINIO_USE_SSL", false),

		AllowedSuffixes:    splitCSV(getEnv("ALLOWED_SUFFIXES", ".mp4,.mov")),
		LeaseTimeout:       p.getDuration("LEASE_TIMEOUT", 5*time.Minute),
		PollInitial:        p.getDuration("POLL_INITIAL", 5*time.Second),
		PollMax:            p.getDuration("POLL_MAX", 60*time.Second),
		PollDeadline:       p.getDuration("POLL_DEADLINE", 15*time.Minute),
		TranscribeAttempts: p.getInt("TRANSCRIBE_ATTEMPTS", 3),
		GenerateTimeout:    p.getDuration("GENERATE_TIMEOUT", 2*time.Minute),
		GenerateAttempts:   p.getInt("GENERATE_ATTEMPTS", 2),
		WriteAttempts:      p.getInt("WRITE_ATTEMPTS", 3),
		TransientRetries:   p.getInt("TRANSIENT_RETRIES", 3),
		DeadlineMargin:     p.getDuration("DEADLINE_MARGIN", 10*time.Second),
		InvocationTimeout:  p.getDuration("INVOCATION_TIMEOUT", 5*time.Minute),

		SESFromEmail: os.Getenv("SES_FROM_EMAIL"),
		NotifyEmail:  os.Getenv("NOTIFY_EMAIL"),

		KafkaBrokers:        splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicUploads:   getEnv("KAFKA_TOPIC_UPLOADS", "lecture-quiz-uploads"),
		KafkaTopicRetry:     getEnv("KAFKA_TOPIC_RETRY", "lecture-quiz-retry"),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "lecture-quiz-workers"),
		KafkaSchedulerGroup: getEnv("KAFKA_SCHEDULER_GROUP", "lecture-quiz-scheduler"),
		WorkerID:            getEnv("WORKER_ID", "worker-1"),
		MaxDeliveries:       p.getInt("MAX_DELIVERIES", 10),

		APIAddr:     getEnv("API_ADDR", ":8080"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "*")),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.JobStore {
	case "dynamo":
		if c.DynamoTable == "" {
			return fmt.Errorf("DYNAMO_TABLE is required when JOB_STORE=dynamo")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required when JOB_STORE=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported JOB_STORE %q. Supported: dynamo, postgres, memory", c.JobStore)
	}

	switch c.ResultSink {
	case "s3":
	case "minio":
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when RESULT_SINK=minio")
		}
	default:
		return fmt.Errorf("unsupported RESULT_SINK %q. Supported: s3, minio", c.ResultSink)
	}

	if c.QuizProvider == "openai" && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when QUIZ_PROVIDER=openai")
	}
	if c.LeaseTimeout <= c.GenerateTimeout {
		return fmt.Errorf("LEASE_TIMEOUT (%s) must be longer than GENERATE_TIMEOUT (%s)", c.LeaseTimeout, c.GenerateTimeout)
	}
	if len(c.AllowedSuffixes) == 0 {
		return fmt.Errorf("ALLOWED_SUFFIXES must name at least one suffix")
	}
	if c.NotifyEmail != "" && c.SESFromEmail == "" {
		return fmt.Errorf("SES_FROM_EMAIL is required when NOTIFY_EMAIL is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	errs *[]string
}

func (p *parser) getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (p *parser) getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}

func (p *parser) getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
