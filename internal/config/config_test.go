package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JOB_STORE", "")
	t.Setenv("RESULT_SINK", "")
	t.Setenv("QUIZ_PROVIDER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.JobStore != "dynamo" || cfg.ResultSink != "s3" || cfg.QuizProvider != "bedrock" {
		t.Fatalf("backends = %s/%s/%s", cfg.JobStore, cfg.ResultSink, cfg.QuizProvider)
	}
	if cfg.PollInitial != 5*time.Second || cfg.PollMax != time.Minute || cfg.PollDeadline != 15*time.Minute {
		t.Fatalf("poll policy = %v/%v/%v", cfg.PollInitial, cfg.PollMax, cfg.PollDeadline)
	}
	if len(cfg.AllowedSuffixes) != 2 || cfg.AllowedSuffixes[0] != ".mp4" {
		t.Fatalf("suffixes = %v", cfg.AllowedSuffixes)
	}
	if cfg.TranscribeAttempts != 3 || cfg.GenerateAttempts != 2 || cfg.WriteAttempts != 3 {
		t.Fatalf("attempts = %d/%d/%d", cfg.TranscribeAttempts, cfg.GenerateAttempts, cfg.WriteAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JOB_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://quiz@localhost/quiz?sslmode=disable")
	t.Setenv("RESULT_SINK", "minio")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio123")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("ALLOWED_SUFFIXES", ".mp4, .webm")
	t.Setenv("POLL_DEADLINE", "20m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.JobStore != "postgres" || cfg.ResultSink != "minio" || !cfg.MinIOUseSSL {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.PollDeadline != 20*time.Minute {
		t.Fatalf("poll deadline = %v", cfg.PollDeadline)
	}
	if len(cfg.AllowedSuffixes) != 2 || cfg.AllowedSuffixes[1] != ".webm" {
		t.Fatalf("suffixes = %v", cfg.AllowedSuffixes)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("LEASE_TIMEOUT", "soon")
	t.Setenv("WRITE_ATTEMPTS", "three")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "LEASE_TIMEOUT") || !strings.Contains(err.Error(), "WRITE_ATTEMPTS") {
		t.Fatalf("error = %v, want both keys reported", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":        {"JOB_STORE": "sqlite"},
		"postgres without dsn": {"JOB_STORE": "postgres", "DATABASE_URL": ""},
		"minio without creds":  {"RESULT_SINK": "minio", "MINIO_ENDPOINT": ""},
		"openai without key":   {"QUIZ_PROVIDER": "openai", "OPENAI_API_KEY": ""},
		"notify without from":  {"NOTIFY_EMAIL": "prof@example.com", "SES_FROM_EMAIL": ""},
		"lease too short":      {"LEASE_TIMEOUT": "2m", "GENERATE_TIMEOUT": "2m"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("splitCSV() = %v", got)
	}
}
