package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lecture-quiz/internal/models"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS quiz_jobs (
	job_id                     TEXT PRIMARY KEY,
	bucket                     TEXT NOT NULL,
	object_key                 TEXT NOT NULL,
	fingerprint                TEXT NOT NULL DEFAULT '',
	event_id                   TEXT NOT NULL DEFAULT '',
	state                      TEXT NOT NULL,
	attempt_count              INTEGER NOT NULL DEFAULT 0,
	last_error                 TEXT NOT NULL DEFAULT '',
	version                    BIGINT NOT NULL,
	lease_owner                TEXT NOT NULL DEFAULT '',
	lease_expires_at           BIGINT NOT NULL DEFAULT 0,
	transcription_handle       TEXT NOT NULL DEFAULT '',
	transcription_submitted_at BIGINT NOT NULL DEFAULT 0,
	transcription_attempts     INTEGER NOT NULL DEFAULT 0,
	transcript                 JSONB,
	quiz_payload               TEXT NOT NULL DEFAULT '',
	output_key                 TEXT NOT NULL DEFAULT '',
	created_at                 BIGINT NOT NULL,
	updated_at                 BIGINT NOT NULL
)`

const jobColumns = `job_id, bucket, object_key, fingerprint, event_id, state, attempt_count,
	last_error, version, lease_owner, lease_expires_at, transcription_handle,
	transcription_submitted_at, transcription_attempts, transcript, quiz_payload,
	output_key, created_at, updated_at`

type postgresRecords struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and ensures the jobs table exists.
func NewPostgresStore(ctx context.Context, dsn string, maxPool int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxPool <= 0 {
		maxPool = 10
	}
	db.SetMaxOpenConns(maxPool)
	db.SetMaxIdleConns(maxPool / 2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Store{records: &postgresRecords{db: db}}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job        models.Job
		state      string
		transcript []byte
	)
	err := row.Scan(
		&job.JobID, &job.Bucket, &job.Key, &job.Fingerprint, &job.EventID, &state,
		&job.AttemptCount, &job.LastError, &job.Version, &job.LeaseOwner,
		&job.LeaseExpiresAt, &job.TranscriptionHandle, &job.TranscriptionSubmittedAt,
		&job.TranscriptionAttempts, &transcript, &job.QuizPayload, &job.OutputKey,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.State = models.JobState(state)
	if len(transcript) > 0 {
		var t models.Transcript
		if err := json.Unmarshal(transcript, &t); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
		job.Transcript = &t
	}
	return &job, nil
}

func transcriptArg(t *models.Transcript) (any, error) {
	if t == nil {
		return nil, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *postgresRecords) load(ctx context.Context, jobID string) (*models.Job, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM quiz_jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (p *postgresRecords) create(ctx context.Context, job models.Job) (bool, error) {
	transcript, err := transcriptArg(job.Transcript)
	if err != nil {
		return false, err
	}

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO quiz_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (job_id) DO NOTHING`,
		job.JobID, job.Bucket, job.Key, job.Fingerprint, job.EventID, string(job.State),
		job.AttemptCount, job.LastError, job.Version, job.LeaseOwner, job.LeaseExpiresAt,
		job.TranscriptionHandle, job.TranscriptionSubmittedAt, job.TranscriptionAttempts,
		transcript, job.QuizPayload, job.OutputKey, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *postgresRecords) replace(ctx context.Context, job models.Job, expectVersion int64) (bool, error) {
	transcript, err := transcriptArg(job.Transcript)
	if err != nil {
		return false, err
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE quiz_jobs SET
			event_id = $2, state = $3, attempt_count = $4, last_error = $5, version = $6,
			lease_owner = $7, lease_expires_at = $8, transcription_handle = $9,
			transcription_submitted_at = $10, transcription_attempts = $11, transcript = $12,
			quiz_payload = $13, output_key = $14, updated_at = $15
		WHERE job_id = $1 AND version = $16`,
		job.JobID, job.EventID, string(job.State), job.AttemptCount, job.LastError, job.Version,
		job.LeaseOwner, job.LeaseExpiresAt, job.TranscriptionHandle,
		job.TranscriptionSubmittedAt, job.TranscriptionAttempts, transcript,
		job.QuizPayload, job.OutputKey, job.UpdatedAt, expectVersion,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *postgresRecords) list(ctx context.Context, limit int32) ([]models.Job, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM quiz_jobs ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
