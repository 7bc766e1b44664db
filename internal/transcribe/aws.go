package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"lecture-quiz/internal/failure"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
)

// transcribeAPI is the subset of *transcribe.Client used here.
type transcribeAPI interface {
	StartTranscriptionJob(ctx context.Context, in *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, in *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// objectGetter is the subset of *s3.Client used to fetch transcript output.
type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// AWSClient runs Amazon Transcribe jobs that write their JSON output to S3.
type AWSClient struct {
	api          transcribeAPI
	objects      objectGetter
	outputBucket string
	outputPrefix string
}

// NewAWSClient builds a Transcribe-backed client. An empty outputBucket
// writes transcripts next to the source media.
func NewAWSClient(cfg aws.Config, s3Client *s3.Client, outputBucket, outputPrefix string) *AWSClient {
	return newAWSClient(transcribe.NewFromConfig(cfg), s3Client, outputBucket, outputPrefix)
}

func newAWSClient(api transcribeAPI, objects objectGetter, outputBucket, outputPrefix string) *AWSClient {
	if outputPrefix == "" {
		outputPrefix = "transcripts/"
	}
	return &AWSClient{api: api, objects: objects, outputBucket: outputBucket, outputPrefix: outputPrefix}
}

func (c *AWSClient) Submit(ctx context.Context, req Request) (Handle, error) {
	bucket := c.outputBucket
	if bucket == "" {
		bucket = req.Bucket
	}

	in := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(req.Name),
		Media: &types.Media{
			MediaFileUri: aws.String("s3://" + req.Bucket + "/" + req.Key),
		},
		OutputBucketName: aws.String(bucket),
		OutputKey:        aws.String(c.outputPrefix + req.Name + ".json"),
	}
	if req.LanguageCode == "" || strings.EqualFold(req.LanguageCode, "auto") {
		in.IdentifyLanguage = aws.Bool(true)
	} else {
		in.LanguageCode = types.LanguageCode(req.LanguageCode)
	}

	_, err := c.api.StartTranscriptionJob(ctx, in)
	if err != nil {
		// The name is deterministic, so a conflict means an earlier call for
		// this same submission already went through.
		var conflict *types.ConflictException
		if errors.As(err, &conflict) {
			return Handle(req.Name), nil
		}
		return "", failure.FromAWS(ctx, "transcribe.StartTranscriptionJob", err)
	}
	return Handle(req.Name), nil
}

func (c *AWSClient) Poll(ctx context.Context, h Handle) (Status, error) {
	out, err := c.api.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(string(h)),
	})
	if err != nil {
		return Status{}, failure.FromAWS(ctx, "transcribe.GetTranscriptionJob", err)
	}
	job := out.TranscriptionJob
	if job == nil {
		return Status{}, failure.Permanent("transcribe.GetTranscriptionJob", fmt.Errorf("job %s missing from response", h))
	}

	switch job.TranscriptionJobStatus {
	case types.TranscriptionJobStatusQueued, types.TranscriptionJobStatusInProgress:
		return Status{State: StateRunning}, nil
	case types.TranscriptionJobStatusFailed:
		return Status{State: StateFailed, FailureReason: aws.ToString(job.FailureReason)}, nil
	case types.TranscriptionJobStatusCompleted:
	default:
		return Status{}, failure.Permanent("transcribe.GetTranscriptionJob", fmt.Errorf("unexpected job status %q", job.TranscriptionJobStatus))
	}

	if job.Transcript == nil || job.Transcript.TranscriptFileUri == nil {
		return Status{}, failure.Permanent("transcribe.GetTranscriptionJob", fmt.Errorf("job %s completed without transcript uri", h))
	}
	doc, err := c.fetch(ctx, aws.ToString(job.Transcript.TranscriptFileUri))
	if err != nil {
		return Status{}, err
	}

	text := doc.text()
	if text == "" {
		return Status{State: StateFailed, FailureReason: "empty transcript"}, nil
	}
	lang := string(job.LanguageCode)
	if lang == "" {
		lang = doc.Results.LanguageCode
	}
	return Status{
		State:        StateSucceeded,
		Text:         text,
		LanguageCode: lang,
		Confidence:   doc.confidence(),
	}, nil
}

func (c *AWSClient) fetch(ctx context.Context, uri string) (transcriptDoc, error) {
	bucket, key, err := splitTranscriptURI(uri)
	if err != nil {
		return transcriptDoc{}, failure.Permanent("transcribe.fetch", err)
	}

	obj, err := c.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return transcriptDoc{}, failure.FromAWS(ctx, "s3.GetObject", err)
	}
	defer obj.Body.Close()

	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return transcriptDoc{}, failure.Transient("s3.GetObject", err)
	}

	var doc transcriptDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return transcriptDoc{}, failure.Permanent("transcribe.decode", err)
	}
	return doc, nil
}

// splitTranscriptURI extracts bucket and key from the path-style HTTPS URI
// Transcribe reports for output written to a caller-owned bucket.
func splitTranscriptURI(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse transcript uri: %w", err)
	}
	if u.Scheme == "s3" {
		return u.Host, strings.TrimPrefix(u.Path, "/"), nil
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("transcript uri has no bucket/key: %s", raw)
	}
	key, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("unescape transcript key: %w", err)
	}
	return parts[0], key, nil
}

type transcriptDoc struct {
	Results struct {
		LanguageCode string `json:"language_code"`
		Transcripts  []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
		Items []struct {
			Type         string `json:"type"`
			Alternatives []struct {
				Confidence string `json:"confidence"`
			} `json:"alternatives"`
		} `json:"items"`
	} `json:"results"`
}

func (d transcriptDoc) text() string {
	parts := make([]string, 0, len(d.Results.Transcripts))
	for _, t := range d.Results.Transcripts {
		if s := strings.TrimSpace(t.Transcript); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// confidence averages word-level confidence over pronunciation items.
func (d transcriptDoc) confidence() *float64 {
	var sum float64
	n := 0
	for _, item := range d.Results.Items {
		if item.Type != "pronunciation" || len(item.Alternatives) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(item.Alternatives[0].Confidence, 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
