package results

import (
	"bytes"
	"context"
	"log"

	"lecture-quiz/internal/failure"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Writer struct {
	api putObjectAPI
}

func NewS3Writer(client *s3.Client) *S3Writer {
	return &S3Writer{api: client}
}

// NewS3Client builds the S3 client shared by the writer and the transcript
// fetcher. endpoint is optional (LocalStack).
func NewS3Client(cfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

func (w *S3Writer) Put(ctx context.Context, bucket, key string, payload []byte) error {
	_, err := w.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return failure.FromAWS(ctx, "s3.PutObject", err)
	}
	log.Println("results: wrote", "bucket=", bucket, "key=", key, "bytes=", len(payload))
	return nil
}
