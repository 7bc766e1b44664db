package results

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"

	"lecture-quiz/internal/failure"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOWriter writes results to an S3-compatible MinIO deployment. The
// bucket argument of Put is ignored when a fixed bucket is configured.
type MinIOWriter struct {
	client minioPutter
	bucket string
}

func NewMinIOClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client init: %w", err)
	}
	log.Println("results: minio client initialized", "endpoint=", endpoint)
	return client, nil
}

// EnsureBucket creates bucket if it does not exist yet.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	log.Println("results: created bucket", "bucket=", bucket)
	return nil
}

func NewMinIOWriter(client *minio.Client, bucket string) *MinIOWriter {
	return &MinIOWriter{client: client, bucket: bucket}
}

func (w *MinIOWriter) Put(ctx context.Context, bucket, key string, payload []byte) error {
	if w.bucket != "" {
		bucket = w.bucket
	}
	info, err := w.client.PutObject(ctx, bucket, key, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return classifyMinIO(ctx, err)
	}
	log.Println("results: wrote", "bucket=", bucket, "key=", key, "bytes=", info.Size)
	return nil
}

func classifyMinIO(ctx context.Context, err error) error {
	const op = "minio.PutObject"
	if ctx.Err() != nil {
		return failure.New(failure.KindDeadlineExceeded, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return failure.Transient(op, err)
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500,
		resp.Code == "SlowDown":
		return failure.Transient(op, err)
	default:
		return failure.Permanent(op, err)
	}
}
